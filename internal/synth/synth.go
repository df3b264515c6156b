// Package synth deterministically constructs telemetry payloads from an
// entity-type schema and an experiment description. It is purely
// functional: no I/O, no hidden state, and identical inputs (timestamp
// included) produce identical payloads.
package synth

import (
	"fmt"
	"time"

	"entprobe/internal/core"
	"entprobe/internal/experiment"
	"entprobe/internal/schema"
)

// requiredFieldPlaceholder fills schema-required fields the experiment
// does not care about. The value only needs to be non-null.
const requiredFieldPlaceholder = "entprobe"

// Synthesize merges schema defaults with the experiment's overrides and
// returns the fully materialized event record. Identifier constraints are
// enforced first; a violation aborts with a *schema.ValidationError before
// anything is built.
func Synthesize(s schema.Schema, e experiment.Experiment, now time.Time) (core.Payload, error) {
	if e.EntityType != s.Type {
		return nil, fmt.Errorf("experiment %q targets %q but schema is %q", e.Name, e.EntityType, s.Type)
	}

	for _, field := range s.IdentifierFields() {
		value, ok := e.Identifiers[field]
		if !ok {
			return nil, &schema.ValidationError{
				Field:  field,
				Reason: "identifier required by schema is missing",
			}
		}
		if err := s.ValidateIdentifier(field, value); err != nil {
			return nil, err
		}
	}
	// Extra identifiers the experiment adds are held to the same bounds.
	for field, value := range e.Identifiers {
		if err := s.ValidateIdentifier(field, value); err != nil {
			return nil, err
		}
	}

	p := core.Payload{
		"eventType":     s.EventType,
		"entity.domain": s.Domain,
		"entity.type":   s.Type,
		"timestamp":     now.Unix(),
	}

	for field, value := range e.Identifiers {
		p[field] = value
	}

	for _, field := range s.RequiredFields {
		if _, present := p[field]; !present {
			p[field] = requiredFieldPlaceholder
		}
	}

	// Golden metrics not requested by the experiment still get full
	// aggregation placeholders so the entity's primary metrics are never
	// absent from the sample.
	requested := make(map[string]bool, len(e.Metrics))
	for _, m := range e.Metrics {
		requested[m.Name] = true
	}
	for _, name := range s.GoldenMetrics {
		if !requested[name] {
			addAggregate(p, experiment.Metric{Name: name}, experiment.Statistics)
		}
	}

	for _, m := range e.Metrics {
		stats := experiment.Statistics
		if m.Mode == experiment.ModeSubset {
			stats = m.Statistics
		}
		addAggregate(p, m, stats)
	}

	// Overrides always win, including over synthesized statistic fields.
	for field, value := range e.Overrides {
		p[field] = value
	}

	return p, nil
}

// addAggregate writes the requested statistic sub-fields for one metric.
// Each statistic derives from the metric's single scalar as if it were one
// observation; explicit per-statistic values win over derivation.
func addAggregate(p core.Payload, m experiment.Metric, stats []string) {
	for _, stat := range stats {
		if explicit, ok := m.Explicit[stat]; ok {
			p[m.Name+"."+stat] = explicit
			continue
		}
		value := m.Value
		if stat == "count" {
			value = 1
		}
		p[m.Name+"."+stat] = value
	}
}
