// Package experiment loads the declarative documents describing what to
// synthesize and what downstream effects to expect. Documents stay
// sparse; the schema registry fills in everything the author leaves out.
package experiment

import (
	"fmt"

	"entprobe/internal/verify"
)

// Aggregation modes for metric fields.
const (
	// ModeFull synthesizes all five statistic sub-fields from one scalar.
	ModeFull = "full"
	// ModeSubset synthesizes only the statistics the experiment names.
	// Omitting statistics is itself a testable condition.
	ModeSubset = "subset"
)

// Experiment is one user-authored description of a synthesis probe.
type Experiment struct {
	Name         string               `yaml:"name"`
	Description  string               `yaml:"description"`
	EntityType   string               `yaml:"entityType"`
	Identifiers  map[string]string    `yaml:"identifiers"`
	Overrides    map[string]any       `yaml:"overrides"`
	Metrics      []Metric             `yaml:"metrics"`
	Vars         map[string]string    `yaml:"vars"`
	Expectations []verify.Expectation `yaml:"expectations"`
}

// Metric requests synthesis of one multi-statistic aggregate field.
type Metric struct {
	Name       string             `yaml:"name"`
	Value      float64            `yaml:"value"`
	Mode       string             `yaml:"mode"`
	Statistics []string           `yaml:"statistics"`
	Explicit   map[string]float64 `yaml:"explicit"`
}

// Statistic sub-field suffixes the platform aggregates metrics into.
var Statistics = []string{"sum", "average", "max", "min", "count"}

func validStatistic(name string) bool {
	for _, s := range Statistics {
		if s == name {
			return true
		}
	}
	return false
}

// Validate checks structural completeness. Schema-dependent rules
// (identifier bounds, required fields) are enforced by the synthesizer.
func (e Experiment) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("experiment has no name")
	}
	if e.EntityType == "" {
		return fmt.Errorf("experiment %q: no entity type", e.Name)
	}
	if len(e.Identifiers) == 0 {
		return fmt.Errorf("experiment %q: no identifiers", e.Name)
	}
	for _, m := range e.Metrics {
		if m.Name == "" {
			return fmt.Errorf("experiment %q: metric with no name", e.Name)
		}
		switch m.Mode {
		case "", ModeFull:
		case ModeSubset:
			if len(m.Statistics) == 0 {
				return fmt.Errorf("experiment %q: metric %q: subset mode needs statistics", e.Name, m.Name)
			}
		default:
			return fmt.Errorf("experiment %q: metric %q: unknown mode %q", e.Name, m.Name, m.Mode)
		}
		for _, s := range m.Statistics {
			if !validStatistic(s) {
				return fmt.Errorf("experiment %q: metric %q: unknown statistic %q", e.Name, m.Name, s)
			}
		}
		for s := range m.Explicit {
			if !validStatistic(s) {
				return fmt.Errorf("experiment %q: metric %q: unknown explicit statistic %q", e.Name, m.Name, s)
			}
		}
	}
	for _, exp := range e.Expectations {
		if err := exp.Validate(); err != nil {
			return fmt.Errorf("experiment %q: %w", e.Name, err)
		}
	}
	return nil
}
