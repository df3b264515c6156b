// Package schema describes the entity kinds the engine can synthesize
// telemetry for, and validates experiment input against their constraints.
package schema

import (
	"fmt"
	"time"
	"unicode"
)

// Schema describes one synthesizable entity kind: which event type carries
// its telemetry, which fields the platform requires before it will
// synthesize the entity, and the constraints on its identifier fields.
type Schema struct {
	Domain         string        `yaml:"domain"`
	Type           string        `yaml:"type"`
	EventType      string        `yaml:"eventType"`
	RequiredFields []string      `yaml:"requiredFields"`
	GoldenMetrics  []string      `yaml:"goldenMetrics"`
	Identifier     Identifier    `yaml:"identifier"`
	ExpirationTTL  time.Duration `yaml:"expirationTtl"`
}

// Identifier constrains the payload fields that form the entity identity.
type Identifier struct {
	Fields    []string `yaml:"fields"`
	MinLength int      `yaml:"minLength"`
	MaxLength int      `yaml:"maxLength"`
}

// Default identifier bounds, applied when a schema leaves them unset.
const (
	DefaultMinIdentifierLength = 1
	DefaultMaxIdentifierLength = 50
)

// ValidationError reports experiment input that violates a schema
// constraint. It is raised before any network call and never retried.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q: %s (value %q)", e.Field, e.Reason, e.Value)
}

// ValidateIdentifier checks one identifier value against the schema's
// length and character-set bounds. Violations are returned as a
// *ValidationError rather than silently truncated, so a downstream
// verification failure is never misattributed to the platform.
func (s Schema) ValidateIdentifier(field, value string) error {
	min := s.Identifier.MinLength
	if min == 0 {
		min = DefaultMinIdentifierLength
	}
	max := s.Identifier.MaxLength
	if max == 0 {
		max = DefaultMaxIdentifierLength
	}

	n := len([]rune(value))
	if n < min {
		return &ValidationError{Field: field, Value: value,
			Reason: fmt.Sprintf("identifier shorter than %d characters", min)}
	}
	if n > max {
		return &ValidationError{Field: field, Value: value,
			Reason: fmt.Sprintf("identifier longer than %d characters", max)}
	}
	for _, r := range value {
		if !unicode.IsPrint(r) {
			return &ValidationError{Field: field, Value: value,
				Reason: fmt.Sprintf("identifier contains non-printable character %q", r)}
		}
	}
	return nil
}

// IdentifierFields returns the payload fields forming the entity identity.
// Empty schemas fall back to requiring nothing.
func (s Schema) IdentifierFields() []string {
	return s.Identifier.Fields
}
