// Package verify polls the platform's read APIs until a set of declared
// expectations is satisfied or times out. Expectations are independent:
// they are evaluated concurrently and one timing out never aborts another.
package verify

import (
	"fmt"
	"time"
)

// Kind selects the comparison an expectation performs.
type Kind string

const (
	// KindEntityExists passes when a lookup query returns at least one row.
	KindEntityExists Kind = "entity-exists"
	// KindFieldNonNull passes when every named field is present and
	// non-null in the most recent matching row.
	KindFieldNonNull Kind = "field-non-null"
	// KindRelationshipExists passes when the graph reports an edge of the
	// given type from source to target.
	KindRelationshipExists Kind = "relationship-exists"
	// KindAggregateCount passes when a count-style query result meets or
	// exceeds a threshold. The query must alias its result as "count".
	KindAggregateCount Kind = "aggregate-count-above-threshold"
)

// Expectation is one declarative, pollable assertion about eventual state
// reachable via the read endpoint.
type Expectation struct {
	Name         string        `yaml:"name" json:"name"`
	Kind         Kind          `yaml:"kind" json:"kind"`
	Query        string        `yaml:"query,omitempty" json:"query,omitempty"`
	Fields       []string      `yaml:"fields,omitempty" json:"fields,omitempty"`
	Threshold    float64       `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Source       string        `yaml:"source,omitempty" json:"source,omitempty"`
	Relationship string        `yaml:"relationship,omitempty" json:"relationship,omitempty"`
	Target       string        `yaml:"target,omitempty" json:"target,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Label returns the expectation's display name.
func (e Expectation) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return string(e.Kind)
}

// Validate checks that the declaration carries everything its kind needs.
func (e Expectation) Validate() error {
	switch e.Kind {
	case KindEntityExists:
		if e.Query == "" {
			return fmt.Errorf("expectation %q: entity-exists requires a query", e.Label())
		}
	case KindFieldNonNull:
		if e.Query == "" {
			return fmt.Errorf("expectation %q: field-non-null requires a query", e.Label())
		}
		if len(e.Fields) == 0 {
			return fmt.Errorf("expectation %q: field-non-null requires at least one field", e.Label())
		}
	case KindRelationshipExists:
		if e.Source == "" || e.Relationship == "" || e.Target == "" {
			return fmt.Errorf("expectation %q: relationship-exists requires source, relationship, and target", e.Label())
		}
	case KindAggregateCount:
		if e.Query == "" {
			return fmt.Errorf("expectation %q: aggregate-count requires a query", e.Label())
		}
		if e.Threshold <= 0 {
			return fmt.Errorf("expectation %q: aggregate-count requires a positive threshold", e.Label())
		}
	case "":
		return fmt.Errorf("expectation %q: kind is not set", e.Label())
	default:
		return fmt.Errorf("expectation %q: unknown kind %q", e.Label(), e.Kind)
	}
	if e.Timeout < 0 {
		return fmt.Errorf("expectation %q: negative timeout", e.Label())
	}
	return nil
}

// NoData is the observed value recorded when no poll attempt ever saw a
// matching record.
const NoData = "no data"

// Result is the terminal outcome of evaluating one expectation.
type Result struct {
	Expectation Expectation   `json:"expectation"`
	Passed      bool          `json:"passed"`
	TimedOut    bool          `json:"timedOut"`
	Observed    string        `json:"observed"`
	LastError   string        `json:"lastError,omitempty"`
	Attempts    int           `json:"attempts"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Summary aggregates the results of one Verify call.
type Summary struct {
	Results []Result      `json:"results"`
	Passed  int           `json:"passed"`
	Total   int           `json:"total"`
	Elapsed time.Duration `json:"elapsed"`
}

// AllPassed reports whether every expectation was satisfied.
func (s Summary) AllPassed() bool {
	return s.Passed == s.Total
}
