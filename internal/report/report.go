// Package report renders experiment run results for terminals and for
// machine consumption.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"entprobe/internal/ingest"
	"entprobe/internal/runner"
)

// Totals aggregates pass/fail counts across a batch of runs.
type Totals struct {
	RunsPassed        int `json:"runsPassed"`
	RunsTotal         int `json:"runsTotal"`
	ExpectationsMet   int `json:"expectationsMet"`
	ExpectationsTotal int `json:"expectationsTotal"`
}

// AllPassed reports whether every run in the batch passed.
func (t Totals) AllPassed() bool {
	return t.RunsPassed == t.RunsTotal
}

// Compute tallies runs and their expectations.
func Compute(results []runner.RunResult) Totals {
	var t Totals
	t.RunsTotal = len(results)
	for _, r := range results {
		if r.Passed() {
			t.RunsPassed++
		}
		if r.Verification != nil {
			t.ExpectationsMet += r.Verification.Passed
			t.ExpectationsTotal += r.Verification.Total
		} else {
			t.ExpectationsTotal += len(r.Experiment.Expectations)
		}
	}
	return t
}

// FormatText writes a human-readable report.
func FormatText(w io.Writer, results []runner.RunResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No experiments ran")
		return
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "entprobe - Experiment Results")
	fmt.Fprintln(w, "=============================")

	for _, r := range results {
		fmt.Fprintln(w, "")
		fmt.Fprintf(w, "%s (run %s)\n", r.Experiment.Name, r.RunID)

		if r.Err != nil {
			fmt.Fprintf(w, "  aborted: %v\n", r.Err)
			continue
		}

		writeSubmission(w, r.Outcome)
		if r.Outcome != nil && !r.Outcome.Accepted {
			fmt.Fprintln(w, "  verification skipped: payload was not accepted")
			continue
		}

		if r.Verification == nil {
			if len(r.Experiment.Expectations) == 0 {
				fmt.Fprintln(w, "  no expectations declared")
			}
			continue
		}

		fmt.Fprintf(w, "  Expectations: %d/%d passed (%s)\n",
			r.Verification.Passed, r.Verification.Total,
			r.Verification.Elapsed.Round(time.Millisecond))
		for _, res := range r.Verification.Results {
			symbol := "✓"
			if !res.Passed {
				symbol = "✗"
			}
			state := ""
			if res.TimedOut {
				state = " [timed out]"
			}
			fmt.Fprintf(w, "    %s %s%s  (%d polls, %s)\n",
				symbol, res.Expectation.Label(), state,
				res.Attempts, res.Elapsed.Round(time.Millisecond))
			fmt.Fprintf(w, "        observed: %s\n", res.Observed)
			if res.LastError != "" {
				fmt.Fprintf(w, "        last error: %s\n", res.LastError)
			}
		}
	}

	t := Compute(results)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Summary: %d/%d experiments passed, %d/%d expectations met\n",
		t.RunsPassed, t.RunsTotal, t.ExpectationsMet, t.ExpectationsTotal)
}

func writeSubmission(w io.Writer, o *ingest.Outcome) {
	if o == nil {
		return
	}
	if o.Accepted {
		fmt.Fprintf(w, "  Submission: accepted (status %d)\n", o.StatusCode)
		return
	}
	switch o.Failure {
	case ingest.FailureRejection:
		fmt.Fprintf(w, "  Submission: rejected by server (status %d): %s\n", o.StatusCode, o.Detail)
	case ingest.FailureTimeout:
		fmt.Fprintf(w, "  Submission: timed out before a response arrived: %s\n", o.Detail)
	default:
		fmt.Fprintf(w, "  Submission: never reached server: %s\n", o.Detail)
	}
}

// FormatJSON writes the machine-readable report.
func FormatJSON(w io.Writer, results []runner.RunResult) {
	output := struct {
		Experiments []runner.RunResult `json:"experiments"`
		Summary     Totals             `json:"summary"`
	}{
		Experiments: results,
		Summary:     Compute(results),
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(output) // stdout errors are unrecoverable
}
