// Package runner orchestrates one experiment end to end: synthesize,
// submit, and verify. Verification only starts once the submission is
// known to be accepted.
// Independent experiments run concurrently; nothing is shared between runs
// except the read-only schema registry.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"entprobe/internal/core"
	"entprobe/internal/experiment"
	"entprobe/internal/history"
	"entprobe/internal/ingest"
	"entprobe/internal/schema"
	"entprobe/internal/synth"
	"entprobe/internal/verify"
)

// DefaultConcurrency bounds how many experiment runs execute at once.
const DefaultConcurrency = 4

// RunResult is everything one experiment run produced. Exactly one
// RunResult exists per experiment per RunAll call.
type RunResult struct {
	RunID        string                `json:"runId"`
	Experiment   experiment.Experiment `json:"experiment"`
	Payload      core.Payload          `json:"payload,omitempty"`
	Outcome      *ingest.Outcome       `json:"outcome,omitempty"`
	Verification *verify.Summary       `json:"verification,omitempty"`
	Err          error                 `json:"-"`
	ErrDetail    string                `json:"error,omitempty"`
	StartedAt    time.Time             `json:"startedAt"`
	FinishedAt   time.Time             `json:"finishedAt"`
}

// Passed reports whether the run achieved everything it set out to:
// payload accepted and every declared expectation satisfied.
func (r RunResult) Passed() bool {
	if r.Err != nil || r.Outcome == nil || !r.Outcome.Accepted {
		return false
	}
	if r.Verification == nil {
		return len(r.Experiment.Expectations) == 0
	}
	return r.Verification.AllPassed()
}

// Reporter receives run lifecycle notifications, for live progress output.
type Reporter interface {
	RunStarted(name string)
	RunFinished(name string, passed bool)
}

// Runner executes experiments against one configured platform account.
type Runner struct {
	registry *schema.Registry
	ingest   *ingest.Client
	poller   *verify.Poller
	store    *history.Store // nil disables archiving
	reporter Reporter       // nil disables progress
	clock    core.Clock
}

func New(registry *schema.Registry, ingestClient *ingest.Client, poller *verify.Poller) *Runner {
	return &Runner{
		registry: registry,
		ingest:   ingestClient,
		poller:   poller,
		clock:    core.RealClock{},
	}
}

// SetStore enables archiving of finished runs.
func (r *Runner) SetStore(store *history.Store) { r.store = store }

// SetReporter enables run lifecycle notifications.
func (r *Runner) SetReporter(rep Reporter) { r.reporter = rep }

// SetClock replaces the wall clock, for tests.
func (r *Runner) SetClock(clock core.Clock) { r.clock = clock }

// Run executes one experiment. A validation failure aborts before any
// network call; an unaccepted submission skips verification. The payload
// is submitted exactly once.
func (r *Runner) Run(ctx context.Context, e experiment.Experiment) RunResult {
	result := RunResult{
		RunID:      core.NewRunID(),
		Experiment: e,
		StartedAt:  r.clock.Now(),
	}
	if r.reporter != nil {
		r.reporter.RunStarted(e.Name)
	}
	defer func() {
		if r.reporter != nil {
			r.reporter.RunFinished(e.Name, result.Passed())
		}
	}()

	s, ok := r.registry.Lookup(e.EntityType)
	if !ok {
		return r.finish(result, fmt.Errorf("experiment %q: no schema for entity type %q", e.Name, e.EntityType))
	}

	payload, err := synth.Synthesize(s, e, r.clock.Now())
	if err != nil {
		return r.finish(result, fmt.Errorf("experiment %q: %w", e.Name, err))
	}
	result.Payload = payload

	outcome := r.ingest.Submit(ctx, []core.Payload{payload})
	result.Outcome = &outcome
	if !outcome.Accepted {
		// No point polling for effects of a payload that was never
		// accepted; the outcome itself is the finding.
		return r.finish(result, nil)
	}

	if len(e.Expectations) > 0 {
		summary := r.poller.Verify(ctx, e.Expectations)
		result.Verification = &summary
	}
	return r.finish(result, nil)
}

func (r *Runner) finish(result RunResult, err error) RunResult {
	result.Err = err
	if err != nil {
		result.ErrDetail = err.Error()
	}
	result.FinishedAt = r.clock.Now()
	r.archive(result)
	return result
}

func (r *Runner) archive(result RunResult) {
	if r.store == nil {
		return
	}
	rec := history.RunRecord{
		RunID:        result.RunID,
		Experiment:   result.Experiment.Name,
		EntityType:   result.Experiment.EntityType,
		Payload:      result.Payload,
		Outcome:      result.Outcome,
		Verification: result.Verification,
		Error:        result.ErrDetail,
		StartedAt:    result.StartedAt,
		FinishedAt:   result.FinishedAt,
	}
	// Archiving is best-effort; a full disk must not turn a finished
	// probe into a failure.
	_ = r.store.Append(rec)
}

// RunAll executes independent experiments with bounded concurrency and
// returns one result per experiment, in input order. One run failing
// never aborts its siblings.
func (r *Runner) RunAll(ctx context.Context, exps []experiment.Experiment, concurrency int) []RunResult {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]RunResult, len(exps))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, e := range exps {
		wg.Add(1)
		go func(i int, e experiment.Experiment) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = r.Run(ctx, e)
		}(i, e)
	}
	wg.Wait()
	return results
}
