package verify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"entprobe/internal/core"
	"entprobe/internal/query"
	"entprobe/internal/ratelimit"
)

// Poller evaluates expectations against the read endpoints. One Poller is
// safe for concurrent use; each Verify call owns its own poll loops.
type Poller struct {
	queries  *query.Client
	graph    *query.GraphClient
	limiter  *ratelimit.Limiter
	interval time.Duration
	deadline time.Duration
	clock    core.Clock
}

// NewPoller builds a Poller. interval is the fixed delay between poll
// attempts per expectation; deadline bounds one whole Verify call and
// caps every per-expectation timeout.
func NewPoller(queries *query.Client, graph *query.GraphClient, limiter *ratelimit.Limiter, interval, deadline time.Duration) *Poller {
	return &Poller{
		queries:  queries,
		graph:    graph,
		limiter:  limiter,
		interval: interval,
		deadline: deadline,
		clock:    core.RealClock{},
	}
}

// SetClock replaces the wall clock, for tests.
func (p *Poller) SetClock(clock core.Clock) { p.clock = clock }

// Verify evaluates all expectations concurrently and joins on completion
// of all of them or the overall deadline, whichever comes first. Pending
// expectations at the deadline are marked timed out with their
// last-observed value; their in-flight requests are cancelled, not
// awaited.
func (p *Poller) Verify(ctx context.Context, expectations []Expectation) Summary {
	started := p.clock.Now()

	ctx, cancel := context.WithTimeout(ctx, p.deadline)
	defer cancel()

	results := make([]Result, len(expectations))
	var wg sync.WaitGroup
	for i, e := range expectations {
		wg.Add(1)
		go func(i int, e Expectation) {
			defer wg.Done()
			results[i] = p.poll(ctx, e)
		}(i, e)
	}
	wg.Wait()

	summary := Summary{
		Results: results,
		Total:   len(results),
		Elapsed: p.clock.Since(started),
	}
	for _, r := range results {
		if r.Passed {
			summary.Passed++
		}
	}
	return summary
}

// poll runs one expectation's loop: evaluate, and if not yet satisfied,
// sleep one interval and try again until the expectation's own timeout
// (bounded by the overall deadline) elapses. A single attempt erroring is
// "not yet satisfied", never an immediate failure.
func (p *Poller) poll(ctx context.Context, e Expectation) Result {
	started := p.clock.Now()
	res := Result{Expectation: e, Observed: NoData}

	timeout := e.Timeout
	if timeout <= 0 || timeout > p.deadline {
		timeout = p.deadline
	}

	for {
		if err := p.limiter.Wait(ctx); err != nil {
			res.TimedOut = true
			res.Elapsed = p.clock.Since(started)
			return res
		}

		satisfied, observed, err := p.evaluate(ctx, e)
		res.Attempts++
		if err != nil {
			res.LastError = err.Error()
		} else if observed != "" {
			res.Observed = observed
		}
		if satisfied {
			res.Passed = true
			res.Elapsed = p.clock.Since(started)
			return res
		}

		if p.clock.Since(started)+p.interval > timeout {
			res.TimedOut = true
			res.Elapsed = p.clock.Since(started)
			return res
		}
		select {
		case <-ctx.Done():
			res.TimedOut = true
			res.Elapsed = p.clock.Since(started)
			return res
		case <-time.After(p.interval):
		}
	}
}

// evaluate performs one comparison attempt for an expectation.
func (p *Poller) evaluate(ctx context.Context, e Expectation) (bool, string, error) {
	switch e.Kind {
	case KindEntityExists:
		return p.evaluateEntityExists(ctx, e)
	case KindFieldNonNull:
		return p.evaluateFieldNonNull(ctx, e)
	case KindRelationshipExists:
		return p.evaluateRelationship(ctx, e)
	case KindAggregateCount:
		return p.evaluateAggregateCount(ctx, e)
	default:
		// Validate rejects unknown kinds before polling starts.
		return false, "", fmt.Errorf("unknown expectation kind %q", e.Kind)
	}
}

func (p *Poller) evaluateEntityExists(ctx context.Context, e Expectation) (bool, string, error) {
	rows, err := p.queries.Query(ctx, e.Query)
	if err != nil {
		return false, "", err
	}
	if len(rows) == 0 {
		return false, "", nil
	}
	return true, rows[0].Raw(), nil
}

func (p *Poller) evaluateFieldNonNull(ctx context.Context, e Expectation) (bool, string, error) {
	rows, err := p.queries.Query(ctx, e.Query)
	if err != nil {
		return false, "", err
	}
	if len(rows) == 0 {
		return false, "", nil
	}

	// The first row is the most recent matching record.
	row := rows[0]
	var missing []string
	for _, field := range e.Fields {
		if !row.HasNonNull(field) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return false, fmt.Sprintf("null or missing fields %v in %s", missing, row.Raw()), nil
	}
	return true, row.Raw(), nil
}

func (p *Poller) evaluateRelationship(ctx context.Context, e Expectation) (bool, string, error) {
	rels, err := p.graph.Relationships(ctx, e.Source)
	if err != nil {
		return false, "", err
	}
	if len(rels) == 0 {
		return false, "", nil
	}

	edges := make([]string, 0, len(rels))
	for _, rel := range rels {
		if rel.Type == e.Relationship && rel.Target == e.Target {
			return true, fmt.Sprintf("%s -%s-> %s", rel.Source, rel.Type, rel.Target), nil
		}
		edges = append(edges, fmt.Sprintf("-%s-> %s", rel.Type, rel.Target))
	}
	return false, "edges seen: " + strings.Join(edges, ", "), nil
}

func (p *Poller) evaluateAggregateCount(ctx context.Context, e Expectation) (bool, string, error) {
	rows, err := p.queries.Query(ctx, e.Query)
	if err != nil {
		return false, "", err
	}
	if len(rows) == 0 {
		return false, "", nil
	}

	value, ok := rows[0].Field("count")
	if !ok {
		return false, "", fmt.Errorf("aggregate query returned no \"count\" alias: %s", rows[0].Raw())
	}
	count, ok := value.(float64)
	if !ok {
		return false, "", fmt.Errorf("aggregate count is not numeric: %v", value)
	}

	observed := fmt.Sprintf("count=%g", count)
	return count >= e.Threshold, observed, nil
}
