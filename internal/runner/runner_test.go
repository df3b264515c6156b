package runner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entprobe/internal/config"
	"entprobe/internal/experiment"
	"entprobe/internal/history"
	"entprobe/internal/ingest"
	"entprobe/internal/query"
	"entprobe/internal/ratelimit"
	"entprobe/internal/schema"
	"entprobe/internal/verify"
	"entprobe/platformtest"
)

const testSchemas = `
schemas:
  - domain: INFRA
    type: MESSAGE_QUEUE_CLUSTER
    eventType: QueueSample
    requiredFields: [provider, clusterName]
    identifier:
      fields: [clusterName]
`

func newRunner(t *testing.T) (*Runner, *platformtest.Server) {
	t.Helper()
	mock := platformtest.NewServer()
	ts := httptest.NewServer(mock.Handler())
	t.Cleanup(ts.Close)

	cfg := config.Config{
		AccountID:      "1",
		IngestKey:      "ik",
		QueryKey:       "qk",
		GraphKey:       "gk",
		IngestURL:      ts.URL + "/ingest",
		QueryURL:       ts.URL + "/query",
		GraphURL:       ts.URL + "/graph",
		RequestTimeout: time.Second,
	}

	reg, err := schema.ParseRegistry([]byte(testSchemas))
	require.NoError(t, err)

	poller := verify.NewPoller(
		query.NewClient(cfg, nil, nil),
		query.NewGraphClient(cfg, nil, nil),
		ratelimit.NewLimiter(0),
		10*time.Millisecond,
		500*time.Millisecond,
	)
	return New(reg, ingest.NewClient(cfg, nil, nil), poller), mock
}

func clusterExperiment(name string) experiment.Experiment {
	return experiment.Experiment{
		Name:        name,
		EntityType:  "MESSAGE_QUEUE_CLUSTER",
		Identifiers: map[string]string{"clusterName": "probe-" + name},
		Expectations: []verify.Expectation{
			{
				Name:  "entity appears",
				Kind:  verify.KindEntityExists,
				Query: "FROM entities SELECT * WHERE name = 'probe-" + name + "'",
			},
		},
	}
}

func TestRun_EndToEnd(t *testing.T) {
	r, mock := newRunner(t)
	mock.ScriptQuery("probe-e2e",
		`{"results":[]}`,
		`{"results":[{"name":"probe-e2e"}]}`,
	)

	result := r.Run(context.Background(), clusterExperiment("e2e"))

	require.NoError(t, result.Err)
	require.NotNil(t, result.Outcome)
	assert.True(t, result.Outcome.Accepted)
	require.NotNil(t, result.Verification)
	assert.True(t, result.Verification.AllPassed())
	assert.True(t, result.Passed())
	assert.NotEmpty(t, result.RunID)

	batches := mock.Batches()
	require.Len(t, batches, 1, "a payload is submitted exactly once per run")
	assert.Equal(t, "QueueSample", batches[0][0]["eventType"])
	assert.Equal(t, "probe-e2e", batches[0][0]["clusterName"])
}

func TestRun_ValidationAbortsBeforeSubmission(t *testing.T) {
	r, mock := newRunner(t)

	e := clusterExperiment("bad")
	e.Identifiers = map[string]string{} // missing required identifier

	result := r.Run(context.Background(), e)
	require.Error(t, result.Err)
	assert.False(t, result.Passed())
	assert.Nil(t, result.Outcome)
	assert.Empty(t, mock.Batches(), "a malformed payload must never reach the wire")
}

func TestRun_RejectionSkipsVerification(t *testing.T) {
	r, mock := newRunner(t)
	mock.SetIngestResponse(http.StatusTooManyRequests, `{"error":"rate limited"}`)

	result := r.Run(context.Background(), clusterExperiment("rejected"))

	require.NoError(t, result.Err)
	require.NotNil(t, result.Outcome)
	assert.False(t, result.Outcome.Accepted)
	assert.Nil(t, result.Verification, "verification is never attempted after rejection")
	assert.False(t, result.Passed())
	assert.Equal(t, 0, mock.QueryCount("probe-rejected"))
}

func TestRun_NoExpectations(t *testing.T) {
	r, _ := newRunner(t)

	e := clusterExperiment("plain")
	e.Expectations = nil

	result := r.Run(context.Background(), e)
	require.NoError(t, result.Err)
	assert.Nil(t, result.Verification)
	assert.True(t, result.Passed(), "an accepted run with no expectations passes")
}

func TestRunAll_IndependentRuns(t *testing.T) {
	r, mock := newRunner(t)
	mock.ScriptQuery("probe-good", `{"results":[{"name":"probe-good"}]}`)
	// probe-never stays unscripted: zero rows until its deadline.

	bad := clusterExperiment("bad")
	bad.EntityType = "UNKNOWN_TYPE"

	results := r.RunAll(context.Background(), []experiment.Experiment{
		clusterExperiment("good"),
		bad,
		clusterExperiment("never"),
	}, 3)

	require.Len(t, results, 3)
	assert.True(t, results[0].Passed())
	assert.Error(t, results[1].Err, "one run's failure never aborts siblings")
	assert.False(t, results[2].Passed())
	assert.True(t, results[2].Verification.Results[0].TimedOut)
	assert.Equal(t, verify.NoData, results[2].Verification.Results[0].Observed)
}

func TestRun_ArchivesToHistory(t *testing.T) {
	r, mock := newRunner(t)
	mock.ScriptQuery("probe-archived", `{"results":[{"name":"probe-archived"}]}`)

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()
	r.SetStore(store)

	result := r.Run(context.Background(), clusterExperiment("archived"))
	require.True(t, result.Passed())

	records, err := store.List("archived")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, result.RunID, records[0].RunID)
	assert.True(t, records[0].Outcome.Accepted)
	assert.Equal(t, 1, records[0].Verification.Passed)
}

type recordingReporter struct {
	started  []string
	finished map[string]bool
}

func (r *recordingReporter) RunStarted(name string) { r.started = append(r.started, name) }
func (r *recordingReporter) RunFinished(name string, passed bool) {
	if r.finished == nil {
		r.finished = make(map[string]bool)
	}
	r.finished[name] = passed
}

func TestRun_ReportsLifecycle(t *testing.T) {
	r, mock := newRunner(t)
	mock.ScriptQuery("probe-observed", `{"results":[{"name":"probe-observed"}]}`)

	rep := &recordingReporter{}
	r.SetReporter(rep)

	r.Run(context.Background(), clusterExperiment("observed"))
	assert.Equal(t, []string{"observed"}, rep.started)
	assert.Equal(t, map[string]bool{"observed": true}, rep.finished)
}
