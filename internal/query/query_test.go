package query

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entprobe/internal/config"
)

func readConfig(url string) config.Config {
	return config.Config{
		AccountID:      "42",
		QueryURL:       url,
		QueryKey:       "qk",
		GraphURL:       url,
		GraphKey:       "gk",
		RequestTimeout: 2 * time.Second,
	}
}

func TestQuery_ParsesRows(t *testing.T) {
	var gotReq queryRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotReq))
		io.WriteString(w, `{"results":[
			{"clusterName":"probe-1","queue.depth.sum":12,"queue.depth.count":3},
			{"clusterName":"probe-2","queue.depth.sum":null}
		]}`)
	}))
	defer server.Close()

	c := NewClient(readConfig(server.URL), nil, nil)
	rows, err := c.Query(context.Background(), "SELECT * FROM QueueSample")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "42", gotReq.AccountID)
	assert.Equal(t, "SELECT * FROM QueueSample", gotReq.Query)

	v, ok := rows[0].Field("clusterName")
	require.True(t, ok)
	assert.Equal(t, "probe-1", v)

	// Dotted field names are literal keys, not paths.
	v, ok = rows[0].Field("queue.depth.sum")
	require.True(t, ok)
	assert.Equal(t, float64(12), v)

	assert.True(t, rows[0].HasNonNull("queue.depth.sum"))
	assert.False(t, rows[1].HasNonNull("queue.depth.sum"), "explicit null is not non-null")
	assert.False(t, rows[1].HasNonNull("queue.depth.count"), "absent field is not non-null")

	assert.Contains(t, rows[0].Raw(), "probe-1")
}

func TestQuery_EmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"results":[]}`)
	}))
	defer server.Close()

	c := NewClient(readConfig(server.URL), nil, nil)
	rows, err := c.Query(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestQuery_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "maintenance")
	}))
	defer server.Close()

	c := NewClient(readConfig(server.URL), nil, nil)
	_, err := c.Query(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "maintenance")
}

func TestQuery_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>not json</html>")
	}))
	defer server.Close()

	c := NewClient(readConfig(server.URL), nil, nil)
	_, err := c.Query(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestGraph_Relationships(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gk", r.Header.Get("Api-Key"))
		io.WriteString(w, `{"data":{"entity":{"name":"probe-cluster","relationships":[
			{"type":"CONTAINS","source":{"name":"probe-cluster"},"target":{"name":"probe-topic"}},
			{"type":"HOSTS","source":{"name":"probe-cluster"},"target":{"name":"probe-broker"}}
		]}}}`)
	}))
	defer server.Close()

	c := NewGraphClient(readConfig(server.URL), nil, nil)
	rels, err := c.Relationships(context.Background(), "probe-cluster")
	require.NoError(t, err)
	require.Len(t, rels, 2)
	assert.Equal(t, Relationship{Type: "CONTAINS", Source: "probe-cluster", Target: "probe-topic"}, rels[0])
}

func TestGraph_UnknownEntity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{"entity":null}}`)
	}))
	defer server.Close()

	c := NewGraphClient(readConfig(server.URL), nil, nil)
	rels, err := c.Relationships(context.Background(), "nope")
	require.NoError(t, err, "an entity the platform has not synthesized yet is not an error")
	assert.Empty(t, rels)
}
