package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"entprobe/internal/config"
	"entprobe/internal/debug"
)

// maxResponseBody bounds how much of a read-side response is parsed.
const maxResponseBody = 10 * 1024 * 1024

// Client issues tabular queries against the query endpoint.
type Client struct {
	cfg    config.Config
	client *http.Client
	debug  *debug.Logger
}

func NewClient(cfg config.Config, client *http.Client, dbg *debug.Logger) *Client {
	if client == nil {
		client = &http.Client{}
	}
	return &Client{cfg: cfg, client: client, debug: dbg}
}

type queryRequest struct {
	AccountID string `json:"accountId"`
	Query     string `json:"query"`
}

// Query POSTs one query string and returns the result rows. Transport
// failures and non-2xx answers both come back as errors; callers in a poll
// loop treat either as "not yet satisfied".
func (c *Client) Query(ctx context.Context, q string) ([]Row, error) {
	body, err := json.Marshal(queryRequest{AccountID: c.cfg.AccountID, Query: q})
	if err != nil {
		return nil, fmt.Errorf("encoding query request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.QueryURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.cfg.QueryKey)

	c.debug.LogRequest("query", req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", q, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	c.debug.LogResponse("query", resp, respBody, 0)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("query %q: status %d: %s", q, resp.StatusCode, respBody)
	}
	if !gjson.ValidBytes(respBody) {
		return nil, fmt.Errorf("query %q: invalid JSON in response", q)
	}

	results := gjson.GetBytes(respBody, "results")
	if !results.Exists() || !results.IsArray() {
		return nil, fmt.Errorf("query %q: response has no results array", q)
	}

	var rows []Row
	results.ForEach(func(_, value gjson.Result) bool {
		rows = append(rows, NewRow(value))
		return true
	})
	return rows, nil
}
