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

// Relationship is one edge observed in the entity graph.
type Relationship struct {
	Type   string
	Source string
	Target string
}

// GraphClient issues structured lookups against the graph endpoint.
type GraphClient struct {
	cfg    config.Config
	client *http.Client
	debug  *debug.Logger
}

func NewGraphClient(cfg config.Config, client *http.Client, dbg *debug.Logger) *GraphClient {
	if client == nil {
		client = &http.Client{}
	}
	return &GraphClient{cfg: cfg, client: client, debug: dbg}
}

type graphRequest struct {
	AccountID string      `json:"accountId"`
	Lookup    graphLookup `json:"lookup"`
}

type graphLookup struct {
	Entity  string   `json:"entity"`
	Include []string `json:"include"`
}

// Relationships looks up the named entity and returns every relationship
// edge the platform reports for it. An entity the platform does not know
// yet yields zero relationships, not an error, so poll loops can keep
// waiting for synthesis to catch up.
func (c *GraphClient) Relationships(ctx context.Context, entityName string) ([]Relationship, error) {
	doc, err := json.Marshal(graphRequest{
		AccountID: c.cfg.AccountID,
		Lookup:    graphLookup{Entity: entityName, Include: []string{"relationships"}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding graph request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GraphURL, bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("building graph request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.cfg.GraphKey)

	c.debug.LogRequest("graph", req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph lookup %q: %w", entityName, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	c.debug.LogResponse("graph", resp, respBody, 0)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("graph lookup %q: status %d: %s", entityName, resp.StatusCode, respBody)
	}
	if !gjson.ValidBytes(respBody) {
		return nil, fmt.Errorf("graph lookup %q: invalid JSON in response", entityName)
	}

	entity := gjson.GetBytes(respBody, "data.entity")
	if !entity.Exists() || entity.Type == gjson.Null {
		return nil, nil
	}

	var rels []Relationship
	entity.Get("relationships").ForEach(func(_, edge gjson.Result) bool {
		rels = append(rels, Relationship{
			Type:   edge.Get("type").String(),
			Source: edge.Get("source.name").String(),
			Target: edge.Get("target.name").String(),
		})
		return true
	})
	return rels, nil
}
