// Package ingest delivers synthesized payload batches to the platform's
// write-path endpoint and normalizes the result. One request per call, no
// batching across calls, no automatic retries: a retry here would mask the
// acceptance signal verification depends on.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"entprobe/internal/config"
	"entprobe/internal/core"
	"entprobe/internal/debug"
)

// maxResponseBody bounds how much of an ingest response is retained.
const maxResponseBody = 64 * 1024

// FailureKind classifies why a submission was not accepted.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureRejection FailureKind = "rejection" // server answered non-2xx
	FailureTransport FailureKind = "transport" // request never completed
	FailureTimeout   FailureKind = "timeout"   // per-request deadline hit
)

// Outcome is the normalized result of one submission attempt. Detail holds
// the response body or transport error verbatim so reports can distinguish
// "rejected by server" from "never reached server".
type Outcome struct {
	StatusCode  int         `json:"statusCode"`
	Accepted    bool        `json:"accepted"`
	Failure     FailureKind `json:"failure,omitempty"`
	Detail      string      `json:"detail,omitempty"`
	SubmittedAt time.Time   `json:"submittedAt"`
}

// Err converts a non-accepted outcome into its typed error, or nil.
func (o Outcome) Err() error {
	switch o.Failure {
	case FailureNone:
		return nil
	case FailureRejection:
		return &RejectionError{StatusCode: o.StatusCode, Body: o.Detail}
	default:
		return &TransportError{Kind: o.Failure, Detail: o.Detail}
	}
}

// RejectionError is a non-2xx answer from the ingest endpoint, body kept
// verbatim.
type RejectionError struct {
	StatusCode int
	Body       string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("ingest rejected with status %d: %s", e.StatusCode, e.Body)
}

// TransportError is a network or timeout failure; the payload may never
// have reached the server.
type TransportError struct {
	Kind   FailureKind
	Detail string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ingest %s failure: %s", e.Kind, e.Detail)
}

// Client submits payload batches to the ingest endpoint.
type Client struct {
	cfg    config.Config
	client *http.Client
	debug  *debug.Logger
	clock  core.Clock
}

func NewClient(cfg config.Config, client *http.Client, dbg *debug.Logger) *Client {
	if client == nil {
		client = &http.Client{}
	}
	return &Client{cfg: cfg, client: client, debug: dbg, clock: core.RealClock{}}
}

// SetClock replaces the wall clock, for tests.
func (c *Client) SetClock(clock core.Clock) { c.clock = clock }

// Submit delivers one batch of payloads as a JSON array over an
// authenticated POST. Any 2xx is accepted; everything else, including
// transport failure, is a non-accepted outcome with the failure detail
// captured. Submit never returns an error: the Outcome is the result.
func (c *Client) Submit(ctx context.Context, payloads []core.Payload) Outcome {
	submittedAt := c.clock.Now()

	body, err := core.MarshalBatch(payloads)
	if err != nil {
		return Outcome{
			Failure:     FailureTransport,
			Detail:      err.Error(),
			SubmittedAt: submittedAt,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.IngestURL, bytes.NewReader(body))
	if err != nil {
		return Outcome{
			Failure:     FailureTransport,
			Detail:      err.Error(),
			SubmittedAt: submittedAt,
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.cfg.IngestKey)

	c.debug.LogRequest("ingest", req)

	start := c.clock.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		kind := FailureTransport
		if errors.Is(err, context.DeadlineExceeded) {
			kind = FailureTimeout
		}
		c.debug.LogError("ingest", err.Error(), c.clock.Since(start))
		return Outcome{
			Failure:     kind,
			Detail:      err.Error(),
			SubmittedAt: submittedAt,
		}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	c.debug.LogResponse("ingest", resp, respBody, c.clock.Since(start))

	outcome := Outcome{
		StatusCode:  resp.StatusCode,
		SubmittedAt: submittedAt,
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		outcome.Accepted = true
		outcome.Detail = string(respBody)
	} else {
		outcome.Failure = FailureRejection
		outcome.Detail = string(respBody)
	}
	return outcome
}
