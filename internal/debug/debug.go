// Package debug provides request/response wire logging for the ingest and
// read-side clients. Credential headers are redacted before anything is
// written.
package debug

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const maxBodyLogSize = 1024

// Headers whose values are never logged.
var redactedHeaders = map[string]bool{
	"Api-Key":       true,
	"X-Insert-Key":  true,
	"X-Query-Key":   true,
	"Authorization": true,
}

// Logger writes wire-level traffic for --verbose runs. A nil *Logger is
// valid and logs nothing, so call sites need no guards.
type Logger struct {
	out io.Writer
	mu  sync.Mutex
}

func NewLogger(out io.Writer) *Logger {
	return &Logger{out: out}
}

// LogRequest logs an outgoing request for one component ("ingest",
// "query", "graph").
func (d *Logger) LogRequest(component string, req *http.Request) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n[%s] >>> %s %s\n", component, req.Method, req.URL.String())
	writeHeaders(&buf, req.Header)

	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		if err == nil && len(body) > 0 {
			req.Body = io.NopCloser(bytes.NewReader(body))
			fmt.Fprintf(&buf, "  Body: %s\n", truncateBody(body))
		}
	}
	fmt.Fprint(d.out, buf.String())
}

// LogResponse logs a received response with its (possibly truncated) body.
func (d *Logger) LogResponse(component string, resp *http.Response, body []byte, duration time.Duration) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[%s] <<< %d %s (%s)\n",
		component, resp.StatusCode, http.StatusText(resp.StatusCode), duration.Round(time.Millisecond))
	writeHeaders(&buf, resp.Header)
	if len(body) > 0 {
		fmt.Fprintf(&buf, "  Body: %s\n", truncateBody(body))
	}
	fmt.Fprint(d.out, buf.String())
}

// LogError logs a transport-level failure.
func (d *Logger) LogError(component, msg string, duration time.Duration) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "[%s] !!! %s (%s)\n", component, msg, duration.Round(time.Millisecond))
}

func writeHeaders(buf *bytes.Buffer, headers http.Header) {
	if len(headers) == 0 {
		return
	}
	buf.WriteString("  Headers:\n")
	for name, values := range headers {
		value := strings.Join(values, ", ")
		if redactedHeaders[http.CanonicalHeaderKey(name)] {
			value = "[redacted]"
		}
		fmt.Fprintf(buf, "    %s: %s\n", name, value)
	}
}

func truncateBody(body []byte) string {
	if len(body) > maxBodyLogSize {
		return string(body[:maxBodyLogSize]) + "... (truncated)"
	}
	return string(body)
}
