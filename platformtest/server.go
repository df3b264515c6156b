// Package platformtest provides a scriptable in-process stand-in for the
// observability platform: an ingest endpoint, a tabular query endpoint,
// and a graph endpoint whose answers are configured per test. Poll
// sequences ("empty three times, then one row") are expressed as response
// scripts that advance on every request.
package platformtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Server fakes the platform's three HTTP surfaces.
type Server struct {
	mux *http.ServeMux

	mu           sync.Mutex
	ingestStatus int
	ingestBody   string
	batches      [][]map[string]any
	queryScripts map[string]*script
	graphScripts map[string]*script
	queryCount   map[string]int
}

// script is a sequence of canned response bodies. The last entry repeats
// once the sequence is exhausted.
type script struct {
	responses []string
	idx       int
}

func (s *script) next() string {
	if s.idx < len(s.responses)-1 {
		r := s.responses[s.idx]
		s.idx++
		return r
	}
	return s.responses[len(s.responses)-1]
}

// NewServer creates a mock platform that accepts everything and knows
// nothing: ingest answers 202, queries return no rows, graph lookups find
// no entity. Tests script deviations from there.
func NewServer() *Server {
	s := &Server{
		mux:          http.NewServeMux(),
		ingestStatus: http.StatusAccepted,
		ingestBody:   `{"success":true}`,
		queryScripts: make(map[string]*script),
		graphScripts: make(map[string]*script),
		queryCount:   make(map[string]int),
	}
	s.mux.HandleFunc("/ingest", s.handleIngest)
	s.mux.HandleFunc("/query", s.handleQuery)
	s.mux.HandleFunc("/graph", s.handleGraph)
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// SetIngestResponse scripts the status and body every subsequent ingest
// POST receives.
func (s *Server) SetIngestResponse(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingestStatus = status
	s.ingestBody = body
}

// Batches returns every payload batch the ingest endpoint received.
func (s *Server) Batches() [][]map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]map[string]any, len(s.batches))
	copy(out, s.batches)
	return out
}

// ScriptQuery registers a response sequence for queries containing match.
// Each matching request consumes the next response; the last one repeats.
func (s *Server) ScriptQuery(match string, responses ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryScripts[match] = &script{responses: responses}
}

// ScriptGraph registers a response sequence for graph lookups of the
// named entity.
func (s *Server) ScriptGraph(entity string, responses ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphScripts[entity] = &script{responses: responses}
}

// QueryCount reports how many query requests matched the given script key.
func (s *Server) QueryCount(match string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryCount[match]
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	var batch []map[string]any
	if err := json.Unmarshal(body, &batch); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, `{"error":"payload is not a JSON array: %s"}`, err)
		return
	}

	s.mu.Lock()
	s.batches = append(s.batches, batch)
	status, respBody := s.ingestStatus, s.ingestBody
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, respBody)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad query request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	body := `{"results":[]}`
	for match, sc := range s.queryScripts {
		if strings.Contains(req.Query, match) {
			s.queryCount[match]++
			body = sc.next()
			break
		}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, body)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	var req struct {
		Lookup struct {
			Entity string `json:"entity"`
		} `json:"lookup"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad graph request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	body := `{"data":{"entity":null}}`
	if sc, ok := s.graphScripts[req.Lookup.Entity]; ok {
		body = sc.next()
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, body)
}

func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Api-Key") == "" {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":"missing Api-Key header"}`)
		return false
	}
	return true
}
