// Package core defines the fundamental types shared across the engine.
package core

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
)

// Payload is one fully materialized telemetry event, field name to scalar
// value. Immutable by convention after synthesis; callers that need to
// modify one must Clone first.
type Payload map[string]any

// Clone returns a shallow copy of the payload.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// MarshalBatch encodes payloads as the JSON array the ingest endpoint
// expects. Map keys are emitted in sorted order, so identical payloads
// produce identical bytes.
func MarshalBatch(payloads []Payload) ([]byte, error) {
	data, err := json.Marshal(payloads)
	if err != nil {
		return nil, fmt.Errorf("encoding payload batch: %w", err)
	}
	return data, nil
}

// NewRunID returns a random RFC 4122 v4 UUID string used to correlate one
// experiment run across submission, verification, and the history store.
func NewRunID() string {
	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x", id[0:4], id[4:6], id[6:8], id[8:10], id[10:16])
}
