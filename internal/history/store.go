// Package history archives completed experiment runs in a local bbolt
// database so past probes against the platform can be inspected later.
// Diagnosing an opaque pipeline depends on reproducing the exact request
// that was sent.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"entprobe/internal/core"
	"entprobe/internal/ingest"
	"entprobe/internal/verify"
)

// RunRecord is the archived form of one experiment run.
type RunRecord struct {
	RunID        string          `json:"runId"`
	Experiment   string          `json:"experiment"`
	EntityType   string          `json:"entityType"`
	Payload      core.Payload    `json:"payload,omitempty"`
	Outcome      *ingest.Outcome `json:"outcome,omitempty"`
	Verification *verify.Summary `json:"verification,omitempty"`
	Error        string          `json:"error,omitempty"`
	StartedAt    time.Time       `json:"startedAt"`
	FinishedAt   time.Time       `json:"finishedAt"`
}

// Store is an append-only archive of run records, one bucket per
// experiment name, keyed by start time plus run ID so iteration order is
// chronological.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the archive at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	return &Store{db: db}, nil
}

// Append archives one finished run.
func (s *Store) Append(rec RunRecord) error {
	if rec.Experiment == "" {
		return fmt.Errorf("run record has no experiment name")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding run record: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(rec.Experiment))
		if err != nil {
			return fmt.Errorf("creating bucket %q: %w", rec.Experiment, err)
		}
		key := rec.StartedAt.UTC().Format(time.RFC3339Nano) + "/" + rec.RunID
		return b.Put([]byte(key), data)
	})
}

// List returns all archived runs for one experiment, oldest first.
func (s *Store) List(experiment string) ([]RunRecord, error) {
	var records []RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(experiment))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decoding run record %q: %w", k, err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Experiments returns the names of all experiments with archived runs.
func (s *Store) Experiments() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
