// Package store holds the authoritative in-memory record collection and
// mirrors it into the durable cache.
//
// Every mutation persists the whole collection as one JSON snapshot under
// the "applications" key. The in-memory collection is swapped only after
// that write succeeds, so memory and cache never disagree.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/jobsheet/jobsheet/internal/cache"
	"github.com/jobsheet/jobsheet/internal/record"
	"github.com/jobsheet/jobsheet/internal/remote"
)

// Persistence keys.
const (
	KeyConfig       = "config"
	KeyApplications = "applications"
	KeyPending      = "pending"
)

// ErrDuplicateID is returned when a record would share its id with
// another record in the collection.
var ErrDuplicateID = errors.New("duplicate record id")

// Store is the Record Store.
type Store struct {
	kv cache.KV

	mu      sync.RWMutex
	records []record.Record
	pending bool
}

// New returns an empty store backed by kv. Call Load to read the cache.
func New(kv cache.KV) *Store {
	return &Store{
		kv:      kv,
		records: []record.Record{},
	}
}

// Load reads the last persisted collection and makes it current. A missing
// snapshot yields an empty collection.
func (s *Store) Load(ctx context.Context) ([]record.Record, error) {
	data, ok, err := s.kv.Get(ctx, KeyApplications)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	records := []record.Record{}
	if ok && len(data) > 0 {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to decode cached records: %w", err)
		}
	}
	for i := range records {
		records[i].Status = record.NormalizeStatus(string(records[i].Status))
	}

	pending, _, err := s.kv.Get(ctx, KeyPending)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending flag: %w", err)
	}

	s.mu.Lock()
	s.records = records
	s.pending = string(pending) == "true"
	s.mu.Unlock()

	return record.Clone(records), nil
}

// Pending reports the persisted "not yet synced" flag.
func (s *Store) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// SetPending persists the "not yet synced" flag. Unchanged values are not
// written.
func (s *Store) SetPending(ctx context.Context, v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == v {
		return nil
	}
	if err := s.kv.Put(ctx, KeyPending, []byte(strconv.FormatBool(v))); err != nil {
		return fmt.Errorf("failed to persist pending flag: %w", err)
	}
	s.pending = v
	return nil
}

// All returns a copy of the current collection.
func (s *Store) All() []record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return record.Clone(s.records)
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Get returns the record with id.
func (s *Store) Get(id int64) (record.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := record.IndexOf(s.records, id); i >= 0 {
		return s.records[i], true
	}
	return record.Record{}, false
}

// ReplaceAll makes records the current collection and persists it.
func (s *Store) ReplaceAll(ctx context.Context, records []record.Record) ([]record.Record, error) {
	if id, dup := record.DuplicateID(records); dup {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, record.Clone(records))
}

// Add appends r and persists the collection.
func (s *Store) Add(ctx context.Context, r record.Record) ([]record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.IndexOf(s.records, r.ID) >= 0 {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateID, r.ID)
	}
	return s.commit(ctx, record.Append(s.records, r))
}

// UpdateByID applies patch to the record with id, keeping its id. An
// absent id leaves the collection alone and writes nothing.
func (s *Store) UpdateByID(ctx context.Context, id int64, patch record.Patch) ([]record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, found := record.Replace(s.records, id, patch)
	if !found {
		return record.Clone(s.records), nil
	}
	return s.commit(ctx, next)
}

// RemoveByID deletes the record with id. An absent id is a no-op.
func (s *Store) RemoveByID(ctx context.Context, id int64) ([]record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, found := record.Remove(s.records, id)
	if !found {
		return record.Clone(s.records), nil
	}
	return s.commit(ctx, next)
}

// commit persists next and swaps it in. Caller holds s.mu.
func (s *Store) commit(ctx context.Context, next []record.Record) ([]record.Record, error) {
	data, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}
	if err := s.kv.Put(ctx, KeyApplications, data); err != nil {
		return nil, fmt.Errorf("failed to persist records: %w", err)
	}
	s.records = next
	return record.Clone(next), nil
}

// LoadConfig returns the persisted remote configuration, or the zero
// Config when none was saved.
func (s *Store) LoadConfig(ctx context.Context) (remote.Config, error) {
	var cfg remote.Config
	data, ok, err := s.kv.Get(ctx, KeyConfig)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	if !ok || len(data) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return remote.Config{}, fmt.Errorf("failed to decode cached config: %w", err)
	}
	return cfg, nil
}

// SaveConfig persists cfg.
func (s *Store) SaveConfig(ctx context.Context, cfg remote.Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := s.kv.Put(ctx, KeyConfig, data); err != nil {
		return fmt.Errorf("failed to persist config: %w", err)
	}
	return nil
}
