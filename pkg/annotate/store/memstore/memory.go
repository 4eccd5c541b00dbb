package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/internalerr"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu   sync.RWMutex
	runs map[string]store.Run
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{runs: make(map[string]store.Run)}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveRun stores a copy of r. Saving an existing ID fails.
func (s *Store) SaveRun(ctx context.Context, r store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		return fmt.Errorf("%w: run id required", internalerr.ErrInvalidInput)
	}
	if _, ok := s.runs[r.ID]; ok {
		return fmt.Errorf("%w: run %s already archived", internalerr.ErrInvalidInput, r.ID)
	}
	s.runs[r.ID] = copyRun(r)
	return nil
}

// GetRun returns a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return store.Run{}, fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	return copyRun(r), nil
}

// ListRuns returns up to limit runs, newest ID first, without records.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	runs := make([]store.Run, 0, len(s.runs))
	for _, r := range s.runs {
		r.Records = nil
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func copyRun(r store.Run) store.Run {
	out := r
	out.Records = make([]store.Record, len(r.Records))
	for i, rec := range r.Records {
		rec.Contributions = append([]store.Contribution(nil), rec.Contributions...)
		out.Records[i] = rec
	}
	return out
}
