package runstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is the in-process Store used for ordinary (non-resumable) runs
// and for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func memoryKey(runID, nodeID string) string {
	return runID + "\x00" + nodeID
}

// Put stores a copy of rec.
func (s *MemoryStore) Put(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[memoryKey(rec.RunID, rec.NodeID)] = *rec
	return nil
}

// Get returns a copy of the record for (runID, nodeID).
func (s *MemoryStore) Get(_ context.Context, runID, nodeID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[memoryKey(runID, nodeID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// List returns all records of a run, ordered by node id.
func (s *MemoryStore) List(_ context.Context, runID string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := runID + "\x00"
	var out []*Record
	for key, rec := range s.records {
		if strings.HasPrefix(key, prefix) {
			copied := rec
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
