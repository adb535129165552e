package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps runs in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]Run
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]Run)}
}

// SaveRun stores run, replacing any run with the same id.
func (s *MemoryStore) SaveRun(_ context.Context, run Run) error {
	if run.ID == "" {
		return ErrRunIDRequired
	}
	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (s *MemoryStore) ListRuns(_ context.Context) ([]RunInfo, error) {
	s.mu.RLock()
	out := make([]RunInfo, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run.RunInfo)
	}
	s.mu.RUnlock()

	sortRuns(out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func sortRuns(runs []RunInfo) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
}
