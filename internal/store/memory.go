package store

import (
	"context"
	"slices"
	"sync"

	"github.com/villageroaster/bakeboard/internal/model"
)

// MemoryStore keeps everything in process. Nothing survives a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	state   *model.DailyState
	runs    []model.Run // oldest first
	maxRuns int
}

// NewMemory creates an empty MemoryStore.
func NewMemory(maxRuns int) *MemoryStore {
	return &MemoryStore{maxRuns: runsMax(maxRuns)}
}

func (s *MemoryStore) SaveState(_ context.Context, state model.DailyState) error {
	st := state.Clone()
	s.mu.Lock()
	s.state = &st
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LoadState(context.Context) (*model.DailyState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil, nil
	}
	st := s.state.Clone()
	return &st, nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.Run) error {
	run.Plan = slices.Clone(run.Plan)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	if over := len(s.runs) - s.maxRuns; over > 0 {
		s.runs = slices.Delete(s.runs, 0, over)
	}
	return nil
}

func (s *MemoryStore) ListRuns(_ context.Context, filter model.RunFilter) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := listLimit(filter, s.maxRuns)
	out := make([]model.Run, 0, min(limit, len(s.runs)))
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.runs[i]
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		r.Plan = slices.Clone(r.Plan)
		out = append(out, r)
	}
	return out, nil
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Ping(context.Context) error    { return nil }
func (s *MemoryStore) Close() error                  { return nil }
