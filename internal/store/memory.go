package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonathan/resume-analysis/internal/types"
)

// Memory is an in-process Store. Records are deep-copied on the way in and out.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*types.WorkflowRecord
	steps   map[string][]types.StepAttempt
	now     func() time.Time
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]*types.WorkflowRecord),
		steps:   make(map[string][]types.StepAttempt),
		now:     time.Now,
	}
}

// Load returns a copy of the latest committed record
func (m *Memory) Load(_ context.Context, id string) (*types.WorkflowRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Commit inserts or compare-and-swaps the record
func (m *Memory) Commit(_ context.Context, rec *types.WorkflowRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	current, exists := m.records[rec.ID]
	switch {
	case rec.Version == 0 && exists:
		return ErrVersionConflict
	case rec.Version != 0 && (!exists || current.Version != rec.Version):
		return ErrVersionConflict
	}

	if rec.Version == 0 {
		rec.CreatedAt = now
	}
	rec.Version++
	rec.UpdatedAt = now
	m.records[rec.ID] = rec.Clone()
	return nil
}

// ListRunning returns copies of all records with status running, ordered by id
func (m *Memory) ListRunning(_ context.Context) ([]*types.WorkflowRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*types.WorkflowRecord
	for _, rec := range m.records {
		if rec.Status == types.RunStatusRunning {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RecordStep appends a step attempt to the audit trail
func (m *Memory) RecordStep(_ context.Context, attempt types.StepAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.steps[attempt.WorkflowID] = append(m.steps[attempt.WorkflowID], attempt)
	return nil
}

// ListSteps returns the audit trail of a workflow in insertion order
func (m *Memory) ListSteps(_ context.Context, id string) ([]types.StepAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	steps := m.steps[id]
	out := make([]types.StepAttempt, len(steps))
	copy(out, steps)
	return out, nil
}

// Close is a no-op
func (m *Memory) Close() error {
	return nil
}
