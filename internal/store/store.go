// Package store defines the durable storage contract for workflow records.
package store

import (
	"context"
	"errors"

	"github.com/jonathan/resume-analysis/internal/types"
)

// ErrNotFound is returned when no record exists for a workflow id
var ErrNotFound = errors.New("workflow not found")

// ErrVersionConflict is returned when a commit is based on a stale version
var ErrVersionConflict = errors.New("workflow version conflict")

// Store persists workflow records and their step audit trail.
// Commit writes a record's state, status and next step in one atomic operation:
// a record with Version 0 is inserted, otherwise the stored version must equal
// rec.Version. On success rec.Version is incremented and rec.UpdatedAt set.
type Store interface {
	Load(ctx context.Context, id string) (*types.WorkflowRecord, error)
	Commit(ctx context.Context, rec *types.WorkflowRecord) error
	ListRunning(ctx context.Context) ([]*types.WorkflowRecord, error)
	RecordStep(ctx context.Context, attempt types.StepAttempt) error
	ListSteps(ctx context.Context, id string) ([]types.StepAttempt, error)
	Close() error
}
