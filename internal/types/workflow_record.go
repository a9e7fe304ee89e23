//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// RunStatus describes whether the step chain of a workflow is active.
// It is distinct from Stage, which tracks data progress.
type RunStatus string

// RunStatus values
const (
	// RunStatusPaused means the workflow awaits an external lifecycle call
	RunStatusPaused RunStatus = "paused"
	// RunStatusRunning means NextStep is pending execution
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted means the result step ended the workflow
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed means the failover step ended the workflow
	RunStatusFailed RunStatus = "failed"
)

// Terminal reports whether no further transitions are accepted
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// WorkflowRecord is the durable unit committed after every lifecycle call and step.
// State and NextStep are always written together.
type WorkflowRecord struct {
	ID        string        `json:"id"`
	State     WorkflowState `json:"state"`
	Status    RunStatus     `json:"status"`
	NextStep  string        `json:"next_step,omitempty"`
	StepInput string        `json:"step_input,omitempty"`
	Failure   string        `json:"failure,omitempty"`
	Version   int64         `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewWorkflowRecord returns the not-yet-persisted record of a freshly addressed workflow
func NewWorkflowRecord(id string) *WorkflowRecord {
	return &WorkflowRecord{
		ID:     id,
		State:  InitialState(),
		Status: RunStatusPaused,
	}
}

// Clone returns a deep copy of the record
func (r *WorkflowRecord) Clone() *WorkflowRecord {
	out := *r
	out.State = r.State.Clone()
	return &out
}

// StepAttempt status values
const (
	StepStatusCompleted = "completed"
	StepStatusFailed    = "failed"
	StepStatusTimedOut  = "timed_out"
	StepStatusDiscarded = "discarded"
)

// StepAttempt is an audit entry for one execution attempt of a workflow step
type StepAttempt struct {
	WorkflowID  string    `json:"workflow_id"`
	Step        string    `json:"step"`
	Attempt     int       `json:"attempt"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
}
