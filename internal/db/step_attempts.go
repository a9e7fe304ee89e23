package db

import (
	"context"
	"fmt"

	"github.com/jonathan/resume-analysis/internal/types"
)

// RecordStep appends a step attempt to the audit trail
func (db *DB) RecordStep(ctx context.Context, attempt types.StepAttempt) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO workflow_step_attempts
		     (workflow_id, step, attempt, status, error_message, started_at, completed_at, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		attempt.WorkflowID, attempt.Step, attempt.Attempt, attempt.Status, attempt.Error,
		attempt.StartedAt, attempt.CompletedAt, attempt.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to record step attempt: %w", err)
	}
	return nil
}

// ListSteps retrieves the step attempts of a workflow in execution order
func (db *DB) ListSteps(ctx context.Context, id string) ([]types.StepAttempt, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT workflow_id, step, attempt, status, error_message, started_at, completed_at, duration_ms
		 FROM workflow_step_attempts
		 WHERE workflow_id = $1
		 ORDER BY id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list step attempts: %w", err)
	}
	defer rows.Close()

	steps := []types.StepAttempt{}
	for rows.Next() {
		var s types.StepAttempt
		if err := rows.Scan(&s.WorkflowID, &s.Step, &s.Attempt, &s.Status, &s.Error,
			&s.StartedAt, &s.CompletedAt, &s.DurationMs); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}
