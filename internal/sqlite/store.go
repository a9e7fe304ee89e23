// Package sqlite provides an embedded SQLite implementation of the workflow store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/resume-analysis/internal/store"
	"github.com/jonathan/resume-analysis/internal/types"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed schema.sql
var schemaSQL string

var _ store.Store = (*Store)(nil)

const workflowColumns = `id, stage, status, next_step, step_input, failure, resume, application_form,
	resume_info, questions, answers, version, created_at, updated_at`

// Store persists workflows in a single SQLite database file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at dsn.
// A "sqlite://" prefix is stripped; "file:" URIs are passed through.
func Open(ctx context.Context, dsn string) (*Store, error) {
	path := strings.TrimPrefix(dsn, "sqlite://")
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection serializes writers and keeps per-connection pragmas in effect.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return &Store{db: db, now: time.Now}, nil
}

// Migrate creates the workflow tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Load retrieves the latest committed record of a workflow
func (s *Store) Load(ctx context.Context, id string) (*types.WorkflowRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = ?`, id)
	rec, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
	}
	return rec, nil
}

// Commit inserts a new record (Version 0) or compare-and-swaps an existing one
func (s *Store) Commit(ctx context.Context, rec *types.WorkflowRecord) error {
	questions, answers, err := marshalLists(rec.State)
	if err != nil {
		return err
	}
	now := s.now()

	if rec.Version == 0 {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO workflows (id, stage, status, next_step, step_input, failure, resume,
			                       application_form, resume_info, questions, answers, version,
			                       created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			rec.ID, rec.State.Stage.String(), string(rec.Status), rec.NextStep, rec.StepInput, rec.Failure,
			rec.State.ResumeBytes, rec.State.ApplicationFormBytes, rec.State.ResumeInfo,
			string(questions), string(answers), now.UnixNano(), now.UnixNano(),
		)
		if err != nil {
			if isDuplicateKey(err) {
				return store.ErrVersionConflict
			}
			return fmt.Errorf("failed to insert workflow %s: %w", rec.ID, err)
		}
		rec.Version = 1
		rec.CreatedAt = time.Unix(0, now.UnixNano())
		rec.UpdatedAt = rec.CreatedAt
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE workflows
		 SET stage = ?, status = ?, next_step = ?, step_input = ?, failure = ?, resume = ?,
		     application_form = ?, resume_info = ?, questions = ?, answers = ?,
		     version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		rec.State.Stage.String(), string(rec.Status), rec.NextStep, rec.StepInput, rec.Failure,
		rec.State.ResumeBytes, rec.State.ApplicationFormBytes, rec.State.ResumeInfo,
		string(questions), string(answers), now.UnixNano(), rec.ID, rec.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow %s: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update workflow %s: %w", rec.ID, err)
	}
	if n == 0 {
		return store.ErrVersionConflict
	}
	rec.Version++
	rec.UpdatedAt = time.Unix(0, now.UnixNano())
	return nil
}

// ListRunning returns every workflow whose step chain is active
func (s *Store) ListRunning(ctx context.Context) ([]*types.WorkflowRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE status = ? ORDER BY id`,
		string(types.RunStatusRunning))
	if err != nil {
		return nil, fmt.Errorf("failed to list running workflows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.WorkflowRecord
	for rows.Next() {
		rec, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordStep appends a step attempt to the audit trail
func (s *Store) RecordStep(ctx context.Context, attempt types.StepAttempt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workflow_step_attempts
		     (workflow_id, step, attempt, status, error_message, started_at, completed_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.WorkflowID, attempt.Step, attempt.Attempt, attempt.Status, attempt.Error,
		attempt.StartedAt.UnixNano(), attempt.CompletedAt.UnixNano(), attempt.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to record step attempt: %w", err)
	}
	return nil
}

// ListSteps retrieves the step attempts of a workflow in execution order
func (s *Store) ListSteps(ctx context.Context, id string) ([]types.StepAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT workflow_id, step, attempt, status, error_message, started_at, completed_at, duration_ms
		 FROM workflow_step_attempts
		 WHERE workflow_id = ?
		 ORDER BY id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list step attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	steps := []types.StepAttempt{}
	for rows.Next() {
		var (
			a                  types.StepAttempt
			started, completed int64
		)
		if err := rows.Scan(&a.WorkflowID, &a.Step, &a.Attempt, &a.Status, &a.Error,
			&started, &completed, &a.DurationMs); err != nil {
			return nil, err
		}
		a.StartedAt = time.Unix(0, started)
		a.CompletedAt = time.Unix(0, completed)
		steps = append(steps, a)
	}
	return steps, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row scanner) (*types.WorkflowRecord, error) {
	var (
		rec                           types.WorkflowRecord
		stage, status                 string
		questionsJSON, answersJSON    string
		createdNanos, updatedNanos    int64
		resumeBytes, applicationBytes []byte
	)
	err := row.Scan(&rec.ID, &stage, &status, &rec.NextStep, &rec.StepInput, &rec.Failure,
		&resumeBytes, &applicationBytes, &rec.State.ResumeInfo,
		&questionsJSON, &answersJSON, &rec.Version, &createdNanos, &updatedNanos)
	if err != nil {
		return nil, err
	}

	if rec.State.Stage, err = types.ParseStage(stage); err != nil {
		return nil, err
	}
	rec.Status = types.RunStatus(status)
	rec.CreatedAt = time.Unix(0, createdNanos)
	rec.UpdatedAt = time.Unix(0, updatedNanos)
	if len(resumeBytes) > 0 {
		rec.State.ResumeBytes = resumeBytes
	}
	if len(applicationBytes) > 0 {
		rec.State.ApplicationFormBytes = applicationBytes
	}
	if err := json.Unmarshal([]byte(questionsJSON), &rec.State.Questions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal questions: %w", err)
	}
	if err := json.Unmarshal([]byte(answersJSON), &rec.State.Answers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
	}
	rec.State = rec.State.Clone()
	return &rec, nil
}

func marshalLists(state types.WorkflowState) ([]byte, []byte, error) {
	questions := state.Questions
	if questions == nil {
		questions = []types.Question{}
	}
	answers := state.Answers
	if answers == nil {
		answers = []types.Answer{}
	}
	qJSON, err := json.Marshal(questions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal questions: %w", err)
	}
	aJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal answers: %w", err)
	}
	return qJSON, aJSON, nil
}

// isDuplicateKey checks if a SQLite error is a unique constraint violation.
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
