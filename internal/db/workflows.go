package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jonathan/resume-analysis/internal/store"
	"github.com/jonathan/resume-analysis/internal/types"
)

const workflowColumns = `id, stage, status, next_step, step_input, failure, resume, application_form,
	resume_info, questions, answers, version, created_at, updated_at`

// Load retrieves the latest committed record of a workflow
func (db *DB) Load(ctx context.Context, id string) (*types.WorkflowRecord, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id)
	rec, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
	}
	return rec, nil
}

// Commit inserts a new record (Version 0) or updates an existing one in a single transaction
func (db *DB) Commit(ctx context.Context, rec *types.WorkflowRecord) error {
	questions, answers, err := marshalLists(rec.State)
	if err != nil {
		return err
	}

	if rec.Version == 0 {
		tag, err := db.pool.Exec(ctx,
			`INSERT INTO workflows (id, stage, status, next_step, step_input, failure, resume,
			                       application_form, resume_info, questions, answers, version)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
			 ON CONFLICT (id) DO NOTHING`,
			rec.ID, rec.State.Stage.String(), string(rec.Status), rec.NextStep, rec.StepInput, rec.Failure,
			rec.State.ResumeBytes, rec.State.ApplicationFormBytes, rec.State.ResumeInfo, questions, answers,
		)
		if err != nil {
			return fmt.Errorf("failed to insert workflow %s: %w", rec.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return store.ErrVersionConflict
		}
		return db.refreshTimestamps(ctx, rec, 1)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current int64
	err = tx.QueryRow(ctx, `SELECT version FROM workflows WHERE id = $1 FOR UPDATE`, rec.ID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrVersionConflict
		}
		return fmt.Errorf("failed to lock workflow %s: %w", rec.ID, err)
	}
	if current != rec.Version {
		return store.ErrVersionConflict
	}

	err = tx.QueryRow(ctx,
		`UPDATE workflows
		 SET stage = $1, status = $2, next_step = $3, step_input = $4, failure = $5, resume = $6,
		     application_form = $7, resume_info = $8, questions = $9, answers = $10,
		     version = version + 1, updated_at = NOW()
		 WHERE id = $11
		 RETURNING version, created_at, updated_at`,
		rec.State.Stage.String(), string(rec.Status), rec.NextStep, rec.StepInput, rec.Failure,
		rec.State.ResumeBytes, rec.State.ApplicationFormBytes, rec.State.ResumeInfo, questions, answers,
		rec.ID,
	).Scan(&rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update workflow %s: %w", rec.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit workflow %s: %w", rec.ID, err)
	}
	return nil
}

// ListRunning returns every workflow whose step chain is active
func (db *DB) ListRunning(ctx context.Context) ([]*types.WorkflowRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE status = $1 ORDER BY id`,
		string(types.RunStatusRunning))
	if err != nil {
		return nil, fmt.Errorf("failed to list running workflows: %w", err)
	}
	defer rows.Close()

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

func (db *DB) refreshTimestamps(ctx context.Context, rec *types.WorkflowRecord, version int64) error {
	err := db.pool.QueryRow(ctx,
		`SELECT created_at, updated_at FROM workflows WHERE id = $1`, rec.ID,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to read workflow %s: %w", rec.ID, err)
	}
	rec.Version = version
	return nil
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

func scanWorkflow(row pgx.Row) (*types.WorkflowRecord, error) {
	var (
		rec                      types.WorkflowRecord
		stage, status            string
		questionsJSON, answersJS []byte
	)
	err := row.Scan(&rec.ID, &stage, &status, &rec.NextStep, &rec.StepInput, &rec.Failure,
		&rec.State.ResumeBytes, &rec.State.ApplicationFormBytes, &rec.State.ResumeInfo,
		&questionsJSON, &answersJS, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if rec.State.Stage, err = types.ParseStage(stage); err != nil {
		return nil, err
	}
	rec.Status = types.RunStatus(status)
	if err := json.Unmarshal(questionsJSON, &rec.State.Questions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal questions: %w", err)
	}
	if err := json.Unmarshal(answersJS, &rec.State.Answers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
	}
	rec.State = rec.State.Clone()
	return &rec, nil
}
