// Package storetest holds behaviour tests shared by every store.Store implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonathan/resume-analysis/internal/store"
	"github.com/jonathan/resume-analysis/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises the Store contract against stores produced by newStore.
// Each subtest receives a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("LoadMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Load(context.Background(), "missing")
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("InsertAndLoad", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rec := types.NewWorkflowRecord("wf-1")
		rec.State = rec.State.WithResume([]byte("resume")).WithApplicationForm([]byte("form"))
		require.NoError(t, s.Commit(ctx, rec))
		assert.Equal(t, int64(1), rec.Version)

		loaded, err := s.Load(ctx, "wf-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), loaded.Version)
		assert.Equal(t, types.RunStatusPaused, loaded.Status)
		assert.Equal(t, types.StageReady, loaded.State.Stage)
		assert.Equal(t, []byte("resume"), loaded.State.ResumeBytes)
		assert.Equal(t, []byte("form"), loaded.State.ApplicationFormBytes)
		assert.False(t, loaded.CreatedAt.IsZero())
	})

	t.Run("CommitRoundTripsAllFields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rec := types.NewWorkflowRecord("wf-2")
		require.NoError(t, s.Commit(ctx, rec))

		rec.State = rec.State.
			WithStage(types.StageQuestionsGenerated).
			WithResumeInfo("5 years experience").
			WithQuestions([]types.Question{{Field: "Name"}, {Field: "Email"}}).
			WithAnswers([]types.Answer{{Question: "Name", Answer: "John"}, {Question: "Email", Answer: "j@x.com"}})
		rec.Status = types.RunStatusRunning
		rec.NextStep = "extract-resume-step"
		rec.StepInput = "- Name\n- Email"
		rec.Failure = "none"
		require.NoError(t, s.Commit(ctx, rec))
		assert.Equal(t, int64(2), rec.Version)

		loaded, err := s.Load(ctx, "wf-2")
		require.NoError(t, err)
		assert.Equal(t, rec.State, loaded.State)
		assert.Equal(t, types.RunStatusRunning, loaded.Status)
		assert.Equal(t, "extract-resume-step", loaded.NextStep)
		assert.Equal(t, "- Name\n- Email", loaded.StepInput)
		assert.Equal(t, "none", loaded.Failure)
	})

	t.Run("StaleVersionConflicts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rec := types.NewWorkflowRecord("wf-3")
		require.NoError(t, s.Commit(ctx, rec))

		first, err := s.Load(ctx, "wf-3")
		require.NoError(t, err)
		second, err := s.Load(ctx, "wf-3")
		require.NoError(t, err)

		first.State = first.State.WithResume([]byte("a"))
		require.NoError(t, s.Commit(ctx, first))

		second.State = second.State.WithResume([]byte("b"))
		err = s.Commit(ctx, second)
		assert.True(t, errors.Is(err, store.ErrVersionConflict))

		loaded, err := s.Load(ctx, "wf-3")
		require.NoError(t, err)
		assert.Equal(t, []byte("a"), loaded.State.ResumeBytes)
	})

	t.Run("DuplicateInsertConflicts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Commit(ctx, types.NewWorkflowRecord("wf-4")))
		err := s.Commit(ctx, types.NewWorkflowRecord("wf-4"))
		assert.True(t, errors.Is(err, store.ErrVersionConflict))
	})

	t.Run("ListRunning", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, id := range []string{"b", "a", "c"} {
			rec := types.NewWorkflowRecord(id)
			if id != "c" {
				rec.Status = types.RunStatusRunning
				rec.NextStep = "extract-application-step"
			}
			require.NoError(t, s.Commit(ctx, rec))
		}

		running, err := s.ListRunning(ctx)
		require.NoError(t, err)
		require.Len(t, running, 2)
		assert.Equal(t, "a", running[0].ID)
		assert.Equal(t, "b", running[1].ID)
		assert.Equal(t, "extract-application-step", running[0].NextStep)
	})

	t.Run("StepAuditTrail", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Commit(ctx, types.NewWorkflowRecord("wf-5")))

		start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, s.RecordStep(ctx, types.StepAttempt{
			WorkflowID: "wf-5", Step: "extract-application-step", Attempt: 1,
			Status: types.StepStatusFailed, Error: "boom",
			StartedAt: start, CompletedAt: start.Add(time.Second), DurationMs: 1000,
		}))
		require.NoError(t, s.RecordStep(ctx, types.StepAttempt{
			WorkflowID: "wf-5", Step: "extract-application-step", Attempt: 2,
			Status:    types.StepStatusCompleted,
			StartedAt: start.Add(2 * time.Second), CompletedAt: start.Add(3 * time.Second), DurationMs: 1000,
		}))

		steps, err := s.ListSteps(ctx, "wf-5")
		require.NoError(t, err)
		require.Len(t, steps, 2)
		assert.Equal(t, 1, steps[0].Attempt)
		assert.Equal(t, "boom", steps[0].Error)
		assert.Equal(t, types.StepStatusCompleted, steps[1].Status)
		assert.True(t, steps[0].StartedAt.Equal(start))

		empty, err := s.ListSteps(ctx, "other")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}
