package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jonathan/resume-analysis/internal/store"
	"github.com/jonathan/resume-analysis/internal/types"
)

const commitTimeout = 10 * time.Second

type actionResult struct {
	success Success
	err     error
}

// drive runs the step chain of one workflow until it leaves the running status,
// the engine shuts down, or a commit cannot be written.
func (e *Engine) drive(id string) {
	defer e.release(id)

	for {
		if e.ctx.Err() != nil {
			return
		}

		rec, err := e.store.Load(e.ctx, id)
		if err != nil {
			if e.ctx.Err() == nil {
				log.Printf("[workflow] %s: failed to load record: %v", id, err)
			}
			return
		}
		if rec.Status != types.RunStatusRunning {
			return
		}

		stepName := rec.NextStep
		step, ok := e.def.Steps[stepName]
		var outcome Outcome
		if !ok {
			outcome = Failover{Err: fmt.Errorf("unknown step %q", stepName)}
		} else {
			outcome = e.execute(rec, step)
		}
		if outcome == nil {
			// engine is shutting down; the record still points at this step
			return
		}

		if err := e.commitOutcome(id, stepName, outcome); err != nil {
			log.Printf("[workflow] %s: failed to commit %s: %v", id, stepName, err)
			return
		}
	}
}

// execute runs a step's action under its policy and returns the final outcome.
// It returns nil when the engine context is cancelled.
func (e *Engine) execute(rec *types.WorkflowRecord, step Step) Outcome {
	policy := e.def.PolicyFor(step.Name)
	in := Input{WorkflowID: rec.ID, State: rec.State.Clone(), Data: rec.StepInput}

	stepCtx, cancel := e.ctx, context.CancelFunc(func() {})
	if policy.Timeout > 0 {
		stepCtx, cancel = context.WithTimeout(e.ctx, policy.Timeout)
	}
	defer cancel()

	if e.verbose {
		log.Printf("[workflow] %s: running %s", rec.ID, step.Name)
	}

	for attempt := 1; ; attempt++ {
		started := e.now()
		success, err := runAction(stepCtx, step.Action, in)
		timedOut := err != nil && e.ctx.Err() == nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded)

		switch {
		case err == nil:
			e.recordAttempt(rec.ID, step.Name, attempt, started, types.StepStatusCompleted, nil)
			return success
		case e.ctx.Err() != nil:
			e.recordAttempt(rec.ID, step.Name, attempt, started, types.StepStatusDiscarded, err)
			return nil
		case timedOut:
			timeoutErr := &StepTimeoutError{Step: step.Name, Timeout: policy.Timeout}
			e.recordAttempt(rec.ID, step.Name, attempt, started, types.StepStatusTimedOut, timeoutErr)
			return Failover{Err: timeoutErr}
		}

		e.recordAttempt(rec.ID, step.Name, attempt, started, types.StepStatusFailed, err)
		outcome := policy.decide(attempt, err)
		if _, retry := outcome.(Retry); !retry {
			return outcome
		}

		log.Printf("[workflow] %s: %s attempt %d failed, retrying: %v", rec.ID, step.Name, attempt, err)
		select {
		case <-stepCtx.Done():
			if e.ctx.Err() != nil {
				return nil
			}
			return Failover{Err: &StepTimeoutError{Step: step.Name, Timeout: policy.Timeout}}
		case <-time.After(policy.RetryDelay):
		}
	}
}

// runAction runs the action on its own goroutine so an expired deadline abandons it.
// The buffered channel lets a late action finish without blocking; its result is dropped.
func runAction(ctx context.Context, action Action, in Input) (Success, error) {
	done := make(chan actionResult, 1)
	go func() {
		s, err := action(ctx, in)
		done <- actionResult{success: s, err: err}
	}()

	select {
	case r := <-done:
		return r.success, r.err
	case <-ctx.Done():
		return Success{}, ctx.Err()
	}
}

// commitOutcome applies an outcome to the freshly loaded record under the workflow lock.
// Outcomes for a step the record no longer expects are discarded.
func (e *Engine) commitOutcome(id, stepName string, outcome Outcome) error {
	unlock := e.locks.Lock(id)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(e.ctx), commitTimeout)
	defer cancel()

	rec, err := e.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status != types.RunStatusRunning || rec.NextStep != stepName {
		log.Printf("[workflow] %s: discarding stale outcome of %s (status %s, next %q)", id, stepName, rec.Status, rec.NextStep)
		return nil
	}

	ev := Event{WorkflowID: id, Step: stepName}
	switch o := outcome.(type) {
	case Success:
		if o.Apply != nil {
			rec.State = o.Apply(rec.State)
		}
		if o.Next == "" {
			status := o.Status
			if status == "" {
				status = types.RunStatusCompleted
			}
			rec.Status = status
			rec.NextStep = ""
			rec.StepInput = ""
			rec.Failure = o.Failure
		} else {
			rec.NextStep = o.Next
			rec.StepInput = o.Input
		}
	case Failover:
		reason := errorText(o.Err)
		target := e.def.PolicyFor(stepName).FailoverTo
		if target == "" || stepName == target {
			log.Printf("[workflow] %s: %s failed, ending workflow: %s", id, stepName, reason)
			rec.Status = types.RunStatusFailed
			rec.NextStep = ""
			if rec.Failure = rec.StepInput; rec.Failure == "" {
				rec.Failure = reason
			}
			rec.StepInput = ""
		} else {
			log.Printf("[workflow] %s: %s failed over to %s: %s", id, stepName, target, reason)
			rec.NextStep = target
			rec.StepInput = reason
		}
		ev.Message = reason
	default:
		return fmt.Errorf("unexpected outcome %T", outcome)
	}

	if err := e.store.Commit(ctx, rec); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			log.Printf("[workflow] %s: version conflict committing %s", id, stepName)
		}
		return err
	}

	ev.NextStep = rec.NextStep
	ev.Stage = rec.State.Stage
	ev.Time = rec.UpdatedAt
	switch rec.Status {
	case types.RunStatusCompleted:
		ev.Type = EventComplete
	case types.RunStatusFailed:
		ev.Type = EventError
		ev.Message = rec.Failure
	default:
		ev.Type = EventStep
	}
	e.events.publish(ev)
	return nil
}

func (e *Engine) recordAttempt(id, step string, attempt int, started time.Time, status string, err error) {
	completed := e.now()
	a := types.StepAttempt{
		WorkflowID:  id,
		Step:        step,
		Attempt:     attempt,
		Status:      status,
		StartedAt:   started,
		CompletedAt: completed,
		DurationMs:  completed.Sub(started).Milliseconds(),
	}
	if err != nil {
		a.Error = err.Error()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(e.ctx), commitTimeout)
	defer cancel()
	if err := e.store.RecordStep(ctx, a); err != nil {
		log.Printf("[workflow] %s: failed to record attempt of %s: %v", id, step, err)
	}
}

func errorText(err error) string {
	if err == nil {
		return "unknown failure"
	}
	return err.Error()
}
