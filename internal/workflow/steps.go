package workflow

import (
	"context"
	"time"

	"github.com/jonathan/resume-analysis/internal/types"
)

// Step names. They are persisted as the next-step pointer and exposed in the audit trail.
const (
	StepExtractApplication = "extract-application-step"
	StepGenerateQuestions  = "generate-questions-step"
	StepExtractResume      = "extract-resume-step"
	StepAnswerQuestions    = "answer-questions-step"
	StepResult             = "result-step"
	StepFailover           = "failover-step"
)

// StepOrder lists the steps in execution order, failover last
var StepOrder = []string{
	StepExtractApplication,
	StepGenerateQuestions,
	StepExtractResume,
	StepAnswerQuestions,
	StepResult,
	StepFailover,
}

// Default policy values
const (
	DefaultStepTimeout = 30 * time.Second
	DefaultMaxRetries  = 0
	DefaultRetryDelay  = time.Second
)

// Policy controls how the executor reacts to a step's result.
// Timeout is measured from step start and covers every attempt.
type Policy struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	FailoverTo string
}

// DefaultPolicy returns the policy applied to steps without an override
func DefaultPolicy() Policy {
	return Policy{
		Timeout:    DefaultStepTimeout,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		FailoverTo: StepFailover,
	}
}

// decide maps a failed attempt to Retry while budget remains, Failover otherwise
func (p Policy) decide(attempt int, err error) Outcome {
	if attempt <= p.MaxRetries {
		return Retry{Err: err}
	}
	return Failover{Err: err}
}

// Outcome is the result of running a step: Success, Retry or Failover
type Outcome interface {
	isOutcome()
}

// Success carries the state mutation and the transition to commit.
// An empty Next ends the workflow with Status (completed when unset).
type Success struct {
	Apply   func(types.WorkflowState) types.WorkflowState
	Next    string
	Input   string
	Status  types.RunStatus
	Failure string
}

// Retry asks the executor to run the step again
type Retry struct {
	Err error
}

// Failover sends the workflow to the policy's failover step
type Failover struct {
	Err error
}

func (Success) isOutcome()  {}
func (Retry) isOutcome()    {}
func (Failover) isOutcome() {}

// Input is what an action sees: a snapshot of the committed state plus the
// payload handed over by the previous step
type Input struct {
	WorkflowID string
	State      types.WorkflowState
	Data       string
}

// Action performs a step's single unit of work
type Action func(ctx context.Context, in Input) (Success, error)

// Step binds a name to its action
type Step struct {
	Name   string
	Action Action
}

// Definition is the step graph executed by the engine
type Definition struct {
	First    string
	Steps    map[string]Step
	Policy   Policy
	Policies map[string]Policy
}

// PolicyFor returns the override for a step, or the default policy
func (d Definition) PolicyFor(step string) Policy {
	if p, ok := d.Policies[step]; ok {
		return p
	}
	return d.Policy
}
