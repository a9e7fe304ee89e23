package workflow

import (
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyStarted is returned by Start when the step chain was already entered
var ErrAlreadyStarted = errors.New("workflow already started")

// ErrWorkflowEnded is returned by mutating calls on a completed or failed workflow
var ErrWorkflowEnded = errors.New("workflow has ended")

// ValidationError reports a missing start precondition
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// StepError wraps a failed call to an external service
type StepError struct {
	Step  string
	Cause error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Cause)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

// StepTimeoutError is returned when a step does not finish within its policy timeout
type StepTimeoutError struct {
	Step    string
	Timeout time.Duration
}

func (e *StepTimeoutError) Error() string {
	return fmt.Sprintf("step %s timed out after %s", e.Step, e.Timeout)
}

// DecodeError reports a text-generation response that could not be turned into domain data
type DecodeError struct {
	Step    string
	Message string
	Cause   error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode error in %s: %s: %v", e.Step, e.Message, e.Cause)
	}
	return fmt.Sprintf("decode error in %s: %s", e.Step, e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}
