package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 30*time.Second, p.Timeout)
	assert.Equal(t, 0, p.MaxRetries)
	assert.Equal(t, StepFailover, p.FailoverTo)
}

func TestPolicyDecide(t *testing.T) {
	err := errors.New("boom")
	p := Policy{MaxRetries: 2}

	assert.Equal(t, Retry{Err: err}, p.decide(1, err))
	assert.Equal(t, Retry{Err: err}, p.decide(2, err))
	assert.Equal(t, Failover{Err: err}, p.decide(3, err))
	assert.Equal(t, Failover{Err: err}, DefaultPolicy().decide(1, err))
}

func TestDefinitionPolicyFor(t *testing.T) {
	override := Policy{Timeout: time.Minute}
	d := Definition{
		Policy:   DefaultPolicy(),
		Policies: map[string]Policy{StepAnswerQuestions: override},
	}
	assert.Equal(t, override, d.PolicyFor(StepAnswerQuestions))
	assert.Equal(t, DefaultPolicy(), d.PolicyFor(StepExtractResume))
}

func TestErrorMessages(t *testing.T) {
	cause := errors.New("503")
	stepErr := &StepError{Step: StepGenerateQuestions, Cause: cause}
	assert.ErrorIs(t, stepErr, cause)
	assert.Equal(t, "step generate-questions-step failed: 503", stepErr.Error())

	timeout := &StepTimeoutError{Step: StepExtractResume, Timeout: 30 * time.Second}
	assert.Equal(t, "step extract-resume-step timed out after 30s", timeout.Error())

	decode := &DecodeError{Step: StepAnswerQuestions, Message: "expected 2 answers, got 1"}
	assert.Equal(t, "decode error in answer-questions-step: expected 2 answers, got 1", decode.Error())
}
