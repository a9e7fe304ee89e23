package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jonathan/resume-analysis/internal/jobpoll"
	"github.com/jonathan/resume-analysis/internal/llm"
	"github.com/jonathan/resume-analysis/internal/observability"
	"github.com/jonathan/resume-analysis/internal/prompts"
	"github.com/jonathan/resume-analysis/internal/schemas"
	"github.com/jonathan/resume-analysis/internal/types"
)

// DocumentParsingService submits documents and exposes job status and results
type DocumentParsingService interface {
	jobpoll.DocumentJobService
	SubmitApplicationForm(ctx context.Context, document []byte) (*types.JobRecord, error)
	SubmitResume(ctx context.Context, document []byte) (*types.JobRecord, error)
}

// TextGenerationService turns a prompt into a JSON response
type TextGenerationService interface {
	GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
}

type formFields struct {
	Fields []string `json:"fields"`
}

type answerList struct {
	Answers []types.Answer `json:"answers"`
}

// actions holds the external collaborators used by the step actions
type actions struct {
	documents DocumentParsingService
	text      TextGenerationService
	poller    *jobpoll.Poller
	printer   *observability.Printer
}

// definition builds the resume-analysis step graph
func (a *actions) definition(policy Policy, overrides map[string]Policy) Definition {
	steps := map[string]Step{
		StepExtractApplication: {Name: StepExtractApplication, Action: a.extractApplication},
		StepGenerateQuestions:  {Name: StepGenerateQuestions, Action: a.generateQuestions},
		StepExtractResume:      {Name: StepExtractResume, Action: a.extractResume},
		StepAnswerQuestions:    {Name: StepAnswerQuestions, Action: a.answerQuestions},
		StepResult:             {Name: StepResult, Action: a.result},
		StepFailover:           {Name: StepFailover, Action: a.failover},
	}
	return Definition{
		First:    StepExtractApplication,
		Steps:    steps,
		Policy:   policy,
		Policies: overrides,
	}
}

func (a *actions) extractApplication(ctx context.Context, in Input) (Success, error) {
	text, err := a.poller.Poll(ctx, a.documents.SubmitApplicationForm, in.State.ApplicationFormBytes)
	if err != nil {
		return Success{}, wrapExternal(StepExtractApplication, err)
	}
	return Success{
		Apply: func(s types.WorkflowState) types.WorkflowState {
			return s.WithStage(types.StageApplicationFormProcessed)
		},
		Next:  StepGenerateQuestions,
		Input: text,
	}, nil
}

func (a *actions) generateQuestions(ctx context.Context, in Input) (Success, error) {
	prompt, err := prompts.Render(prompts.KeyConvertFormFields, map[string]string{"Form": in.Data})
	if err != nil {
		return Success{}, err
	}

	raw, err := a.text.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return Success{}, &StepError{Step: StepGenerateQuestions, Cause: err}
	}
	if err := schemas.Validate(schemas.FormFields, raw); err != nil {
		return Success{}, &DecodeError{Step: StepGenerateQuestions, Message: "response does not match form fields schema", Cause: err}
	}

	var parsed formFields
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Success{}, &DecodeError{Step: StepGenerateQuestions, Message: "failed to decode form fields", Cause: err}
	}

	questions := make([]types.Question, 0, len(parsed.Fields))
	for _, field := range parsed.Fields {
		questions = append(questions, types.Question{Field: field})
	}

	return Success{
		Apply: func(s types.WorkflowState) types.WorkflowState {
			return s.WithQuestions(questions).WithStage(types.StageQuestionsGenerated)
		},
		Next: StepExtractResume,
	}, nil
}

func (a *actions) extractResume(ctx context.Context, in Input) (Success, error) {
	text, err := a.poller.Poll(ctx, a.documents.SubmitResume, in.State.ResumeBytes)
	if err != nil {
		return Success{}, wrapExternal(StepExtractResume, err)
	}
	return Success{
		Apply: func(s types.WorkflowState) types.WorkflowState {
			return s.WithResumeInfo(text)
		},
		Next: StepAnswerQuestions,
	}, nil
}

func (a *actions) answerQuestions(ctx context.Context, in Input) (Success, error) {
	questions := in.State.Questions
	advance := func(answers []types.Answer) Success {
		return Success{
			Apply: func(s types.WorkflowState) types.WorkflowState {
				return s.WithAnswers(answers).WithStage(types.StageAnswersGenerated)
			},
			Next: StepResult,
		}
	}
	if len(questions) == 0 {
		return advance([]types.Answer{}), nil
	}

	var list strings.Builder
	for _, q := range questions {
		list.WriteString("- ")
		list.WriteString(q.Field)
		list.WriteString("\n")
	}
	prompt, err := prompts.Render(prompts.KeyAnswerQuestions, map[string]string{
		"Resume":    in.State.ResumeInfo,
		"Questions": strings.TrimRight(list.String(), "\n"),
	})
	if err != nil {
		return Success{}, err
	}

	raw, err := a.text.GenerateJSON(ctx, prompt, llm.TierAdvanced)
	if err != nil {
		return Success{}, &StepError{Step: StepAnswerQuestions, Cause: err}
	}
	if err := schemas.Validate(schemas.Answers, raw); err != nil {
		return Success{}, &DecodeError{Step: StepAnswerQuestions, Message: "response does not match answers schema", Cause: err}
	}

	var parsed answerList
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Success{}, &DecodeError{Step: StepAnswerQuestions, Message: "failed to decode answers", Cause: err}
	}
	if len(parsed.Answers) != len(questions) {
		return Success{}, &DecodeError{
			Step:    StepAnswerQuestions,
			Message: fmt.Sprintf("expected %d answers, got %d", len(questions), len(parsed.Answers)),
		}
	}

	return advance(parsed.Answers), nil
}

func (a *actions) result(_ context.Context, in Input) (Success, error) {
	a.printer.PrintAnswers(in.WorkflowID, in.State.Answers)
	return Success{
		Apply: func(s types.WorkflowState) types.WorkflowState {
			return s.WithStage(types.StageFinished)
		},
		Status: types.RunStatusCompleted,
	}, nil
}

func (a *actions) failover(_ context.Context, in Input) (Success, error) {
	reason := in.Data
	if reason == "" {
		reason = "unknown failure"
	}
	log.Printf("[workflow] %s failed at stage %s: %s", in.WorkflowID, in.State.Stage, reason)
	a.printer.PrintFailure(in.WorkflowID, in.State.Stage, reason)
	return Success{
		Status:  types.RunStatusFailed,
		Failure: reason,
	}, nil
}

// wrapExternal keeps job failures and context errors as they are and wraps anything else in a StepError
func wrapExternal(step string, err error) error {
	var jobErr *jobpoll.JobFailedError
	if errors.As(err, &jobErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &StepError{Step: step, Cause: err}
}
