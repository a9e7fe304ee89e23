// Package types provides type definitions for structured data used throughout the resume-analysis system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"slices"
)

// Stage is the instance-level progress marker of a workflow.
// Stages are ordered; a workflow only ever moves forward through them.
type Stage int

// Stage values in declaration order
const (
	StageReady Stage = iota
	StageStarted
	StageApplicationFormProcessed
	StageQuestionsGenerated
	StageAnswersGenerated
	StageFinished
)

var stageNames = [...]string{
	StageReady:                    "READY",
	StageStarted:                  "STARTED",
	StageApplicationFormProcessed: "APPLICATION_FORM_PROCESSED",
	StageQuestionsGenerated:       "QUESTIONS_GENERATED",
	StageAnswersGenerated:         "ANSWERS_GENERATED",
	StageFinished:                 "FINISHED",
}

// String returns the upper-case stage name used on the wire and in storage.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// ParseStage converts a stage name back to a Stage.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return StageReady, fmt.Errorf("unknown stage: %q", name)
}

// CanAdvanceTo reports whether moving from s to next keeps the stage sequence non-decreasing.
func (s Stage) CanAdvanceTo(next Stage) bool {
	return next >= s && int(next) < len(stageNames)
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Question is a single application-form field that needs an answer
type Question struct {
	Field string `json:"field"`
}

// Answer pairs a question with the answer derived from the resume
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// WorkflowState is the data of a single resume-analysis workflow instance.
// Values are treated as immutable: the With* helpers return modified copies.
type WorkflowState struct {
	ResumeBytes          []byte     `json:"resume_bytes,omitempty"`
	ApplicationFormBytes []byte     `json:"application_form_bytes,omitempty"`
	Stage                Stage      `json:"stage"`
	ResumeInfo           string     `json:"resume_info,omitempty"`
	Questions            []Question `json:"questions"`
	Answers              []Answer   `json:"answers"`
}

// InitialState returns the empty state of a freshly addressed workflow
func InitialState() WorkflowState {
	return WorkflowState{
		Stage:     StageReady,
		Questions: []Question{},
		Answers:   []Answer{},
	}
}

// Clone returns a deep copy of the state
func (s WorkflowState) Clone() WorkflowState {
	out := s
	out.ResumeBytes = slices.Clone(s.ResumeBytes)
	out.ApplicationFormBytes = slices.Clone(s.ApplicationFormBytes)
	out.Questions = slices.Clone(s.Questions)
	out.Answers = slices.Clone(s.Answers)
	if out.Questions == nil {
		out.Questions = []Question{}
	}
	if out.Answers == nil {
		out.Answers = []Answer{}
	}
	return out
}

// WithResume returns a copy holding the given resume document
func (s WorkflowState) WithResume(b []byte) WorkflowState {
	out := s.Clone()
	out.ResumeBytes = slices.Clone(b)
	return out
}

// WithApplicationForm returns a copy holding the given application form document
func (s WorkflowState) WithApplicationForm(b []byte) WorkflowState {
	out := s.Clone()
	out.ApplicationFormBytes = slices.Clone(b)
	return out
}

// WithStage returns a copy at the given stage. A stage earlier than the current one is ignored.
func (s WorkflowState) WithStage(stage Stage) WorkflowState {
	out := s.Clone()
	if s.Stage.CanAdvanceTo(stage) {
		out.Stage = stage
	}
	return out
}

// WithResumeInfo returns a copy holding the extracted resume text
func (s WorkflowState) WithResumeInfo(info string) WorkflowState {
	out := s.Clone()
	out.ResumeInfo = info
	return out
}

// WithQuestions returns a copy holding the generated questions.
// Questions are written once; a state that already has questions is returned unchanged.
func (s WorkflowState) WithQuestions(questions []Question) WorkflowState {
	out := s.Clone()
	if len(s.Questions) == 0 {
		out.Questions = slices.Clone(questions)
	}
	return out
}

// WithAnswers returns a copy holding the generated answers
func (s WorkflowState) WithAnswers(answers []Answer) WorkflowState {
	out := s.Clone()
	out.Answers = slices.Clone(answers)
	return out
}

// HasResume reports whether a non-empty resume document was uploaded
func (s WorkflowState) HasResume() bool {
	return len(s.ResumeBytes) > 0
}

// HasApplicationForm reports whether a non-empty application form was uploaded
func (s WorkflowState) HasApplicationForm() bool {
	return len(s.ApplicationFormBytes) > 0
}

// StartRequirements holds the inputs that must be present before a workflow can start.
// Field order is the order in which missing inputs are reported.
type StartRequirements struct {
	Resume          []byte `validate:"required,min=1"`
	ApplicationForm []byte `validate:"required,min=1"`
}
