package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_StringAndParse(t *testing.T) {
	names := []string{"READY", "STARTED", "APPLICATION_FORM_PROCESSED", "QUESTIONS_GENERATED", "ANSWERS_GENERATED", "FINISHED"}
	for i, name := range names {
		stage := Stage(i)
		assert.Equal(t, name, stage.String())

		parsed, err := ParseStage(name)
		require.NoError(t, err)
		assert.Equal(t, stage, parsed)
	}

	_, err := ParseStage("DONE")
	assert.Error(t, err)
	assert.Equal(t, "Stage(42)", Stage(42).String())
}

func TestStage_JSON(t *testing.T) {
	data, err := json.Marshal(map[string]Stage{"stage": StageQuestionsGenerated})
	require.NoError(t, err)
	assert.JSONEq(t, `{"stage": "QUESTIONS_GENERATED"}`, string(data))

	var decoded struct {
		Stage Stage `json:"stage"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"stage": "FINISHED"}`), &decoded))
	assert.Equal(t, StageFinished, decoded.Stage)

	assert.Error(t, json.Unmarshal([]byte(`{"stage": "LATER"}`), &decoded))
}

func TestStage_CanAdvanceTo(t *testing.T) {
	assert.True(t, StageReady.CanAdvanceTo(StageStarted))
	assert.True(t, StageStarted.CanAdvanceTo(StageStarted))
	assert.True(t, StageReady.CanAdvanceTo(StageFinished))
	assert.False(t, StageQuestionsGenerated.CanAdvanceTo(StageStarted))
	assert.False(t, StageFinished.CanAdvanceTo(Stage(6)))
}

func TestInitialState(t *testing.T) {
	s := InitialState()
	assert.Equal(t, StageReady, s.Stage)
	assert.NotNil(t, s.Questions)
	assert.NotNil(t, s.Answers)
	assert.False(t, s.HasResume())
	assert.False(t, s.HasApplicationForm())
}

func TestWithHelpers_DoNotAlias(t *testing.T) {
	doc := []byte("resume")
	s := InitialState().WithResume(doc)
	doc[0] = 'X'
	assert.Equal(t, []byte("resume"), s.ResumeBytes)

	next := s.WithApplicationForm([]byte("form"))
	assert.False(t, s.HasApplicationForm())
	assert.True(t, next.HasApplicationForm())
	assert.True(t, next.HasResume())
}

func TestWithStage_IgnoresRegression(t *testing.T) {
	s := InitialState().WithStage(StageQuestionsGenerated)
	assert.Equal(t, StageQuestionsGenerated, s.Stage)
	assert.Equal(t, StageQuestionsGenerated, s.WithStage(StageStarted).Stage)
	assert.Equal(t, StageFinished, s.WithStage(StageFinished).Stage)
}

func TestWithQuestions_WriteOnce(t *testing.T) {
	first := []Question{{Field: "Name"}}
	s := InitialState().WithQuestions(first)
	assert.Equal(t, first, s.Questions)

	s = s.WithQuestions([]Question{{Field: "Other"}})
	assert.Equal(t, first, s.Questions)
}

func TestWithAnswersAndResumeInfo(t *testing.T) {
	answers := []Answer{{Question: "Name", Answer: "John"}}
	s := InitialState().WithResumeInfo("text").WithAnswers(answers)
	answers[0].Answer = "changed"

	assert.Equal(t, "text", s.ResumeInfo)
	assert.Equal(t, "John", s.Answers[0].Answer)
}

func TestHasResume_EmptyDocument(t *testing.T) {
	assert.False(t, InitialState().WithResume([]byte{}).HasResume())
}

func TestSnapshotOf(t *testing.T) {
	s := InitialState().
		WithResume([]byte("R")).
		WithStage(StageAnswersGenerated).
		WithAnswers([]Answer{{Question: "Email", Answer: "j@x.com"}})

	snap := SnapshotOf(s)
	assert.Equal(t, StatusSnapshot{
		ResumeIsAvailable:          true,
		ApplicationFormIsAvailable: false,
		Status:                     "ANSWERS_GENERATED",
		Answers:                    []Answer{{Question: "Email", Answer: "j@x.com"}},
	}, snap)

	data, err := json.Marshal(SnapshotOf(InitialState()))
	require.NoError(t, err)
	assert.JSONEq(t, `{"resumeIsAvailable": false, "applicationFormIsAvailable": false, "status": "READY", "answers": []}`, string(data))
}

func TestWorkflowRecord(t *testing.T) {
	rec := NewWorkflowRecord("wf")
	assert.Equal(t, RunStatusPaused, rec.Status)
	assert.Zero(t, rec.Version)

	clone := rec.Clone()
	clone.State = clone.State.WithResume([]byte("R"))
	assert.False(t, rec.State.HasResume())

	assert.False(t, RunStatusPaused.Terminal())
	assert.False(t, RunStatusRunning.Terminal())
	assert.True(t, RunStatusCompleted.Terminal())
	assert.True(t, RunStatusFailed.Terminal())
}
