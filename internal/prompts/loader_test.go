package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	ClearCache()

	prompt, err := Get(WorkflowFile, KeyConvertFormFields)
	require.NoError(t, err)
	assert.Contains(t, prompt, "list of fields to be filled in")
	assert.Contains(t, prompt, "{{.Form}}")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get(WorkflowFile, "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMustGet_Panics(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() {
		MustGet("nonexistent.json", "some-key")
	})
}

func TestFormat(t *testing.T) {
	out := Format("Hello {{.Name}}, {{.Name}}! {{.Missing}}", map[string]string{"Name": "Ada"})
	assert.Equal(t, "Hello Ada, Ada! {{.Missing}}", out)
}

func TestRender_AnswerQuestions(t *testing.T) {
	ClearCache()

	out, err := Render(KeyAnswerQuestions, map[string]string{
		"Resume":    "5 years experience",
		"Questions": "- Name\n- Email",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "<resume>\n5 years experience\n</resume>")
	assert.Contains(t, out, "- Name\n- Email")
	assert.NotContains(t, out, "{{.")
}

func TestList(t *testing.T) {
	keys, err := List(WorkflowFile)
	require.NoError(t, err)
	assert.Equal(t, []string{KeyAnswerQuestions, KeyConvertFormFields}, keys)
}
