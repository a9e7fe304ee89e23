package export

import (
	"bytes"
	"testing"

	"github.com/jonathan/resume-analysis/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestAnswersXLSX(t *testing.T) {
	data, err := AnswersXLSX([]types.Answer{
		{Question: "Name", Answer: "John"},
		{Question: "Email", Answer: "j@x.com"},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Question", "Answer"},
		{"Name", "John"},
		{"Email", "j@x.com"},
	}, rows)
	assert.Equal(t, []string{SheetName}, f.GetSheetList())
}

func TestAnswersXLSX_Empty(t *testing.T) {
	data, err := AnswersXLSX(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
