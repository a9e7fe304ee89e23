// Package export renders workflow answers as spreadsheets.
package export

import (
	"fmt"

	"github.com/jonathan/resume-analysis/internal/types"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the answers
const SheetName = "Answers"

// AnswersXLSX writes the question/answer pairs of a workflow to an XLSX workbook.
func AnswersXLSX(answers []types.Answer) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if index, _ := f.GetSheetIndex(SheetName); index == -1 {
		if _, err := f.NewSheet(SheetName); err != nil {
			return nil, fmt.Errorf("create sheet: %w", err)
		}
	}
	activeIndex, _ := f.GetSheetIndex(SheetName)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range []string{"Question", "Answer"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	for i, a := range answers {
		row := i + 2
		qCell, _ := excelize.CoordinatesToCellName(1, row)
		aCell, _ := excelize.CoordinatesToCellName(2, row)
		_ = f.SetCellValue(SheetName, qCell, a.Question)
		_ = f.SetCellValue(SheetName, aCell, a.Answer)
	}

	_ = f.SetColWidth(SheetName, "A", "A", 40)
	_ = f.SetColWidth(SheetName, "B", "B", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
