// Package observability provides formatted console output for workflow results.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/resume-analysis/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of questions to display
	maxItemsToShow = 20
)

// Printer handles formatted output of workflow summaries
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintAnswers outputs the question/answer pairs of a finished workflow.
func (p *Printer) PrintAnswers(workflowID string, answers []types.Answer) {
	var sb strings.Builder

	if len(answers) == 0 {
		sb.WriteString("No questions found in the application form.")
	}
	count := min(len(answers), maxItemsToShow)
	for i := 0; i < count; i++ {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("Q: %s\n", answers[i].Question))
		sb.WriteString(fmt.Sprintf("A: %s", answers[i].Answer))
	}
	if len(answers) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more", len(answers)-maxItemsToShow))
	}

	p.printBox(fmt.Sprintf("ANSWERS %s", workflowID), sb.String())
}

// PrintFailure outputs the reason a workflow ended in failover.
func (p *Printer) PrintFailure(workflowID string, stage types.Stage, reason string) {
	content := fmt.Sprintf("Stage:  %s\nReason: %s", stage, reason)
	p.printBox(fmt.Sprintf("WORKFLOW FAILED %s", workflowID), content)
}
