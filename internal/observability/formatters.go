// Package observability provides the CLI's board printer and logger setup.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/lead-tracker/internal/pipeline"
	"github.com/jonathan/lead-tracker/internal/timers"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the number of leads listed per stage
	maxItemsToShow = 10
)

// Printer writes human-readable pipeline output.
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
		if r := []rune(line); len(r) > boxWidth-4 {
			line = string(r[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintBoard outputs one box per stage with its leads and live timers.
func (p *Printer) PrintBoard(b pipeline.Board) {
	for _, st := range b.Stages {
		views := b.Buckets[st]
		title := fmt.Sprintf("%s (%d)", strings.ToUpper(st.Label()), len(views))

		if len(views) == 0 {
			p.printBox(title, "(empty)")
			continue
		}

		var sb strings.Builder
		for i, v := range views {
			if i >= maxItemsToShow {
				sb.WriteString(fmt.Sprintf("... and %d more\n", len(views)-maxItemsToShow))
				break
			}
			sb.WriteString(leadLine(v))
			sb.WriteString("\n")
		}
		p.printBox(title, strings.TrimRight(sb.String(), "\n"))
	}
}

func leadLine(v pipeline.LeadView) string {
	line := fmt.Sprintf("%s @ %s  %d%%", v.Lead.Title, v.Lead.Company, v.Progress)
	switch {
	case v.ApplyDeadline != nil:
		line += "  apply: " + v.ApplyDeadline.Label
	case v.FollowUpOverdue:
		line += "  follow-up overdue"
	case v.FollowUp != nil:
		line += "  follow-up: " + v.FollowUp.Label
	}
	if iv := v.LatestInterview; iv != nil {
		line += fmt.Sprintf("  [%s %s]", iv.Type, iv.Status)
	}
	return line
}

// PrintSweep outputs the result of a timer sweep.
func (p *Printer) PrintSweep(apply, followUp timers.SweepResult) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Auto-archived:     %d\n", apply.Archived))
	sb.WriteString(fmt.Sprintf("Dropped clicks:    %d\n", apply.Dropped))
	sb.WriteString(fmt.Sprintf("Follow-ups due:    %d\n", followUp.Overdue))
	sb.WriteString(fmt.Sprintf("Failed:            %d", apply.Failed+followUp.Failed))
	p.printBox("TIMER SWEEP", sb.String())
}
