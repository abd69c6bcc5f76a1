// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kmori/wikiharvest/internal/output"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
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

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintStats outputs a human-readable summary of a finished collection.
func (p *Printer) PrintStats(col *output.Collection) {
	if col == nil {
		return
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Wiki:      %s\n", col.Wiki))
	sb.WriteString(fmt.Sprintf("Duration:  %s\n", col.FinishedAt.Sub(col.StartedAt).Round(time.Second)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Found:     %d\n", col.Stats.PagesFound))
	sb.WriteString(fmt.Sprintf("Scraped:   %d\n", col.Stats.PagesScraped))
	sb.WriteString(fmt.Sprintf("Skipped:   %d\n", col.Stats.PagesSkipped))
	sb.WriteString(fmt.Sprintf("Failed:    %d\n", col.Stats.PagesFailed))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Words:     %d total, %d avg/page\n", col.Stats.TotalWords, col.Stats.AverageWords()))

	p.printBox("Harvest Summary", strings.TrimRight(sb.String(), "\n"))
}

// PrintLargestPages outputs the biggest pages of a collection by word count.
func (p *Printer) PrintLargestPages(col *output.Collection) {
	if col == nil || len(col.Pages) == 0 {
		return
	}

	// Find the top pages without disturbing collection order
	top := make([]output.PageRecord, 0, maxItemsToShow)
	for _, page := range col.Pages {
		inserted := false
		for i, existing := range top {
			if page.WordCount > existing.WordCount {
				top = append(top[:i], append([]output.PageRecord{page}, top[i:]...)...)
				inserted = true
				break
			}
		}
		if !inserted && len(top) < maxItemsToShow {
			top = append(top, page)
		}
		if len(top) > maxItemsToShow {
			top = top[:maxItemsToShow]
		}
	}

	var sb strings.Builder
	for i, page := range top {
		sb.WriteString(fmt.Sprintf("%d. %s (%d words)", i+1, page.Title, page.WordCount))
		if i < len(top)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("Largest Pages", sb.String())
}
