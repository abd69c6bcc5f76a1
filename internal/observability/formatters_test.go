package observability

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kmori/wikiharvest/internal/output"
)

func sampleCollection() *output.Collection {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	return &output.Collection{
		Wiki:       "https://wiki.example.com",
		StartedAt:  now,
		FinishedAt: now.Add(90 * time.Second),
		Stats: output.Stats{
			PagesFound:   3,
			PagesScraped: 3,
			TotalWords:   60,
		},
		Pages: []output.PageRecord{
			{Title: "Alpha", WordCount: 10},
			{Title: "Beta", WordCount: 30},
			{Title: "Gamma", WordCount: 20},
		},
	}
}

func TestPrintStats(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintStats(sampleCollection())

	out := buf.String()
	assert.Contains(t, out, "Harvest Summary")
	assert.Contains(t, out, "https://wiki.example.com")
	assert.Contains(t, out, "Found:     3")
	assert.Contains(t, out, "60 total, 20 avg/page")
}

func TestPrintStats_NilIsNoop(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintStats(nil)
	assert.Empty(t, buf.String())
}

func TestPrintLargestPages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintLargestPages(sampleCollection())

	out := buf.String()
	assert.Contains(t, out, "Largest Pages")
	assert.Contains(t, out, "1. Beta (30 words)")
	assert.Contains(t, out, "2. Gamma (20 words)")
	assert.Contains(t, out, "3. Alpha (10 words)")
}
