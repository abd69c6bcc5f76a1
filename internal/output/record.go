// Package output defines the harvested page records and the collection
// document handed to the downstream chunking pipeline, along with its
// writers and converters.
package output

import "time"

// PageRef identifies one wiki page to fetch. Title is set in API mode,
// URL always; a ref is unique per page.
type PageRef struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// PageRecord is one harvested page. Immutable once created; written once
// into the collection.
type PageRecord struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Text      string    `json:"text"`
	RawText   string    `json:"raw_text,omitempty"`
	WordCount int       `json:"word_count"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Stats summarizes a harvest run.
type Stats struct {
	PagesFound   int `json:"pages_found"`
	PagesScraped int `json:"pages_scraped"`
	PagesSkipped int `json:"pages_skipped"`
	PagesFailed  int `json:"pages_failed"`
	TotalWords   int `json:"total_words"`
}

// AverageWords returns the mean word count per scraped page.
func (s Stats) AverageWords() int {
	if s.PagesScraped == 0 {
		return 0
	}
	return s.TotalWords / s.PagesScraped
}

// Collection is the single structured document produced by a run: run
// metadata plus one record per page, in enumeration order.
type Collection struct {
	Wiki       string       `json:"wiki"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Stats      Stats        `json:"stats"`
	Pages      []PageRecord `json:"pages"`
}
