// Package harvest provides the high-level orchestration for scraping a wiki
// into a single text collection.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kmori/wikiharvest/internal/config"
	"github.com/kmori/wikiharvest/internal/db"
	"github.com/kmori/wikiharvest/internal/extract"
	"github.com/kmori/wikiharvest/internal/fetch"
	"github.com/kmori/wikiharvest/internal/mediawiki"
	"github.com/kmori/wikiharvest/internal/observability"
	"github.com/kmori/wikiharvest/internal/output"
	"github.com/kmori/wikiharvest/internal/wikitext"
)

// ProgressEvent represents a progress update during a harvest run
type ProgressEvent struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
}

// ProgressCallback is called when harvest progress occurs
type ProgressCallback func(event ProgressEvent)

// Stage constants for progress events
const (
	StageProbe     = "probe"
	StageEnumerate = "enumerate"
	StageScrape    = "scrape"
	StageWrite     = "write"
)

// Options holds configuration for running a harvest
type Options struct {
	Wiki            string
	Mode            string // config.ModeAuto, ModeAPI or ModeHTML
	OutputPath      string
	Delay           time.Duration
	Workers         int
	CheckpointEvery int
	MaxPages        int
	UserAgent       string
	KeepRaw         bool
	RecordEmpty     bool
	UseBrowser      bool
	Verbose         bool
	DatabaseURL     string
	OnProgress      ProgressCallback
}

// skippedError marks a page dropped before fetching because the archive
// recorded a permanent failure for its URL.
type skippedError struct {
	reason string
}

func (e *skippedError) Error() string {
	return fmt.Sprintf("skipped: %s", e.reason)
}

// emitProgress calls the progress callback if configured
func emitProgress(opts *Options, stage, message string, done, total int) {
	if opts.OnProgress != nil {
		opts.OnProgress(ProgressEvent{
			Stage:   stage,
			Message: message,
			Done:    done,
			Total:   total,
		})
	}
}

// Run scrapes every article of a wiki and writes the resulting collection
// to opts.OutputPath. Individual page failures are logged and skipped; an
// unreachable wiki or page index aborts the run.
func Run(ctx context.Context, opts Options) (*output.Collection, error) {
	if opts.Wiki == "" {
		return nil, fmt.Errorf("wiki URL is required")
	}
	wikiURL := strings.TrimRight(opts.Wiki, "/")
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	fetchOpts := fetch.DefaultOptions()
	if opts.UserAgent != "" {
		fetchOpts.UserAgent = opts.UserAgent
	}

	started := time.Now().UTC()
	client := mediawiki.NewClient(wikiURL, fetchOpts)

	// Initialize observability printer for verbose output
	printer := observability.NewPrinter(os.Stdout)

	// Initialize database connection if configured
	var database *db.DB
	var runID uuid.UUID
	if opts.DatabaseURL != "" {
		var err error
		database, err = db.Connect(ctx, opts.DatabaseURL)
		if err != nil {
			fmt.Printf("Warning: Failed to connect to database: %v\n", err)
			fmt.Printf("Continuing without database archival...\n")
			database = nil
		} else {
			defer database.Close()
			if err := database.EnsureSchema(ctx); err != nil {
				fmt.Printf("Warning: Failed to ensure database schema: %v\n", err)
				database.Close()
				database = nil
			} else {
				if purged, perr := database.DeleteExpiredPages(ctx); perr != nil {
					fmt.Printf("Warning: Failed to purge expired archived pages: %v\n", perr)
				} else if purged > 0 && opts.Verbose {
					fmt.Printf("[VERBOSE] Purged %d expired archived pages\n", purged)
				}
				if opts.Verbose {
					fmt.Printf("[VERBOSE] Connected to database\n")
				}
			}
		}
	}

	// Step 1: Resolve enumeration mode
	mode := opts.Mode
	if mode == "" || mode == config.ModeAuto {
		fmt.Printf("Step 1/4: Probing %s for a MediaWiki API...\n", wikiURL)
		siteName, err := client.Probe(ctx)
		if err == nil {
			fmt.Printf("Found action API for %q, using API mode.\n", siteName)
			mode = config.ModeAPI
		} else {
			if opts.Verbose {
				fmt.Printf("[VERBOSE] API probe failed: %v\n", err)
			}
			fmt.Printf("No usable action API, falling back to HTML index walking.\n")
			mode = config.ModeHTML
		}
	} else {
		fmt.Printf("Step 1/4: Using %s enumeration mode.\n", mode)
	}
	emitProgress(&opts, StageProbe, fmt.Sprintf("Resolved enumeration mode: %s", mode), 0, 0)

	if database != nil {
		var err error
		runID, err = database.CreateRun(ctx, wikiURL, mode)
		if err != nil {
			fmt.Printf("Warning: Failed to create database run: %v\n", err)
		} else if opts.Verbose {
			fmt.Printf("[VERBOSE] Created database run: %s\n", runID)
		}
	}

	// Step 2: Enumerate pages
	fmt.Printf("Step 2/4: Enumerating pages...\n")
	onBatch := func(total int) {
		if opts.Verbose {
			fmt.Printf("[VERBOSE] Enumerated %d pages so far...\n", total)
		}
		emitProgress(&opts, StageEnumerate, "Enumerating pages", total, 0)
	}

	var refs []output.PageRef
	var err error
	if mode == config.ModeAPI {
		refs, err = enumerateAPI(ctx, client, onBatch)
	} else {
		refs, err = enumerateHTML(ctx, wikiURL, fetchOpts, onBatch)
	}
	if err != nil {
		failRun(ctx, database, runID, 0, 0, 0)
		return nil, err
	}
	if opts.MaxPages > 0 && len(refs) > opts.MaxPages {
		refs = refs[:opts.MaxPages]
	}
	fmt.Printf("Found %d pages.\n", len(refs))

	// Step 3: Fetch and extract each page
	fmt.Printf("Step 3/4: Scraping %d pages...\n", len(refs))

	records := make([]*output.PageRecord, len(refs))
	var mu sync.Mutex
	completed, failed, skipped := 0, 0, 0

	var gate <-chan time.Time
	if opts.Delay > 0 {
		ticker := time.NewTicker(opts.Delay)
		defer ticker.Stop()
		gate = ticker.C
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			if gate != nil {
				select {
				case <-gate:
				case <-gCtx.Done():
					return gCtx.Err()
				}
			}

			record, scrapeErr := scrapePage(gCtx, mode, client, ref, &opts, fetchOpts, database)

			mu.Lock()
			defer mu.Unlock()
			completed++

			var skipErr *skippedError
			switch {
			case errors.As(scrapeErr, &skipErr):
				skipped++
				if opts.Verbose {
					fmt.Printf("[VERBOSE] Skipping %q: %s\n", ref.Title, skipErr.reason)
				}
			case scrapeErr != nil:
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				failed++
				fmt.Printf("Warning: failed to scrape %q: %v\n", ref.Title, scrapeErr)
				if database != nil && runID != uuid.Nil {
					_ = database.RecordFailedFetch(gCtx, &runID, ref.Title, ref.URL, httpStatusOf(scrapeErr), scrapeErr.Error())
				}
			case record == nil:
				skipped++
				if opts.Verbose {
					fmt.Printf("[VERBOSE] Skipping %q (no text)\n", ref.Title)
				}
			default:
				records[i] = record
				if database != nil && runID != uuid.Nil {
					_ = archivePage(gCtx, database, runID, record)
				}
			}

			emitProgress(&opts, StageScrape, fmt.Sprintf("Scraped %s", ref.Title), completed, len(refs))
			if opts.Verbose && completed%10 == 0 {
				fmt.Printf("[VERBOSE] Progress: %d/%d pages\n", completed, len(refs))
			}

			if opts.CheckpointEvery > 0 && opts.OutputPath != "" && completed%opts.CheckpointEvery == 0 {
				snapshot := buildCollection(wikiURL, started, time.Now().UTC(), len(refs), records, failed, skipped)
				if cerr := output.Checkpoint(opts.OutputPath, snapshot); cerr != nil {
					fmt.Printf("Warning: failed to write checkpoint: %v\n", cerr)
				} else if opts.Verbose {
					fmt.Printf("[VERBOSE] Checkpoint written at %d pages\n", completed)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		failRun(ctx, database, runID, len(refs), countScraped(records), failed)
		return nil, err
	}

	// Step 4: Assemble and write the collection
	fmt.Printf("Step 4/4: Writing collection...\n")
	col := buildCollection(wikiURL, started, time.Now().UTC(), len(refs), records, failed, skipped)

	if err := output.ValidateCollection(col); err != nil {
		failRun(ctx, database, runID, len(refs), col.Stats.PagesScraped, failed)
		return nil, fmt.Errorf("refusing to write invalid collection: %w", err)
	}

	if opts.OutputPath != "" {
		if err := output.Write(opts.OutputPath, col); err != nil {
			failRun(ctx, database, runID, len(refs), col.Stats.PagesScraped, failed)
			return nil, err
		}
		if err := output.RemoveCheckpoint(opts.OutputPath); err != nil && opts.Verbose {
			fmt.Printf("[VERBOSE] Failed to remove checkpoint: %v\n", err)
		}
	}
	emitProgress(&opts, StageWrite, "Collection written", len(refs), len(refs))

	if database != nil && runID != uuid.Nil {
		_ = database.CompleteRun(ctx, runID, db.RunStatusCompleted,
			col.Stats.PagesFound, col.Stats.PagesScraped, col.Stats.PagesFailed)
	}

	if opts.Verbose {
		printer.PrintStats(col)
		printer.PrintLargestPages(col)
	}

	fmt.Printf("Done! Scraped %d/%d pages (%d skipped, %d failed), %d words total, %d avg/page.\n",
		col.Stats.PagesScraped, col.Stats.PagesFound, col.Stats.PagesSkipped,
		col.Stats.PagesFailed, col.Stats.TotalWords, col.Stats.AverageWords())
	return col, nil
}

// scrapePage fetches one page and extracts its text. A nil record with a
// nil error means the page had no usable text and the empty policy says
// to drop it.
func scrapePage(ctx context.Context, mode string, client *mediawiki.Client, ref output.PageRef, opts *Options, fetchOpts *fetch.Options, database *db.DB) (*output.PageRecord, error) {
	// Honor the archive's permanent-failure skip list before fetching
	if database != nil {
		if skip, reason, err := database.ShouldSkipURL(ctx, ref.URL); err == nil && skip {
			return nil, &skippedError{reason: reason}
		}
	}

	// Serve from the archive when a fresh copy exists
	if database != nil {
		if cached, err := database.GetFreshPage(ctx, ref.URL, db.DefaultPageCacheTTL); err == nil && cached != nil && cached.Text != nil {
			record := &output.PageRecord{
				Title:     ref.Title,
				URL:       ref.URL,
				Text:      *cached.Text,
				WordCount: cached.WordCount,
				FetchedAt: cached.FetchedAt,
			}
			if opts.KeepRaw && cached.RawText != nil {
				record.RawText = *cached.RawText
			}
			if strings.TrimSpace(record.Text) == "" && !opts.RecordEmpty {
				return nil, nil
			}
			return record, nil
		}
	}

	var text, raw string

	switch mode {
	case config.ModeAPI:
		wikitextSource, err := client.PageWikitext(ctx, ref.Title)
		if err != nil {
			return nil, err
		}
		raw = wikitextSource
		cleaned, err := wikitext.Clean(wikitextSource)
		if err != nil {
			// Parse failures follow the empty policy: record as empty or fail
			if !opts.RecordEmpty {
				return nil, err
			}
			cleaned = ""
		}
		text = cleaned

	default:
		result, err := fetch.URLWithRetry(ctx, ref.URL, fetchOpts)
		if err != nil {
			return nil, err
		}
		body := result.Body

		flavor := fetch.DetectFlavor(body)
		extracted, parseErr := extract.Text(body, fetch.FlavorContentSelectors(flavor), fetch.FlavorNoiseSelectors(flavor)...)
		if parseErr != nil {
			extracted = ""
		}

		// JS-rendered skins serve a nearly empty shell; retry with a browser
		if opts.UseBrowser && fetch.ShouldUseBrowser(extracted) {
			rendered, berr := fetch.BrowserSimple(ctx, ref.URL, opts.Verbose)
			if berr == nil {
				if btext, terr := extract.Text(rendered, fetch.FlavorContentSelectors(flavor), fetch.FlavorNoiseSelectors(flavor)...); terr == nil {
					extracted = btext
					parseErr = nil
				}
			} else if opts.Verbose {
				fmt.Printf("[VERBOSE] Browser fallback failed for %s: %v\n", ref.URL, berr)
			}
		}

		// Parse failures follow the empty policy: record as empty or fail
		if parseErr != nil && !opts.RecordEmpty {
			return nil, parseErr
		}
		text = extract.CleanText(extracted)
	}

	if strings.TrimSpace(text) == "" && !opts.RecordEmpty {
		return nil, nil
	}

	record := &output.PageRecord{
		Title:     ref.Title,
		URL:       ref.URL,
		Text:      text,
		WordCount: extract.WordCount(text),
		FetchedAt: time.Now().UTC(),
	}
	if opts.KeepRaw {
		record.RawText = raw
	}
	return record, nil
}

// buildCollection assembles records in enumeration order into a collection
// with computed stats. Nil entries (failed or skipped pages) are dropped.
func buildCollection(wikiURL string, started, finished time.Time, found int, records []*output.PageRecord, failed, skipped int) *output.Collection {
	pages := make([]output.PageRecord, 0, len(records))
	totalWords := 0
	for _, r := range records {
		if r == nil {
			continue
		}
		pages = append(pages, *r)
		totalWords += r.WordCount
	}

	return &output.Collection{
		Wiki:       wikiURL,
		StartedAt:  started,
		FinishedAt: finished,
		Stats: output.Stats{
			PagesFound:   found,
			PagesScraped: len(pages),
			PagesSkipped: skipped,
			PagesFailed:  failed,
			TotalWords:   totalWords,
		},
		Pages: pages,
	}
}

func countScraped(records []*output.PageRecord) int {
	n := 0
	for _, r := range records {
		if r != nil {
			n++
		}
	}
	return n
}

// archivePage stores a successful record in the database
func archivePage(ctx context.Context, database *db.DB, runID uuid.UUID, record *output.PageRecord) error {
	page := &db.WikiPage{
		RunID:     &runID,
		Title:     record.Title,
		URL:       record.URL,
		Text:      &record.Text,
		WordCount: record.WordCount,
	}
	if record.RawText != "" {
		page.RawText = &record.RawText
	}
	return database.UpsertPage(ctx, page)
}

// httpStatusOf extracts the HTTP status from a fetch error, if present
func httpStatusOf(err error) int {
	var fetchErr *fetch.Error
	if errors.As(err, &fetchErr) {
		return fetchErr.StatusCode
	}
	return 0
}

// failRun marks the database run as failed, when one exists
func failRun(ctx context.Context, database *db.DB, runID uuid.UUID, found, scraped, failed int) {
	if database != nil && runID != uuid.Nil {
		_ = database.CompleteRun(ctx, runID, db.RunStatusFailed, found, scraped, failed)
	}
}
