package harvest

import (
	"context"
	"fmt"
	"strings"

	"github.com/kmori/wikiharvest/internal/config"
	"github.com/kmori/wikiharvest/internal/extract"
	"github.com/kmori/wikiharvest/internal/fetch"
	"github.com/kmori/wikiharvest/internal/mediawiki"
	"github.com/kmori/wikiharvest/internal/output"
)

// maxIndexPages bounds the Special:AllPages walk so a malformed
// pagination link can never loop forever.
const maxIndexPages = 10000

// EnumeratePages lists page references without fetching any content.
// Returns the resolved enumeration mode alongside the references.
func EnumeratePages(ctx context.Context, opts Options) (string, []output.PageRef, error) {
	if opts.Wiki == "" {
		return "", nil, fmt.Errorf("wiki URL is required")
	}
	wikiURL := strings.TrimRight(opts.Wiki, "/")

	fetchOpts := fetch.DefaultOptions()
	if opts.UserAgent != "" {
		fetchOpts.UserAgent = opts.UserAgent
	}
	client := mediawiki.NewClient(wikiURL, fetchOpts)

	mode := opts.Mode
	if mode == "" || mode == config.ModeAuto {
		if _, err := client.Probe(ctx); err == nil {
			mode = config.ModeAPI
		} else {
			mode = config.ModeHTML
		}
	}

	var refs []output.PageRef
	var err error
	if mode == config.ModeAPI {
		refs, err = enumerateAPI(ctx, client, nil)
	} else {
		refs, err = enumerateHTML(ctx, wikiURL, fetchOpts, nil)
	}
	if err != nil {
		return mode, nil, err
	}
	if opts.MaxPages > 0 && len(refs) > opts.MaxPages {
		refs = refs[:opts.MaxPages]
	}
	return mode, refs, nil
}

// enumerateAPI lists all article titles through the MediaWiki action API.
func enumerateAPI(ctx context.Context, client *mediawiki.Client, onBatch func(total int)) ([]output.PageRef, error) {
	titles, err := client.AllPages(ctx, onBatch)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate pages via API: %w", err)
	}

	refs := make([]output.PageRef, 0, len(titles))
	for _, title := range titles {
		refs = append(refs, output.PageRef{
			Title: title,
			URL:   client.PageURL(title),
		})
	}
	return refs, nil
}

// enumerateHTML walks the Special:AllPages index, following "next page"
// links until the listing is exhausted. The index being unreachable is
// fatal: without it there is nothing to scrape.
func enumerateHTML(ctx context.Context, wikiURL string, opts *fetch.Options, onBatch func(total int)) ([]output.PageRef, error) {
	indexURL := strings.TrimRight(wikiURL, "/") + "/wiki/Special:AllPages"

	var refs []output.PageRef
	seen := make(map[string]bool)
	visited := make(map[string]bool)

	current := indexURL
	for i := 0; i < maxIndexPages && current != ""; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if visited[current] {
			break
		}
		visited[current] = true

		result, err := fetch.URLWithRetry(ctx, current, opts)
		if err != nil {
			if i == 0 {
				// Some wikis disable Special:AllPages entirely; try the
				// main page before declaring the index unreachable
				return enumerateFromRoot(ctx, wikiURL, opts, onBatch)
			}
			return nil, fmt.Errorf("failed to fetch index page %s: %w", current, err)
		}

		links, err := extract.IndexLinks(result.Body, wikiURL)
		if err != nil {
			if i == 0 {
				return enumerateFromRoot(ctx, wikiURL, opts, onBatch)
			}
			return nil, fmt.Errorf("failed to parse index page %s: %w", current, err)
		}

		for _, link := range links {
			if seen[link.URL] {
				continue
			}
			seen[link.URL] = true
			refs = append(refs, output.PageRef{Title: link.Title, URL: link.URL})
		}
		if onBatch != nil {
			onBatch(len(refs))
		}

		next, err := extract.NextIndexURL(result.Body, wikiURL)
		if err != nil {
			return nil, fmt.Errorf("failed to find next index link on %s: %w", current, err)
		}
		current = next
	}

	return refs, nil
}

// enumerateFromRoot harvests same-domain article links from the wiki's
// main page. Best-effort coverage for wikis without a usable
// Special:AllPages index; the root being unreachable too is fatal.
func enumerateFromRoot(ctx context.Context, wikiURL string, opts *fetch.Options, onBatch func(total int)) ([]output.PageRef, error) {
	result, err := fetch.URLWithRetry(ctx, wikiURL, opts)
	if err != nil {
		return nil, fmt.Errorf("page index and wiki root %s are unreachable: %w", wikiURL, err)
	}

	links, err := extract.Links(result.Body, wikiURL)
	if err != nil {
		return nil, fmt.Errorf("page index is unreachable and the wiki root could not be parsed: %w", err)
	}

	var refs []output.PageRef
	seen := make(map[string]bool)
	for _, link := range links {
		if link.Title == "" || !isArticleURL(link.URL) || seen[link.URL] {
			continue
		}
		seen[link.URL] = true
		refs = append(refs, output.PageRef{Title: link.Title, URL: link.URL})
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("page index is unreachable and the wiki root %s lists no article links", wikiURL)
	}
	if onBatch != nil {
		onBatch(len(refs))
	}
	return refs, nil
}

// isArticleURL reports whether a harvested URL looks like a main-namespace
// article path. Namespace pages carry a colon in their final path segment.
func isArticleURL(pageURL string) bool {
	idx := strings.Index(pageURL, "/wiki/")
	if idx < 0 {
		return false
	}
	segment := pageURL[idx+len("/wiki/"):]
	if segment == "" {
		return false
	}
	lower := strings.ToLower(segment)
	return !strings.Contains(segment, ":") && !strings.Contains(lower, "%3a")
}
