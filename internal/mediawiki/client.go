// Package mediawiki implements a minimal client for the MediaWiki action
// API: page enumeration via list=allpages and wikitext retrieval via
// prop=revisions.
package mediawiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/kmori/wikiharvest/internal/fetch"
)

// allPagesBatchSize is the maximum page count per allpages request.
const allPagesBatchSize = 500

// allPagesMaxBatches bounds the continuation loop so a server that never
// exhausts its listing cannot hang enumeration.
const allPagesMaxBatches = 10000

// mainNamespace restricts enumeration to articles.
const mainNamespace = "0"

// Client talks to one wiki's api.php endpoint.
type Client struct {
	baseURL string
	apiURL  string
	opts    *fetch.Options
}

// NewClient creates a client for the wiki rooted at baseURL.
func NewClient(baseURL string, opts *fetch.Options) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if opts == nil {
		opts = fetch.DefaultOptions()
	}
	return &Client{
		baseURL: baseURL,
		apiURL:  baseURL + "/api.php",
		opts:    opts,
	}
}

// BaseURL returns the wiki root this client was built for.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PageURL returns the canonical article URL for a page title.
func (c *Client) PageURL(title string) string {
	return c.baseURL + "/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

// get performs an API GET with the given query parameters.
func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	params.Set("format", "json")
	requestURL := c.apiURL + "?" + params.Encode()

	result, err := fetch.URLWithRetry(ctx, requestURL, c.opts)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(result.Body), out); err != nil {
		return fmt.Errorf("decoding API response from %s: %w", c.apiURL, err)
	}
	return nil
}

type siteInfoResponse struct {
	Query struct {
		General struct {
			Sitename  string `json:"sitename"`
			Generator string `json:"generator"`
		} `json:"general"`
	} `json:"query"`
}

// Probe checks whether the wiki exposes a working action API.
// Returns the site name on success.
func (c *Client) Probe(ctx context.Context) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "siteinfo")

	var resp siteInfoResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return "", fmt.Errorf("API probe failed: %w", err)
	}
	if resp.Query.General.Generator == "" {
		return "", fmt.Errorf("API probe failed: %s returned no siteinfo", c.apiURL)
	}
	return resp.Query.General.Sitename, nil
}

type allPagesResponse struct {
	Continue struct {
		APContinue string `json:"apcontinue"`
	} `json:"continue"`
	Query struct {
		AllPages []struct {
			PageID int    `json:"pageid"`
			Title  string `json:"title"`
		} `json:"allpages"`
	} `json:"query"`
}

// AllPages enumerates every article title in the main namespace, following
// apcontinue continuation tokens until the listing is exhausted. Titles are
// returned in listing order with duplicates removed. onBatch, when non-nil,
// is invoked with the running total after each batch.
func (c *Client) AllPages(ctx context.Context, onBatch func(total int)) ([]string, error) {
	seen := make(map[string]bool)
	titles := make([]string, 0, allPagesBatchSize)
	continueToken := ""
	usedTokens := make(map[string]bool)

	for batch := 0; batch < allPagesMaxBatches; batch++ {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("list", "allpages")
		params.Set("aplimit", fmt.Sprintf("%d", allPagesBatchSize))
		params.Set("apnamespace", mainNamespace)
		if continueToken != "" {
			params.Set("apcontinue", continueToken)
		}

		var resp allPagesResponse
		if err := c.get(ctx, params, &resp); err != nil {
			return nil, fmt.Errorf("enumerating pages: %w", err)
		}

		for _, page := range resp.Query.AllPages {
			if page.Title == "" || seen[page.Title] {
				continue
			}
			seen[page.Title] = true
			titles = append(titles, page.Title)
		}

		if onBatch != nil {
			onBatch(len(titles))
		}

		if resp.Continue.APContinue == "" {
			return titles, nil
		}
		if usedTokens[resp.Continue.APContinue] {
			return nil, fmt.Errorf("enumerating pages: server repeated continuation token %q", resp.Continue.APContinue)
		}
		usedTokens[resp.Continue.APContinue] = true
		continueToken = resp.Continue.APContinue

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}

	return nil, fmt.Errorf("enumerating pages: listing did not finish within %d batches", allPagesMaxBatches)
}

type revisionsResponse struct {
	Query struct {
		Pages map[string]struct {
			Title     string  `json:"title"`
			Missing   *string `json:"missing"`
			Revisions []struct {
				Slots struct {
					Main struct {
						Content string `json:"*"`
					} `json:"main"`
				} `json:"slots"`
			} `json:"revisions"`
		} `json:"pages"`
	} `json:"query"`
}

// PageWikitext fetches the current wikitext of a page by title.
func (c *Client) PageWikitext(ctx context.Context, title string) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "revisions")
	params.Set("titles", title)
	params.Set("rvprop", "content")
	params.Set("rvslots", "main")

	var resp revisionsResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return "", fmt.Errorf("fetching %q: %w", title, err)
	}

	for _, page := range resp.Query.Pages {
		if page.Missing != nil {
			return "", &fetch.Error{
				URL:     c.PageURL(title),
				Message: fmt.Sprintf("page %q does not exist", title),
			}
		}
		if len(page.Revisions) > 0 {
			return page.Revisions[0].Slots.Main.Content, nil
		}
	}

	return "", &fetch.Error{
		URL:     c.PageURL(title),
		Message: fmt.Sprintf("no revision content for %q", title),
	}
}
