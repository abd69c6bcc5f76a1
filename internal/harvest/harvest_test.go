package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmori/wikiharvest/internal/config"
	"github.com/kmori/wikiharvest/internal/output"
)

// fakeAPIWiki serves a minimal MediaWiki action API with four articles:
// Alpha and Beta have content, Gamma is empty, Delta has no revision.
func fakeAPIWiki(t *testing.T) *httptest.Server {
	t.Helper()

	pages := map[string]string{
		"Alpha": "Alpha is the '''first''' page of the wiki.",
		"Beta":  "Beta follows [[Alpha]] closely.",
		"Gamma": "",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api.php", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")

		switch {
		case q.Get("meta") == "siteinfo":
			fmt.Fprint(w, `{"query":{"general":{"sitename":"Testipedia","generator":"MediaWiki 1.41.0"}}}`)

		case q.Get("list") == "allpages":
			type page struct {
				PageID int    `json:"pageid"`
				Title  string `json:"title"`
			}
			var body map[string]any
			if q.Get("apcontinue") == "" {
				body = map[string]any{
					"continue": map[string]string{"apcontinue": "Gamma"},
					"query":    map[string]any{"allpages": []page{{1, "Alpha"}, {2, "Beta"}}},
				}
			} else {
				body = map[string]any{
					"query": map[string]any{"allpages": []page{{3, "Gamma"}, {4, "Delta"}}},
				}
			}
			_ = json.NewEncoder(w).Encode(body)

		case q.Get("prop") == "revisions":
			title := q.Get("titles")
			content, ok := pages[title]
			if !ok {
				fmt.Fprintf(w, `{"query":{"pages":{"-1":{"title":%q,"missing":""}}}}`, title)
				return
			}
			resp := map[string]any{
				"query": map[string]any{
					"pages": map[string]any{
						"1": map[string]any{
							"title": title,
							"revisions": []map[string]any{
								{"slots": map[string]any{"main": map[string]string{"*": content}}},
							},
						},
					},
				},
			}
			_ = json.NewEncoder(w).Encode(resp)

		default:
			http.NotFound(w, r)
		}
	})

	return httptest.NewServer(mux)
}

func articleHTML(title, body string) string {
	return fmt.Sprintf(`<html><head>
<meta name="generator" content="MediaWiki 1.41.0">
<title>%s</title></head>
<body><div id="mw-content-text"><div class="mw-parser-output"><p>%s</p></div></div></body></html>`, title, body)
}

// fakeHTMLWiki serves a Special:AllPages index in two chunks plus the
// article pages themselves. Beta returns 404.
func fakeHTMLWiki(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/wiki/Special:AllPages", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("from") == "" {
			fmt.Fprint(w, `<html><body>
<div class="mw-allpages-nav"><a href="/wiki/Special:AllPages?from=Gamma">Next page (Gamma)</a></div>
<ul class="mw-allpages-chunk">
<li><a href="/wiki/Alpha">Alpha</a></li>
<li><a href="/wiki/Beta">Beta</a></li>
</ul></body></html>`)
			return
		}
		fmt.Fprint(w, `<html><body>
<ul class="mw-allpages-chunk">
<li><a href="/wiki/Gamma">Gamma</a></li>
<li><a href="/wiki/Alpha">Alpha</a></li>
</ul></body></html>`)
	})
	mux.HandleFunc("/wiki/Alpha", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleHTML("Alpha", "Alpha is the first page of the wiki."))
	})
	mux.HandleFunc("/wiki/Beta", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/wiki/Gamma", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleHTML("Gamma", "Gamma closes out the wiki."))
	})

	return httptest.NewServer(mux)
}

func TestRun_APIMode(t *testing.T) {
	server := fakeAPIWiki(t)
	defer server.Close()

	outPath := filepath.Join(t.TempDir(), "wiki.json")
	col, err := Run(context.Background(), Options{
		Wiki:       server.URL,
		Mode:       config.ModeAPI,
		OutputPath: outPath,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, col.Stats.PagesFound)
	assert.Equal(t, 2, col.Stats.PagesScraped)
	assert.Equal(t, 1, col.Stats.PagesSkipped, "empty Gamma should be skipped")
	assert.Equal(t, 1, col.Stats.PagesFailed, "missing Delta should be a failure")

	require.Len(t, col.Pages, 2)
	assert.Equal(t, "Alpha", col.Pages[0].Title)
	assert.Equal(t, "Beta", col.Pages[1].Title)
	assert.Equal(t, "Alpha is the first page of the wiki.", col.Pages[0].Text)
	assert.Equal(t, "Beta follows Alpha closely.", col.Pages[1].Text)
	assert.Equal(t, 8, col.Pages[0].WordCount)

	// Final output exists, checkpoint does not
	loaded, err := output.Load(outPath)
	require.NoError(t, err)
	assert.Equal(t, col.Stats, loaded.Stats)
	_, err = os.Stat(outPath + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestRun_APIMode_KeepRaw(t *testing.T) {
	server := fakeAPIWiki(t)
	defer server.Close()

	col, err := Run(context.Background(), Options{
		Wiki:    server.URL,
		Mode:    config.ModeAPI,
		KeepRaw: true,
	})
	require.NoError(t, err)
	require.Len(t, col.Pages, 2)
	assert.Equal(t, "Alpha is the '''first''' page of the wiki.", col.Pages[0].RawText)
}

func TestRun_HTMLMode(t *testing.T) {
	server := fakeHTMLWiki(t)
	defer server.Close()

	col, err := Run(context.Background(), Options{
		Wiki: server.URL,
		Mode: config.ModeHTML,
	})
	require.NoError(t, err)

	// Alpha appears in both index chunks but must be enumerated once
	assert.Equal(t, 3, col.Stats.PagesFound)
	assert.Equal(t, 2, col.Stats.PagesScraped)
	assert.Equal(t, 1, col.Stats.PagesFailed, "404 Beta should be isolated")

	require.Len(t, col.Pages, 2)
	assert.Equal(t, "Alpha", col.Pages[0].Title)
	assert.Equal(t, "Gamma", col.Pages[1].Title)
	assert.Contains(t, col.Pages[0].Text, "Alpha is the first page")
}

func TestRun_AutoModeFallsBackToHTML(t *testing.T) {
	server := fakeHTMLWiki(t)
	defer server.Close()

	col, err := Run(context.Background(), Options{
		Wiki: server.URL,
		Mode: config.ModeAuto,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, col.Stats.PagesScraped)
}

func TestRun_UnreachableIndexIsFatal(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := Run(context.Background(), Options{
		Wiki: server.URL,
		Mode: config.ModeHTML,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestRun_MaxPages(t *testing.T) {
	server := fakeAPIWiki(t)
	defer server.Close()

	col, err := Run(context.Background(), Options{
		Wiki:     server.URL,
		Mode:     config.ModeAPI,
		MaxPages: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, col.Stats.PagesFound)
	require.Len(t, col.Pages, 2)
	assert.Equal(t, "Alpha", col.Pages[0].Title)
	assert.Equal(t, "Beta", col.Pages[1].Title)
}

func TestRun_RecordEmptyPolicy(t *testing.T) {
	server := fakeAPIWiki(t)
	defer server.Close()

	col, err := Run(context.Background(), Options{
		Wiki:        server.URL,
		Mode:        config.ModeAPI,
		RecordEmpty: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, col.Stats.PagesScraped)
	assert.Equal(t, 0, col.Stats.PagesSkipped)
	require.Len(t, col.Pages, 3)
	assert.Equal(t, "Gamma", col.Pages[2].Title)
	assert.Equal(t, 0, col.Pages[2].WordCount)
}

// fakeBrokenMarkupWiki serves one article whose wikitext cannot be
// cleaned (an unterminated template).
func fakeBrokenMarkupWiki(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api.php", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")

		switch {
		case q.Get("meta") == "siteinfo":
			fmt.Fprint(w, `{"query":{"general":{"sitename":"Testipedia","generator":"MediaWiki 1.41.0"}}}`)

		case q.Get("list") == "allpages":
			fmt.Fprint(w, `{"query":{"allpages":[{"pageid":1,"title":"Broken"}]}}`)

		case q.Get("prop") == "revisions":
			resp := map[string]any{
				"query": map[string]any{
					"pages": map[string]any{
						"1": map[string]any{
							"title": "Broken",
							"revisions": []map[string]any{
								{"slots": map[string]any{"main": map[string]string{"*": "{{Infobox never closed"}}},
							},
						},
					},
				},
			}
			_ = json.NewEncoder(w).Encode(resp)

		default:
			http.NotFound(w, r)
		}
	})

	return httptest.NewServer(mux)
}

func TestRun_ParseErrorFollowsEmptyPolicy(t *testing.T) {
	server := fakeBrokenMarkupWiki(t)
	defer server.Close()

	col, err := Run(context.Background(), Options{
		Wiki: server.URL,
		Mode: config.ModeAPI,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, col.Stats.PagesFailed)
	assert.Empty(t, col.Pages)

	col, err = Run(context.Background(), Options{
		Wiki:        server.URL,
		Mode:        config.ModeAPI,
		RecordEmpty: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, col.Stats.PagesFailed)
	require.Len(t, col.Pages, 1)
	assert.Equal(t, "Broken", col.Pages[0].Title)
	assert.Equal(t, "", col.Pages[0].Text)
	assert.Equal(t, 0, col.Pages[0].WordCount)
}

func TestRun_HTMLMode_RootLinkFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wiki/Special:AllPages", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>This special page has been disabled.</p></body></html>`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body>
<a href="/wiki/Alpha">Alpha</a>
<a href="/wiki/Gamma">Gamma</a>
<a href="/wiki/Special:RecentChanges">Recent changes</a>
</body></html>`)
	})
	mux.HandleFunc("/wiki/Alpha", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleHTML("Alpha", "Alpha is the first page of the wiki."))
	})
	mux.HandleFunc("/wiki/Gamma", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleHTML("Gamma", "Gamma closes out the wiki."))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	col, err := Run(context.Background(), Options{
		Wiki: server.URL,
		Mode: config.ModeHTML,
	})
	require.NoError(t, err)

	// Namespace links from the root page are filtered out
	assert.Equal(t, 2, col.Stats.PagesFound)
	assert.Equal(t, 2, col.Stats.PagesScraped)
	require.Len(t, col.Pages, 2)
	assert.Equal(t, "Alpha", col.Pages[0].Title)
	assert.Equal(t, "Gamma", col.Pages[1].Title)
}

func TestRun_WorkersPreserveOrder(t *testing.T) {
	server := fakeAPIWiki(t)
	defer server.Close()

	col, err := Run(context.Background(), Options{
		Wiki:    server.URL,
		Mode:    config.ModeAPI,
		Workers: 4,
	})
	require.NoError(t, err)
	require.Len(t, col.Pages, 2)
	assert.Equal(t, "Alpha", col.Pages[0].Title)
	assert.Equal(t, "Beta", col.Pages[1].Title)
}

func TestRun_Idempotent(t *testing.T) {
	server := fakeAPIWiki(t)
	defer server.Close()

	opts := Options{Wiki: server.URL, Mode: config.ModeAPI}

	first, err := Run(context.Background(), opts)
	require.NoError(t, err)
	second, err := Run(context.Background(), opts)
	require.NoError(t, err)

	require.Len(t, second.Pages, len(first.Pages))
	for i := range first.Pages {
		assert.Equal(t, first.Pages[i].Title, second.Pages[i].Title)
		assert.Equal(t, first.Pages[i].Text, second.Pages[i].Text)
	}
	assert.Equal(t, first.Stats, second.Stats)
}

func TestRun_CheckpointDuringRun(t *testing.T) {
	server := fakeAPIWiki(t)
	defer server.Close()

	outPath := filepath.Join(t.TempDir(), "wiki.json")
	_, err := Run(context.Background(), Options{
		Wiki:            server.URL,
		Mode:            config.ModeAPI,
		OutputPath:      outPath,
		CheckpointEvery: 1,
	})
	require.NoError(t, err)

	// Checkpoints were written along the way but the final pass removes them
	_, err = os.Stat(outPath)
	assert.NoError(t, err)
	_, err = os.Stat(outPath + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestRun_RequiresWiki(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	require.Error(t, err)
}
