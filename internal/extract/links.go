package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is a harvested article link.
type Link struct {
	Title string
	URL   string
}

// namespacePrefixes are MediaWiki namespaces that never hold article prose.
var namespacePrefixes = []string{
	"Special:", "File:", "Image:", "Category:", "Template:", "Help:",
	"Talk:", "User:", "User_talk:", "MediaWiki:", "Portal:",
}

// isArticleTitle reports whether a page title belongs to the main namespace.
func isArticleTitle(title string) bool {
	for _, prefix := range namespacePrefixes {
		if strings.HasPrefix(title, prefix) || strings.HasPrefix(title, strings.ReplaceAll(prefix, "_", " ")) {
			return false
		}
	}
	return true
}

// Links extracts all same-domain links from HTML content, deduplicated and
// in document order. Fragments are dropped and trailing slashes trimmed so
// equivalent URLs collapse to one entry.
func Links(htmlContent string, baseURL string) ([]Link, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, &Error{URL: baseURL, Message: "failed to parse base URL", Cause: err}
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, &Error{URL: baseURL, Message: "base URL must have scheme and host"}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, &Error{URL: baseURL, Message: "failed to parse HTML", Cause: err}
	}

	linkSet := make(map[string]bool)
	links := make([]Link, 0)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" {
			return
		}

		linkURL, err := url.Parse(href)
		if err != nil {
			return
		}

		absoluteURL := base.ResolveReference(linkURL)
		if absoluteURL.Host != base.Host {
			return
		}

		absoluteURL.Fragment = ""
		urlString := strings.TrimSuffix(absoluteURL.String(), "/")

		if !linkSet[urlString] {
			linkSet[urlString] = true
			links = append(links, Link{
				Title: strings.TrimSpace(s.Text()),
				URL:   urlString,
			})
		}
	})

	return links, nil
}

// IndexLinks extracts article links from a MediaWiki Special:AllPages
// listing. Non-article namespaces are filtered out.
func IndexLinks(htmlContent string, baseURL string) ([]Link, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &Error{URL: baseURL, Message: "invalid base URL", Cause: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, &Error{URL: baseURL, Message: "failed to parse HTML", Cause: err}
	}

	// Listing bodies across MediaWiki versions and skins
	listing := doc.Find("ul.mw-allpages-chunk li a, .mw-allpages-body a, table.allpages a")
	if listing.Length() == 0 {
		return nil, &Error{URL: baseURL, Message: "no page listing found"}
	}

	seen := make(map[string]bool)
	links := make([]Link, 0, listing.Length())

	listing.Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" {
			return
		}
		title := strings.TrimSpace(s.Text())
		if title == "" || !isArticleTitle(title) {
			return
		}

		linkURL, err := url.Parse(href)
		if err != nil {
			return
		}
		absolute := base.ResolveReference(linkURL)
		absolute.Fragment = ""

		urlString := absolute.String()
		if seen[urlString] {
			return
		}
		seen[urlString] = true
		links = append(links, Link{Title: title, URL: urlString})
	})

	return links, nil
}

// NextIndexURL returns the URL of the next Special:AllPages chunk, or ""
// when the listing is on its last page.
func NextIndexURL(htmlContent string, baseURL string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", &Error{URL: baseURL, Message: "invalid base URL", Cause: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", &Error{URL: baseURL, Message: "failed to parse HTML", Cause: err}
	}

	next := ""
	doc.Find(".mw-allpages-nav a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(s.Text())), "next page") {
			return true
		}
		if href, exists := s.Attr("href"); exists {
			linkURL, err := url.Parse(href)
			if err == nil {
				next = base.ResolveReference(linkURL).String()
				return false
			}
		}
		return true
	})

	return next, nil
}
