// Package extract turns raw wiki HTML into clean article text and harvests
// links from index listings.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Error represents a failure to extract text from a page whose structure
// is unrecognized or unparseable.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extract error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("extract error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Text parses HTML and returns the article body text.
// It removes noise elements using noiseSelectors, then finds content using
// contentSelectors. If no content selector matches, it falls back to the
// body element; an empty result for a non-empty document is an error so
// callers can apply their skip-or-record policy.
func Text(html string, contentSelectors []string, noiseSelectors ...string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", &Error{Message: "failed to parse HTML", Cause: err}
	}

	// Strip script/style and shared chrome before selecting content
	doc.Find("script, style, noscript").Remove()

	if len(noiseSelectors) > 0 {
		noiseSelector := strings.Join(noiseSelectors, ", ")
		if noiseSelector != "" {
			doc.Find(noiseSelector).Remove()
		}
	}

	var mainContent *goquery.Selection
	for _, selector := range contentSelectors {
		if selection := doc.Find(selector); selection.Length() > 0 {
			mainContent = selection.First()
			break
		}
	}

	if mainContent == nil {
		mainContent = doc.Find("body")
	}

	text := CleanText(mainContent.Text())
	if text == "" && strings.TrimSpace(html) != "" {
		return "", &Error{Message: "no article text found"}
	}

	return text, nil
}

// CleanText normalizes extracted text: line endings, per-line whitespace,
// and excessive blank lines. Structure (one paragraph or heading per line)
// is preserved.
func CleanText(content string) string {
	if content == "" {
		return ""
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	lines := strings.Split(content, "\n")
	cleanedLines := make([]string, 0, len(lines))
	for _, line := range lines {
		cleanedLines = append(cleanedLines, cleanLine(line))
	}

	result := strings.Join(cleanedLines, "\n")
	result = removeExcessiveBlankLines(result)
	return strings.TrimSpace(result)
}

var innerSpaceRe = regexp.MustCompile(`[ \t]+`)

// cleanLine collapses runs of spaces within a line and trims the edges.
func cleanLine(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	return innerSpaceRe.ReplaceAllString(line, " ")
}

var blankLinesRe = regexp.MustCompile(`\n\n\n+`)

// removeExcessiveBlankLines reduces consecutive blank lines to max 2.
func removeExcessiveBlankLines(content string) string {
	return blankLinesRe.ReplaceAllString(content, "\n\n")
}

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
