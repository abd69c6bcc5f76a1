package output

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// maxFilenameLength caps sanitized filenames to stay under filesystem limits.
const maxFilenameLength = 200

var (
	unsafeCharsRe = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// SanitizeFilename converts a wiki page title to a safe filename stem.
// The length cap counts runes so multi-byte titles are never split
// mid-character.
func SanitizeFilename(title string) string {
	name := unsafeCharsRe.ReplaceAllString(title, "_")
	name = whitespaceRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if runes := []rune(name); len(runes) > maxFilenameLength {
		name = string(runes[:maxFilenameLength])
	}
	return name
}

// ConvertResult reports the outcome of a collection-to-documents conversion.
type ConvertResult struct {
	Converted int
	Skipped   int
}

// ConvertToDocuments splits a collection into one text document per page,
// suitable for knowledge-base import. Pages with empty text are skipped.
// Each document carries a small metadata header ahead of the content.
func ConvertToDocuments(col *Collection, outDir string) (*ConvertResult, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", outDir, err)
	}

	result := &ConvertResult{}

	for _, page := range col.Pages {
		if strings.TrimSpace(page.Text) == "" {
			result.Skipped++
			continue
		}

		name := SanitizeFilename(page.Title)
		if name == "" {
			result.Skipped++
			continue
		}

		document := fmt.Sprintf("TITLE: %s\nURL: %s\nWORD COUNT: %d\n\nCONTENT:\n%s\n",
			page.Title, page.URL, page.WordCount, page.Text)

		path := filepath.Join(outDir, name+".txt")
		if err := os.WriteFile(path, []byte(document), 0644); err != nil {
			return nil, fmt.Errorf("failed to write document %s: %w", path, err)
		}
		result.Converted++
	}

	return result, nil
}
