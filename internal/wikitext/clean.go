// Package wikitext converts raw MediaWiki markup to plain prose for
// downstream chunking. It is a cleaner, not a renderer: templates, tables,
// refs and link markup are stripped while the article text is kept.
package wikitext

import (
	"fmt"
	"regexp"
	"strings"
)

// Error represents wikitext whose structure could not be cleaned.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("wikitext parse error: %s", e.Message)
}

var (
	commentRe  = regexp.MustCompile(`(?s)<!--.*?-->`)
	refPairRe  = regexp.MustCompile(`(?s)<ref[^>/]*>.*?</ref>`)
	refSelfRe  = regexp.MustCompile(`<ref[^>]*/>`)
	htmlTagRe  = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	headingRe  = regexp.MustCompile(`(?m)^(={2,6})\s*(.*?)\s*={2,6}\s*$`)
	bareURLRe  = regexp.MustCompile(`\[(https?://[^\s\]]+)\]`)
	extLinkRe  = regexp.MustCompile(`\[https?://[^\s\]]+\s+([^\]]+)\]`)
	boldItalRe = regexp.MustCompile(`'{2,5}`)
	listItemRe = regexp.MustCompile(`(?m)^[*#;:]+\s*`)
	magicRe    = regexp.MustCompile(`__[A-Z]+__`)
)

// filePrefixes are internal link targets that embed media or metadata
// rather than prose.
var filePrefixes = []string{"file:", "image:", "category:"}

// Clean converts wikitext markup to plain text.
// Returns an Error when brace or bracket structure is unbalanced beyond
// repair; the caller decides whether to skip the page or record it empty.
func Clean(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	text = commentRe.ReplaceAllString(text, "")
	text = refPairRe.ReplaceAllString(text, "")
	text = refSelfRe.ReplaceAllString(text, "")
	text = magicRe.ReplaceAllString(text, "")

	var err error
	if text, err = stripDelimited(text, "{|", "|}"); err != nil {
		return "", err
	}
	if text, err = stripDelimited(text, "{{", "}}"); err != nil {
		return "", err
	}
	if text, err = resolveInternalLinks(text); err != nil {
		return "", err
	}

	text = extLinkRe.ReplaceAllString(text, "$1")
	text = bareURLRe.ReplaceAllString(text, "")
	text = headingRe.ReplaceAllString(text, "$2")
	text = boldItalRe.ReplaceAllString(text, "")
	text = listItemRe.ReplaceAllString(text, "")
	text = htmlTagRe.ReplaceAllString(text, "")

	return normalize(text), nil
}

// stripDelimited removes open...close spans, handling nesting.
func stripDelimited(text, opening, closing string) (string, error) {
	var sb strings.Builder
	depth := 0
	i := 0
	for i < len(text) {
		switch {
		case strings.HasPrefix(text[i:], opening):
			depth++
			i += len(opening)
		case strings.HasPrefix(text[i:], closing):
			if depth == 0 {
				// Stray closer; treat as literal text
				sb.WriteString(closing)
			} else {
				depth--
			}
			i += len(closing)
		default:
			if depth == 0 {
				sb.WriteByte(text[i])
			}
			i++
		}
	}
	if depth != 0 {
		return "", &Error{Message: fmt.Sprintf("unbalanced %s...%s markup", opening, closing)}
	}
	return sb.String(), nil
}

// resolveInternalLinks replaces [[target|label]] with the label (or the
// target when no label is given) and drops file/image/category links
// entirely, including nested captions.
func resolveInternalLinks(text string) (string, error) {
	var sb strings.Builder
	i := 0
	for i < len(text) {
		if !strings.HasPrefix(text[i:], "[[") {
			sb.WriteByte(text[i])
			i++
			continue
		}

		end, ok := matchLink(text, i)
		if !ok {
			return "", &Error{Message: "unterminated [[...]] link"}
		}

		inner := text[i+2 : end]
		sb.WriteString(linkText(inner))
		i = end + 2
	}
	return sb.String(), nil
}

// matchLink finds the closing ]] for the link opening at start, skipping
// nested links (file captions may embed further [[...]]).
func matchLink(text string, start int) (int, bool) {
	depth := 0
	i := start
	for i < len(text)-1 {
		switch {
		case text[i] == '[' && text[i+1] == '[':
			depth++
			i += 2
		case text[i] == ']' && text[i+1] == ']':
			depth--
			if depth == 0 {
				return i, true
			}
			i += 2
		default:
			i++
		}
	}
	return 0, false
}

// linkText renders the inner portion of an internal link.
func linkText(inner string) string {
	lower := strings.ToLower(inner)
	for _, prefix := range filePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}
	if idx := strings.LastIndex(inner, "|"); idx >= 0 {
		return inner[idx+1:]
	}
	return inner
}

var blankRunsRe = regexp.MustCompile(`\n{3,}`)

// normalize trims lines and collapses blank runs.
func normalize(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
