// Package fetch - flavor.go provides wiki engine detection and engine-specific selectors.
package fetch

import (
	"regexp"
	"strings"
)

// Flavor represents a known wiki engine.
type Flavor string

const (
	// FlavorMediaWiki is the MediaWiki engine (Wikipedia, Fandom, most wiki farms)
	FlavorMediaWiki Flavor = "mediawiki"
	// FlavorDokuWiki is the DokuWiki engine
	FlavorDokuWiki Flavor = "dokuwiki"
	// FlavorUnknown is an unrecognized engine
	FlavorUnknown Flavor = "unknown"
)

var generatorRe = regexp.MustCompile(`(?i)<meta\s+name="generator"\s+content="([^"]+)"`)

// DetectFlavor identifies the wiki engine from page HTML.
// It checks the generator meta tag first, then falls back to engine-specific
// DOM markers.
func DetectFlavor(html string) Flavor {
	if m := generatorRe.FindStringSubmatch(html); m != nil {
		generator := strings.ToLower(m[1])
		if strings.Contains(generator, "mediawiki") {
			return FlavorMediaWiki
		}
		if strings.Contains(generator, "dokuwiki") {
			return FlavorDokuWiki
		}
	}

	if strings.Contains(html, "mw-content-text") || strings.Contains(html, "mw-parser-output") {
		return FlavorMediaWiki
	}
	if strings.Contains(html, "dokuwiki__content") || strings.Contains(html, `class="dokuwiki`) {
		return FlavorDokuWiki
	}

	return FlavorUnknown
}

// FlavorContentSelectors returns content selectors for a specific wiki engine.
func FlavorContentSelectors(flavor Flavor) []string {
	switch flavor {
	case FlavorMediaWiki:
		return []string{
			".mw-parser-output", // Primary MediaWiki selector
			"#mw-content-text",  // Fallback
			"#bodyContent",      // Older skins
			"#content",          // Generic fallback
		}
	case FlavorDokuWiki:
		return []string{
			"#dokuwiki__content .page",
			"#dokuwiki__content",
			".dokuwiki .page",
			"#content",
		}
	default:
		return DefaultContentSelectors()
	}
}

// FlavorNoiseSelectors returns noise exclusion selectors for a specific wiki engine.
func FlavorNoiseSelectors(flavor Flavor) []string {
	// Chrome shared by most wiki skins
	common := []string{
		"nav", "footer", "header", "script", "style", "noscript",
		".sidebar", "#sidebar", ".breadcrumbs",
	}

	switch flavor {
	case FlavorMediaWiki:
		return append(common,
			"#toc", ".toc",
			".mw-editsection",
			".mw-jump-link",
			".navbox", ".vertical-navbox",
			".infobox", "table.metadata",
			".catlinks", "#catlinks",
			".printfooter",
			".hatnote",
			".mw-references-wrap", ".reflist",
			"#siteSub", "#contentSub",
		)
	case FlavorDokuWiki:
		return append(common,
			"#dw__toc", ".toc",
			".secedit",
			".docInfo",
			".pageId",
		)
	default:
		return common
	}
}

// DefaultContentSelectors returns standard selectors for pages on an
// unrecognized engine.
func DefaultContentSelectors() []string {
	return []string{
		"main",
		"article",
		".content",
		"#content",
		".main-content",
		"#main-content",
	}
}
