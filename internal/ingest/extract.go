package ingest

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// strippedSelectors are removed wholesale before text extraction.
var strippedSelectors = []string{
	"script", "style", "noscript", "iframe",
	"nav", "aside", "header", "footer", "form",
}

// ExtractText reduces an HTML fragment to plain text with paragraph
// breaks preserved as blank lines. Feeds deliver full-entry HTML in
// their content field; this is the only place markup is handled.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	for _, sel := range strippedSelectors {
		doc.Find(sel).Remove()
	}

	var blocks []string
	doc.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote").Each(func(_ int, s *goquery.Selection) {
		// Containers whose text arrives via nested block elements are
		// skipped to avoid duplicating it.
		if s.Find("p, li").Length() > 0 {
			return
		}
		if text := normalizeSpace(s.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})

	// Markup without block elements: fall back to the whole text.
	if len(blocks) == 0 {
		if text := normalizeSpace(doc.Text()); text != "" {
			blocks = append(blocks, text)
		}
	}

	return strings.Join(blocks, "\n\n"), nil
}

// normalizeSpace collapses runs of whitespace into single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CountWords counts whitespace-separated tokens.
func CountWords(s string) int {
	return len(strings.Fields(s))
}
