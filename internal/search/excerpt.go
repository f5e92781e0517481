package search

import (
	"strings"
	"unicode/utf8"
)

const (
	excerptContext  = 100
	excerptFallback = 200
)

// buildExcerpt produces the result snippet: a window centered on the
// first whole-word occurrence of a matched phrase, or the opening of the
// body when no phrase matches. Returns the excerpt and the phrase that
// matched, if any.
//
// Indexed documents carry the title prepended to the body, so a match
// inside that prefix would excerpt the title itself; when a later
// occurrence exists past the prefix it is preferred.
func buildExcerpt(body, title string, phrases []string) (string, *string) {
	if body == "" {
		return "", nil
	}
	lowerBody := strings.ToLower(body)

	for _, phrase := range phrases {
		re := wholeWordPattern(phrase)
		if re == nil {
			continue
		}
		loc := re.FindStringIndex(lowerBody)
		if loc == nil {
			continue
		}

		if prefix := titleReplicaPrefix(lowerBody, strings.ToLower(title)); loc[0] < prefix {
			if next := re.FindStringIndex(lowerBody[prefix:]); next != nil {
				loc = []int{next[0] + prefix, next[1] + prefix}
			}
		}

		matched := phrase
		return sliceWindow(body, loc[0], loc[1]), &matched
	}

	if len(body) > excerptFallback {
		cut := excerptFallback
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		return strings.TrimSpace(body[:cut]) + "…", nil
	}
	return body, nil
}

// titleReplicaPrefix returns the length of the leading run of body that
// replicates the title (possibly repeated by title-weighted indexing).
// Returns 0 when the body does not open with the title.
func titleReplicaPrefix(lowerBody, lowerTitle string) int {
	title := strings.TrimSpace(lowerTitle)
	if title == "" {
		return 0
	}
	prefix := 0
	rest := lowerBody
	for strings.HasPrefix(strings.TrimLeft(rest, " \t\n"), title) {
		skipped := len(rest) - len(strings.TrimLeft(rest, " \t\n"))
		prefix += skipped + len(title)
		rest = lowerBody[prefix:]
	}
	return prefix
}

// sliceWindow cuts the excerpt window around a match and marks truncated
// edges with ellipses.
func sliceWindow(body string, start, end int) string {
	lo := start - excerptContext
	if lo < 0 {
		lo = 0
	}
	hi := end + excerptContext
	if hi > len(body) {
		hi = len(body)
	}

	// Never split a multibyte rune at either edge.
	for lo > 0 && !utf8.RuneStart(body[lo]) {
		lo--
	}
	for hi < len(body) && !utf8.RuneStart(body[hi]) {
		hi++
	}

	excerpt := strings.TrimSpace(body[lo:hi])
	if lo > 0 {
		excerpt = "…" + excerpt
	}
	if hi < len(body) {
		excerpt += "…"
	}
	return excerpt
}
