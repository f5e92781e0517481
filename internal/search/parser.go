package search

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/domwxyz/marxist-search/internal/errors"
)

// MaxQueryLength is the parser-level query length cap in characters.
const MaxQueryLength = 1000

// maxValueLength caps each extracted field value and phrase.
const maxValueLength = 500

var (
	// field:"value" with a word field name, extracted before bare phrases.
	fieldPattern = regexp.MustCompile(`(\w+):"([^"]*)"`)
	// Remaining quoted runs.
	phrasePattern = regexp.MustCompile(`"([^"]*)"`)
)

// validFields are the recognized field prefixes. Unknown fields are
// dropped with a warning, never an error.
var validFields = map[string]bool{
	"title":  true,
	"author": true,
}

// ParseQuery extracts the structured plan from a raw query string.
//
// Grammar fragments, greedy, in order: field:"value" pairs, then bare
// "phrase" runs, then whitespace-separated semantic tokens. Values are
// sanitized and never reach SQL unparameterized.
//
// The only parse failure is a query over MaxQueryLength characters.
func ParseQuery(query string) (ParsedQuery, error) {
	var parsed ParsedQuery

	if utf8.RuneCountInString(query) > MaxQueryLength {
		return parsed, errors.New(errors.ErrCodeQueryTooLong,
			"query exceeds 1000 characters", nil).
			WithDetail("length", strconv.Itoa(utf8.RuneCountInString(query)))
	}

	remaining := query

	for _, m := range fieldPattern.FindAllStringSubmatch(remaining, -1) {
		field := strings.ToLower(m[1])
		value := sanitizeValue(m[2])
		if value == "" {
			continue
		}
		switch {
		case field == "title":
			parsed.TitlePhrases = append(parsed.TitlePhrases, value)
		case field == "author":
			// Last author wins.
			parsed.AuthorFilter = value
		case !validFields[field]:
			slog.Warn("dropping unknown query field", slog.String("field", field))
		}
	}
	remaining = fieldPattern.ReplaceAllString(remaining, " ")

	for _, m := range phrasePattern.FindAllStringSubmatch(remaining, -1) {
		if value := sanitizeValue(m[1]); value != "" {
			parsed.ExactPhrases = append(parsed.ExactPhrases, value)
		}
	}
	remaining = phrasePattern.ReplaceAllString(remaining, " ")

	for _, token := range strings.Fields(remaining) {
		if value := sanitizeValue(token); value != "" {
			parsed.SemanticTerms = append(parsed.SemanticTerms, value)
		}
	}

	return parsed, nil
}

// sanitizeValue strips null bytes, trims whitespace, and truncates to
// maxValueLength characters.
func sanitizeValue(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxValueLength {
		runes := []rune(s)
		s = string(runes[:maxValueLength])
	}
	return s
}
