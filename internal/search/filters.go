package search

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/domwxyz/marxist-search/internal/store"
)

// Filters holds the attribute predicates applied to the recall set in
// application code. Date presets are anchored to the current UTC date.
type Filters struct {
	Source        string `json:"source,omitempty"`
	Author        string `json:"author,omitempty"`
	DateRange     string `json:"date_range,omitempty"`
	StartDate     string `json:"start_date,omitempty"`
	EndDate       string `json:"end_date,omitempty"`
	PublishedYear int    `json:"published_year,omitempty"`
	MinWordCount  int    `json:"min_word_count,omitempty"`
}

// IsZero reports whether no predicate is set.
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// HasNonAuthor reports whether any predicate other than author is set.
// Author alone does not stop an empty query from short-circuiting; it is
// folded into the parsed query instead.
func (f Filters) HasNonAuthor() bool {
	g := f
	g.Author = ""
	return !g.IsZero()
}

const dateLayout = "2006-01-02"

// decadePresets maps decade names to their first year.
var decadePresets = map[string]int{
	"2020s": 2020,
	"2010s": 2010,
	"2000s": 2000,
	"1990s": 1990,
}

// agePresets maps rolling-window names to their maximum age.
var agePresets = map[string]time.Duration{
	"past_week":    7 * 24 * time.Hour,
	"past_month":   30 * 24 * time.Hour,
	"past_3months": 90 * 24 * time.Hour,
	"past_year":    365 * 24 * time.Hour,
}

// compiledFilters is the per-query evaluated form of Filters: author
// tokens pre-compiled, dates resolved against a fixed now.
type compiledFilters struct {
	source        string
	author        string
	authorTokens  []*regexp.Regexp
	publishedYear int
	minWordCount  int

	dateBounded bool
	yearLo      int // decade presets filter by year, not timestamp
	yearHi      int
	start       time.Time
	end         time.Time
	invalidDate bool
}

// compileFilters resolves a Filters value at a fixed instant. An author
// filter from the query syntax overrides the JSON filter when both are
// present: power-user syntax beats UI filters. One winning author feeds
// both the app-level predicate and the SQL predicate, so the two can
// never conjoin into an empty result set.
func compileFilters(f Filters, queryAuthor string, now time.Time) compiledFilters {
	c := compiledFilters{
		source:        f.Source,
		publishedYear: f.PublishedYear,
		minWordCount:  f.MinWordCount,
	}

	author := queryAuthor
	if author == "" {
		author = f.Author
	}
	c.author = author
	for _, token := range strings.Fields(strings.ToLower(author)) {
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(token) + `\b`)
		if err != nil {
			continue
		}
		c.authorTokens = append(c.authorTokens, re)
	}

	now = now.UTC()

	switch {
	case f.DateRange != "":
		if firstYear, ok := decadePresets[f.DateRange]; ok {
			c.dateBounded = true
			c.yearLo = firstYear
			c.yearHi = firstYear + 9
			break
		}
		if maxAge, ok := agePresets[f.DateRange]; ok {
			c.dateBounded = true
			c.start = now.Add(-maxAge)
			c.end = now
			break
		}
		slog.Warn("unknown date_range preset", slog.String("date_range", f.DateRange))
		c.invalidDate = true

	case f.StartDate != "" || f.EndDate != "":
		c.dateBounded = true
		c.end = now
		if f.StartDate != "" {
			t, err := time.Parse(dateLayout, f.StartDate)
			if err != nil {
				slog.Warn("invalid start_date", slog.String("start_date", f.StartDate))
				c.invalidDate = true
				break
			}
			c.start = t
		}
		if f.EndDate != "" {
			t, err := time.Parse(dateLayout, f.EndDate)
			if err != nil {
				slog.Warn("invalid end_date", slog.String("end_date", f.EndDate))
				c.invalidDate = true
				break
			}
			// Inclusive end date: cover the whole day.
			c.end = t.Add(24*time.Hour - time.Nanosecond)
		}
	}

	return c
}

// matches applies every predicate to one row. An invalid date makes the
// date predicate false for every row rather than failing the query.
func (c compiledFilters) matches(row store.UnitRow) bool {
	if c.invalidDate {
		return false
	}
	if c.source != "" && row.Source != c.source {
		return false
	}
	if len(c.authorTokens) > 0 {
		author := strings.ToLower(row.Author)
		for _, re := range c.authorTokens {
			if !re.MatchString(author) {
				return false
			}
		}
	}
	if c.publishedYear != 0 && row.PublishedYear != c.publishedYear {
		return false
	}
	if c.minWordCount != 0 && row.WordCount < c.minWordCount {
		return false
	}
	if c.dateBounded {
		if c.yearLo != 0 {
			if row.PublishedYear < c.yearLo || row.PublishedYear > c.yearHi {
				return false
			}
		} else {
			if row.PublishedDate.IsZero() {
				return false
			}
			if !c.start.IsZero() && row.PublishedDate.Before(c.start) {
				return false
			}
			if !c.end.IsZero() && row.PublishedDate.After(c.end) {
				return false
			}
		}
	}
	return true
}

// contentQuery materializes the filters as SQL predicates for the
// metadata-only path. The author predicate comes from the same winning
// author as the app-level predicate.
func (c compiledFilters) contentQuery(parsed ParsedQuery, limit int) store.ContentQuery {
	q := store.ContentQuery{
		ExactPhrases: parsed.ExactPhrases,
		TitlePhrases: parsed.TitlePhrases,
		Source:       c.source,
		AuthorTokens: strings.Fields(strings.ToLower(c.author)),
		Year:         c.publishedYear,
		MinWordCount: c.minWordCount,
		Limit:        limit,
	}
	if c.dateBounded && !c.invalidDate {
		if c.yearLo != 0 {
			q.StartDate = time.Date(c.yearLo, 1, 1, 0, 0, 0, 0, time.UTC)
			q.EndDate = time.Date(c.yearHi, 12, 31, 23, 59, 59, 0, time.UTC)
		} else {
			q.StartDate = c.start
			q.EndDate = c.end
		}
	}
	return q
}
