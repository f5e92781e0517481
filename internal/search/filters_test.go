package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/domwxyz/marxist-search/internal/store"
)

var filterNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func rowAt(published time.Time) store.UnitRow {
	return store.UnitRow{
		ID:            "a_1",
		ArticleID:     1,
		Title:         "Test",
		Source:        "marxist.com",
		Author:        "Alan Woods",
		PublishedDate: published,
		PublishedYear: published.Year(),
		WordCount:     1200,
	}
}

func TestFilterSourceExactMatch(t *testing.T) {
	c := compileFilters(Filters{Source: "marxist.com"}, "", filterNow)
	assert.True(t, c.matches(rowAt(filterNow)))

	c = compileFilters(Filters{Source: "marxist"}, "", filterNow)
	assert.False(t, c.matches(rowAt(filterNow)))
}

func TestFilterAuthorTokensWholeWord(t *testing.T) {
	row := rowAt(filterNow) // author "Alan Woods"

	assert.True(t, compileFilters(Filters{Author: "alan woods"}, "", filterNow).matches(row))
	assert.True(t, compileFilters(Filters{Author: "Woods"}, "", filterNow).matches(row))
	// Substring of a word is not a whole-word match.
	assert.False(t, compileFilters(Filters{Author: "wood"}, "", filterNow).matches(row))
	// Every token must match.
	assert.False(t, compileFilters(Filters{Author: "alan grant"}, "", filterNow).matches(row))
}

func TestFilterAuthorPrecedence(t *testing.T) {
	row := rowAt(filterNow) // author "Alan Woods"

	c := compileFilters(Filters{}, "Alan Woods", filterNow)
	assert.True(t, c.matches(row))

	c = compileFilters(Filters{Author: "Ted Grant"}, "", filterNow)
	assert.False(t, c.matches(row))

	// Query syntax beats the JSON filter when both name an author.
	c = compileFilters(Filters{Author: "Ted Grant"}, "Alan Woods", filterNow)
	assert.True(t, c.matches(row))
	assert.False(t, c.matches(store.UnitRow{Author: "Ted Grant"}))
}

func TestFilterContentQueryUsesWinningAuthor(t *testing.T) {
	// The SQL predicate and the app-level predicate must agree on the
	// author, or a request setting both would conjoin them and drop
	// every row.
	c := compileFilters(Filters{Author: "Woods"}, "Smith", filterNow)
	q := c.contentQuery(ParsedQuery{}, 100)
	assert.Equal(t, []string{"smith"}, q.AuthorTokens)

	c = compileFilters(Filters{Author: "Woods"}, "", filterNow)
	q = c.contentQuery(ParsedQuery{}, 100)
	assert.Equal(t, []string{"woods"}, q.AuthorTokens)
}

func TestFilterPublishedYear(t *testing.T) {
	row := rowAt(time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC))

	assert.True(t, compileFilters(Filters{PublishedYear: 2019}, "", filterNow).matches(row))
	assert.False(t, compileFilters(Filters{PublishedYear: 2020}, "", filterNow).matches(row))
}

func TestFilterMinWordCountInclusive(t *testing.T) {
	row := rowAt(filterNow) // 1200 words

	assert.True(t, compileFilters(Filters{MinWordCount: 1200}, "", filterNow).matches(row))
	assert.False(t, compileFilters(Filters{MinWordCount: 1201}, "", filterNow).matches(row))
}

func TestFilterDatePresets(t *testing.T) {
	tests := []struct {
		preset    string
		published time.Time
		want      bool
	}{
		{"past_week", filterNow.AddDate(0, 0, -3), true},
		{"past_week", filterNow.AddDate(0, 0, -8), false},
		{"past_month", filterNow.AddDate(0, 0, -20), true},
		{"past_month", filterNow.AddDate(0, 0, -31), false},
		{"past_3months", filterNow.AddDate(0, 0, -89), true},
		{"past_3months", filterNow.AddDate(0, 0, -91), false},
		{"past_year", filterNow.AddDate(0, 0, -300), true},
		{"past_year", filterNow.AddDate(0, 0, -366), false},
	}

	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			c := compileFilters(Filters{DateRange: tt.preset}, "", filterNow)
			assert.Equal(t, tt.want, c.matches(rowAt(tt.published)))
		})
	}
}

func TestFilterDecadePresets(t *testing.T) {
	c := compileFilters(Filters{DateRange: "2010s"}, "", filterNow)

	assert.True(t, c.matches(rowAt(time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC))))
	assert.True(t, c.matches(rowAt(time.Date(2019, 12, 31, 0, 0, 0, 0, time.UTC))))
	assert.False(t, c.matches(rowAt(time.Date(2009, 12, 31, 0, 0, 0, 0, time.UTC))))
	assert.False(t, c.matches(rowAt(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))))
}

func TestFilterExplicitDateBounds(t *testing.T) {
	c := compileFilters(Filters{StartDate: "2020-01-01", EndDate: "2020-12-31"}, "", filterNow)

	assert.True(t, c.matches(rowAt(time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC))))
	// End date is inclusive for the whole day.
	assert.True(t, c.matches(rowAt(time.Date(2020, 12, 31, 18, 0, 0, 0, time.UTC))))
	assert.False(t, c.matches(rowAt(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))))
	assert.False(t, c.matches(rowAt(time.Date(2019, 12, 31, 0, 0, 0, 0, time.UTC))))
}

func TestFilterInvalidDateMatchesNothing(t *testing.T) {
	c := compileFilters(Filters{StartDate: "not-a-date"}, "", filterNow)
	assert.True(t, c.invalidDate)
	assert.False(t, c.matches(rowAt(filterNow)))

	c = compileFilters(Filters{DateRange: "past_century"}, "", filterNow)
	assert.True(t, c.invalidDate)
	assert.False(t, c.matches(rowAt(filterNow)))
}

func TestFilterZeroValueMatchesEverything(t *testing.T) {
	c := compileFilters(Filters{}, "", filterNow)
	assert.True(t, c.matches(rowAt(time.Time{})))
	assert.True(t, c.matches(rowAt(filterNow)))
}

func TestFiltersIsZeroAndHasNonAuthor(t *testing.T) {
	assert.True(t, Filters{}.IsZero())
	assert.False(t, Filters{Source: "x"}.IsZero())

	assert.False(t, Filters{Author: "x"}.HasNonAuthor())
	assert.True(t, Filters{Source: "x"}.HasNonAuthor())
	assert.True(t, Filters{DateRange: "past_week"}.HasNonAuthor())
}
