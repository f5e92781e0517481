package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domwxyz/marxist-search/internal/errors"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  ParsedQuery
	}{
		{
			name:  "bare tokens",
			query: "permanent revolution",
			want:  ParsedQuery{SemanticTerms: []string{"permanent", "revolution"}},
		},
		{
			name:  "quoted phrase",
			query: `"dual power" soviets`,
			want: ParsedQuery{
				SemanticTerms: []string{"soviets"},
				ExactPhrases:  []string{"dual power"},
			},
		},
		{
			name:  "title field",
			query: `title:"state and revolution"`,
			want:  ParsedQuery{TitlePhrases: []string{"state and revolution"}},
		},
		{
			name:  "author field",
			query: `author:"Ted Grant" crisis`,
			want: ParsedQuery{
				SemanticTerms: []string{"crisis"},
				AuthorFilter:  "Ted Grant",
			},
		},
		{
			name:  "last author wins",
			query: `author:"Ted Grant" author:"Alan Woods"`,
			want:  ParsedQuery{AuthorFilter: "Alan Woods"},
		},
		{
			name:  "unknown field dropped",
			query: `publisher:"Wellred" economy`,
			want:  ParsedQuery{SemanticTerms: []string{"economy"}},
		},
		{
			name:  "mixed fields phrases and tokens",
			query: `author:"Rob Sewell" "mass strike" germany 1923`,
			want: ParsedQuery{
				SemanticTerms: []string{"germany", "1923"},
				ExactPhrases:  []string{"mass strike"},
				AuthorFilter:  "Rob Sewell",
			},
		},
		{
			name:  "empty phrase ignored",
			query: `"" economy`,
			want:  ParsedQuery{SemanticTerms: []string{"economy"}},
		},
		{
			name:  "empty query",
			query: "",
			want:  ParsedQuery{},
		},
		{
			name:  "whitespace only",
			query: "   \t  ",
			want:  ParsedQuery{},
		},
		{
			name:  "null bytes stripped",
			query: "econ\x00omy",
			want:  ParsedQuery{SemanticTerms: []string{"economy"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuery(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQueryTooLong(t *testing.T) {
	_, err := ParseQuery(strings.Repeat("a", MaxQueryLength+1))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeQueryTooLong, errors.GetCode(err))
}

func TestParseQueryAtLengthLimit(t *testing.T) {
	_, err := ParseQuery(strings.Repeat("a", MaxQueryLength))
	assert.NoError(t, err)
}

func TestParseQueryLengthIsRuneCount(t *testing.T) {
	// Multibyte runes count once each.
	_, err := ParseQuery(strings.Repeat("é", MaxQueryLength))
	assert.NoError(t, err)
}

func TestHasContent(t *testing.T) {
	assert.False(t, ParsedQuery{}.HasContent())
	assert.True(t, ParsedQuery{SemanticTerms: []string{"x"}}.HasContent())
	assert.True(t, ParsedQuery{ExactPhrases: []string{"x"}}.HasContent())
	assert.True(t, ParsedQuery{TitlePhrases: []string{"x"}}.HasContent())
	assert.True(t, ParsedQuery{AuthorFilter: "x"}.HasContent())
}
