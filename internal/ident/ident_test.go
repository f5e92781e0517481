package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domwxyz/marxist-search/internal/errors"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		id   UnitID
	}{
		{"article", UnitID{Kind: KindArticle, ArticleID: 42}},
		{"article zero", UnitID{Kind: KindArticle, ArticleID: 0}},
		{"chunk", UnitID{Kind: KindChunk, ArticleID: 42, ChunkIndex: 3}},
		{"chunk zero index", UnitID{Kind: KindChunk, ArticleID: 7, ChunkIndex: 0}},
		{"large ids", UnitID{Kind: KindChunk, ArticleID: 999999999, ChunkIndex: 120}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := Parse(tt.id.String())
			require.NoError(t, err)
			assert.Equal(t, tt.id, parsed)
		})
	}
}

func TestMakeArticleID(t *testing.T) {
	assert.Equal(t, "a_123", MakeArticleID(123))
	assert.Equal(t, "c_123_4", MakeChunkID(123, 4))
}

func TestParseRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"a_",
		"a_abc",
		"a_12.5",
		"c_12",
		"c_12_",
		"c__3",
		"c_12_3_4",
		"c_x_3",
		"c_12_y",
		"b_12",
		"12",
		"article_12",
	}

	for _, id := range bad {
		t.Run(id, func(t *testing.T) {
			_, err := Parse(id)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeMalformedID, errors.GetCode(err))
		})
	}
}

func TestArticleIDOf(t *testing.T) {
	n, err := ArticleIDOf("a_5")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = ArticleIDOf("c_5_2")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = ArticleIDOf("junk")
	assert.Error(t, err)
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, IsArticleID("a_1"))
	assert.False(t, IsArticleID("c_1_0"))
	assert.True(t, IsChunkID("c_1_0"))
	assert.False(t, IsChunkID("a_1"))
	assert.False(t, IsArticleID("nope"))
	assert.False(t, IsChunkID("nope"))
}

func TestGroupByArticle(t *testing.T) {
	groups := GroupByArticle([]string{"a_1", "c_2_0", "c_2_1", "c_1_5", "bogus"})

	require.Len(t, groups, 2)
	assert.ElementsMatch(t, []string{"a_1", "c_1_5"}, groups[1])
	assert.ElementsMatch(t, []string{"c_2_0", "c_2_1"}, groups[2])
}
