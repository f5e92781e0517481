// Package ident defines the string identifier scheme for indexed units.
//
// Every unit in the vector index is either a whole article or a chunk of
// a long article. The two forms share one string namespace:
//
//	a_<article_id>            whole article
//	c_<article_id>_<index>    chunk <index> of article <article_id>
//
// Parsing is strict: anything that is not exactly one of these two forms
// is rejected with a malformed-id error so corrupt index entries surface
// early instead of flowing through the pipeline.
package ident

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/domwxyz/marxist-search/internal/errors"
)

// Kind discriminates the two unit forms.
type Kind int

const (
	// KindArticle identifies a whole-article unit (a_<id>).
	KindArticle Kind = iota
	// KindChunk identifies a chunk unit (c_<id>_<k>).
	KindChunk
)

// UnitID is the parsed form of an indexed-unit identifier.
// ChunkIndex is meaningful only when Kind == KindChunk.
type UnitID struct {
	Kind       Kind
	ArticleID  int
	ChunkIndex int
}

// String formats the identifier back to its wire form.
func (u UnitID) String() string {
	if u.Kind == KindChunk {
		return MakeChunkID(u.ArticleID, u.ChunkIndex)
	}
	return MakeArticleID(u.ArticleID)
}

// MakeArticleID builds the identifier for a whole-article unit.
func MakeArticleID(articleID int) string {
	return "a_" + strconv.Itoa(articleID)
}

// MakeChunkID builds the identifier for a chunk unit.
func MakeChunkID(articleID, chunkIndex int) string {
	return "c_" + strconv.Itoa(articleID) + "_" + strconv.Itoa(chunkIndex)
}

// Parse decodes an identifier string into its tagged form.
// Returns ERR_401_MALFORMED_ID for any string outside the scheme.
func Parse(id string) (UnitID, error) {
	switch {
	case strings.HasPrefix(id, "a_"):
		n, err := strconv.Atoi(id[2:])
		if err != nil {
			return UnitID{}, malformed(id)
		}
		return UnitID{Kind: KindArticle, ArticleID: n}, nil

	case strings.HasPrefix(id, "c_"):
		parts := strings.Split(id[2:], "_")
		if len(parts) != 2 {
			return UnitID{}, malformed(id)
		}
		n, err := strconv.Atoi(parts[0])
		if err != nil {
			return UnitID{}, malformed(id)
		}
		k, err := strconv.Atoi(parts[1])
		if err != nil {
			return UnitID{}, malformed(id)
		}
		return UnitID{Kind: KindChunk, ArticleID: n, ChunkIndex: k}, nil

	default:
		return UnitID{}, malformed(id)
	}
}

// ArticleIDOf extracts the parent article id from either unit form.
func ArticleIDOf(id string) (int, error) {
	u, err := Parse(id)
	if err != nil {
		return 0, err
	}
	return u.ArticleID, nil
}

// IsArticleID reports whether id parses as a whole-article unit.
func IsArticleID(id string) bool {
	u, err := Parse(id)
	return err == nil && u.Kind == KindArticle
}

// IsChunkID reports whether id parses as a chunk unit.
func IsChunkID(id string) bool {
	u, err := Parse(id)
	return err == nil && u.Kind == KindChunk
}

// GroupByArticle buckets unit ids by their parent article id.
// Unparseable ids are skipped; callers that care about them should
// parse individually first.
func GroupByArticle(ids []string) map[int][]string {
	groups := make(map[int][]string)
	for _, id := range ids {
		articleID, err := ArticleIDOf(id)
		if err != nil {
			continue
		}
		groups[articleID] = append(groups[articleID], id)
	}
	return groups
}

func malformed(id string) error {
	return errors.New(errors.ErrCodeMalformedID,
		fmt.Sprintf("malformed unit id %q", id), nil)
}
