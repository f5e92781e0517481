package search

import (
	"regexp"
	"strings"

	"github.com/domwxyz/marxist-search/internal/vocab"
)

// Expander rewrites queries with the controlled vocabulary before they
// reach the vector store: recognized multi-word concepts become OR
// groups of their aliases, and single tokens pick up synonym variants.
// Even against a pure-dense store the expansion helps by contributing
// vocabulary tokens to the query embedding.
type Expander struct {
	vocab       *vocab.Vocabulary
	maxVariants int

	// Multi-word term patterns, compiled once per vocabulary.
	multiWord []multiWordTerm
}

type multiWordTerm struct {
	term    string
	pattern *regexp.Regexp
}

// NewExpander compiles an expander over a vocabulary. maxVariants caps
// the OR group size per token.
func NewExpander(v *vocab.Vocabulary, maxVariants int) *Expander {
	if maxVariants <= 0 {
		maxVariants = 5
	}
	e := &Expander{vocab: v, maxVariants: maxVariants}

	for _, term := range v.MultiWordTerms() {
		pattern, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(term))
		if err != nil {
			continue
		}
		e.multiWord = append(e.multiWord, multiWordTerm{term: term, pattern: pattern})
	}
	return e
}

// Expand rewrites a query. The result is passed to the vector store
// as-is.
func (e *Expander) Expand(query string) string {
	// Multi-word canonical terms first, longest first, so their tokens
	// are inside a group before single-token expansion runs.
	for _, mw := range e.multiWord {
		if !mw.pattern.MatchString(query) {
			continue
		}
		group := e.orGroup(append([]string{mw.term}, e.vocab.AliasesFor(mw.term)...), false)
		query = mw.pattern.ReplaceAllString(query, group)
	}

	var out []string
	depth := 0
	for _, token := range strings.Fields(query) {
		opens := strings.Count(token, "(")
		closes := strings.Count(token, ")")

		if depth > 0 || opens > 0 {
			// Token belongs to an existing group; leave it alone.
			out = append(out, token)
			depth += opens - closes
			if depth < 0 {
				depth = 0
			}
			continue
		}

		out = append(out, e.expandToken(token))
	}

	return strings.Join(out, " ")
}

// expandToken expands one bare token into a quoted OR group when the
// vocabulary knows variants for it.
func (e *Expander) expandToken(token string) string {
	w := strings.ToLower(strings.Trim(token, `"',.;:!?`))
	if w == "" {
		return token
	}

	variants := e.vocab.SynonymsFor(w)
	if variants == nil {
		variants = []string{w}
	}

	if canonical, ok := e.vocab.CanonicalFor(w); ok && !contains(variants, canonical) {
		variants = append(variants, canonical)
	}

	if len(variants) <= 1 {
		return token
	}
	if len(variants) > e.maxVariants {
		variants = variants[:e.maxVariants]
	}
	return e.orGroup(variants, true)
}

func (e *Expander) orGroup(variants []string, quoted bool) string {
	parts := make([]string, len(variants))
	for i, v := range variants {
		if quoted {
			parts[i] = `"` + v + `"`
		} else {
			parts[i] = v
		}
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
