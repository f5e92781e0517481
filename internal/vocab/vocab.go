// Package vocab loads the controlled vocabulary used for query expansion
// and term extraction: a synonyms map (base form to variants), a terms map
// (category to canonical terms), and an aliases map (alias to canonical).
//
// Matching is case-insensitive and whole-word. The per-term regexes are
// hot paths during ingestion and expansion, so they are compiled once at
// load time and kept on the handle.
package vocab

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML shape of the vocabulary.
type File struct {
	Synonyms map[string][]string `yaml:"synonyms"`
	Terms    map[string][]string `yaml:"terms"`
	Aliases  map[string]string   `yaml:"aliases"`
}

// Vocabulary is the compiled, immutable vocabulary handle.
type Vocabulary struct {
	synonyms map[string][]string // lowercased base -> variants (incl. base)
	aliases  map[string]string   // lowercased alias -> canonical
	reverse  map[string][]string // lowercased canonical -> aliases

	// canonical terms across all categories, longest first so multi-word
	// terms win over their own substrings
	terms     []string
	termRegex map[string]*regexp.Regexp
}

// Load reads and compiles a vocabulary file.
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}

	return Compile(f)
}

// Compile builds a Vocabulary from an in-memory definition.
func Compile(f File) (*Vocabulary, error) {
	v := &Vocabulary{
		synonyms:  make(map[string][]string),
		aliases:   make(map[string]string),
		reverse:   make(map[string][]string),
		termRegex: make(map[string]*regexp.Regexp),
	}

	for base, variants := range f.Synonyms {
		base = strings.ToLower(strings.TrimSpace(base))
		if base == "" {
			continue
		}
		set := []string{base}
		seen := map[string]bool{base: true}
		for _, variant := range variants {
			variant = strings.ToLower(strings.TrimSpace(variant))
			if variant == "" || seen[variant] {
				continue
			}
			set = append(set, variant)
			seen[variant] = true
		}
		v.synonyms[base] = set
	}

	for alias, canonical := range f.Aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		canonical = strings.ToLower(strings.TrimSpace(canonical))
		if alias == "" || canonical == "" {
			continue
		}
		v.aliases[alias] = canonical
		v.reverse[canonical] = append(v.reverse[canonical], alias)
	}

	seen := make(map[string]bool)
	for _, terms := range f.Terms {
		for _, term := range terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" || seen[term] {
				continue
			}
			seen[term] = true
			v.terms = append(v.terms, term)

			re, err := compileWholeWord(term)
			if err != nil {
				return nil, fmt.Errorf("compile term %q: %w", term, err)
			}
			v.termRegex[term] = re
		}
	}

	// Longest first so "permanent revolution" is preferred over "revolution".
	sort.Slice(v.terms, func(i, j int) bool {
		if len(v.terms[i]) != len(v.terms[j]) {
			return len(v.terms[i]) > len(v.terms[j])
		}
		return v.terms[i] < v.terms[j]
	})

	return v, nil
}

// SynonymsFor returns the variant set for a token, including the token
// itself. Returns nil when the token has no synonyms.
func (v *Vocabulary) SynonymsFor(token string) []string {
	return v.synonyms[strings.ToLower(token)]
}

// CanonicalFor resolves an alias to its canonical term.
func (v *Vocabulary) CanonicalFor(alias string) (string, bool) {
	canonical, ok := v.aliases[strings.ToLower(alias)]
	return canonical, ok
}

// AliasesFor returns the aliases mapped to a canonical term.
func (v *Vocabulary) AliasesFor(canonical string) []string {
	return v.reverse[strings.ToLower(canonical)]
}

// MultiWordTerms returns canonical terms containing whitespace, longest
// first. Used by query expansion to rewrite multi-word concepts before
// single-token expansion runs.
func (v *Vocabulary) MultiWordTerms() []string {
	var out []string
	for _, term := range v.terms {
		if strings.ContainsAny(term, " \t") {
			out = append(out, term)
		}
	}
	return out
}

// MatchTerms returns the canonical terms appearing whole-word in text.
// Order follows the longest-first term ordering.
func (v *Vocabulary) MatchTerms(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, term := range v.terms {
		if v.termRegex[term].MatchString(lower) {
			out = append(out, term)
		}
	}
	return out
}

// TermCount returns the number of canonical terms.
func (v *Vocabulary) TermCount() int {
	return len(v.terms)
}

// Empty returns a compiled vocabulary with no entries. Expansion becomes
// a no-op; term extraction matches nothing.
func Empty() *Vocabulary {
	v, _ := Compile(File{})
	return v
}

func compileWholeWord(term string) (*regexp.Regexp, error) {
	return regexp.Compile(`\b` + regexp.QuoteMeta(term) + `\b`)
}
