package search

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
)

// wholeWordPatterns compiles case-insensitive whole-word matchers for a
// term list. Compiled once per query and reused across candidates.
func wholeWordPatterns(terms []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(terms))
	for _, t := range terms {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(t) + `\b`)
		if err != nil {
			continue
		}
		out = append(out, re)
	}
	return out
}

// wholeWordPattern compiles one case-insensitive whole-word matcher for
// a phrase.
func wholeWordPattern(phrase string) *regexp.Regexp {
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
	if err != nil {
		return nil
	}
	return re
}

// rerankInput bundles the per-query state the rerank stages share.
type rerankInput struct {
	terms          []string
	termPatterns   []*regexp.Regexp
	phrasePatterns []*regexp.Regexp // the full query plus each exact phrase
	multiplier     float64
	now            time.Time
}

func (e *Engine) newRerankInput(terms, exactPhrases []string, now time.Time) rerankInput {
	in := rerankInput{
		terms:        terms,
		termPatterns: wholeWordPatterns(terms),
		multiplier:   e.cfg.Scaling.Multiplier(len(terms)),
		now:          now,
	}
	if len(terms) > 0 {
		if p := wholeWordPattern(strings.Join(terms, " ")); p != nil {
			in.phrasePatterns = append(in.phrasePatterns, p)
		}
	}
	for _, phrase := range exactPhrases {
		if p := wholeWordPattern(phrase); p != nil {
			in.phrasePatterns = append(in.phrasePatterns, p)
		}
	}
	return in
}

// rerank applies the boost stack to every candidate, in order: title
// terms, phrase presence, keyword density, semantic discovery, recency.
// The base semantic score is preserved in the debug signals.
//
// Body content for the body-dependent stages is hydrated on the current
// ordering, not the base-score ordering: a candidate the title stage
// lifts into the top N still gets its body fetched.
//
// On the metadata-only path all candidates share a uniform base score,
// so the score-relative signals (keyword density, discovery) degenerate
// and are skipped.
func (e *Engine) rerank(ctx context.Context, candidates []candidate, in rerankInput, semanticPath bool) {
	for i := range candidates {
		candidates[i].signals.BaseScore = candidates[i].score
	}

	e.boostTitleTerms(candidates, in)
	if semanticPath {
		e.hydrateTopN(ctx, candidates, e.cfg.Boosts.KeywordRerankTopN)
	}
	e.boostPhrasePresence(candidates, in)
	if semanticPath {
		e.boostKeywordDensity(ctx, candidates, in)
		e.boostDiscovery(candidates, in)
	}
	e.boostRecency(candidates, in)
}

// boostTitleTerms rewards titles containing the query terms, scaled by
// the fraction of terms present.
func (e *Engine) boostTitleTerms(candidates []candidate, in rerankInput) {
	if len(in.termPatterns) == 0 {
		return
	}
	max := e.cfg.Boosts.TitleBoostMax * in.multiplier
	for i := range candidates {
		matched := 0
		for _, p := range in.termPatterns {
			if p.MatchString(candidates[i].row.Title) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		boost := max * float64(matched) / float64(len(in.termPatterns))
		candidates[i].score += boost
		candidates[i].signals.TitleBoost = boost
	}
}

// boostPhrasePresence applies the strongest matching tier: the query as
// an exact phrase in the title, then in the body, then all terms
// individually present in the title.
func (e *Engine) boostPhrasePresence(candidates []candidate, in rerankInput) {
	if len(in.phrasePatterns) == 0 {
		return
	}
	m := in.multiplier
	for i := range candidates {
		c := &candidates[i]

		var boost float64
		switch {
		case anyPatternMatches(in.phrasePatterns, c.row.Title):
			boost = 0.08 * m
		case c.hasContent && anyPatternMatches(in.phrasePatterns, c.content):
			boost = 0.06 * m
		case allPatternsMatch(in.termPatterns, c.row.Title):
			boost = 0.04 * m
		default:
			continue
		}
		c.score += boost
		c.signals.PhraseBoost = boost
	}
}

func allPatternsMatch(patterns []*regexp.Regexp, text string) bool {
	if len(patterns) == 0 {
		return false
	}
	for _, p := range patterns {
		if !p.MatchString(text) {
			return false
		}
	}
	return true
}

// boostKeywordDensity rewards focused documents: per-term whole-word
// frequencies in body content, length-normalized, log-damped, and
// capped. Runs only for short queries and only over the top N candidates
// by current score, hydrating any of them that still lack content.
func (e *Engine) boostKeywordDensity(ctx context.Context, candidates []candidate, in rerankInput) {
	b := e.cfg.Boosts
	qLen := len(in.terms)
	if qLen == 0 || qLen > b.KeywordMaxQueryTerms {
		return
	}

	topN := b.KeywordRerankTopN
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, c int) bool {
		return candidates[order[a]].score > candidates[order[c]].score
	})
	if topN > 0 && len(order) > topN {
		order = order[:topN]
	}

	// The title and phrase stages may have lifted candidates into the
	// top N that the earlier hydration pass skipped.
	subset := make([]candidate, len(order))
	for i, idx := range order {
		subset[i] = candidates[idx]
	}
	e.hydrateAll(ctx, subset)
	for i, idx := range order {
		candidates[idx] = subset[i]
	}

	maxBoost := b.KeywordBoostMax * in.multiplier
	for _, idx := range order {
		c := &candidates[idx]
		if !c.hasContent || c.row.WordCount <= 0 {
			continue
		}

		var sumTF float64
		for _, p := range in.termPatterns {
			freq := float64(len(p.FindAllStringIndex(c.content, -1)))
			var density float64
			if b.LengthNormalization == "log" {
				density = freq / math.Log(float64(c.row.WordCount)+100)
			} else {
				density = freq / float64(c.row.WordCount) * b.DensityScale
			}
			sumTF += 1 + math.Log(1+density)
		}
		avgTF := sumTF / float64(qLen)

		boost := avgTF * b.KeywordBoostScale
		if boost > maxBoost {
			boost = maxBoost
		}
		c.score += boost
		c.signals.KeywordBoost = boost
	}
}

// boostDiscovery lifts strong conceptual matches with negligible lexical
// signal, so purely semantic hits are not buried under keyword-boosted
// neighbors.
func (e *Engine) boostDiscovery(candidates []candidate, in rerankInput) {
	b := e.cfg.Boosts
	if !b.DiscoveryEnabled || len(in.termPatterns) == 0 {
		return
	}
	for i := range candidates {
		c := &candidates[i]
		if c.signals.BaseScore < b.DiscoveryMinScore {
			continue
		}
		if c.signals.KeywordBoost > 0.01 {
			continue
		}
		titleHits := 0
		for _, p := range in.termPatterns {
			if p.MatchString(c.row.Title) {
				titleHits++
			}
		}
		if titleHits > 1 {
			continue
		}
		boost := b.DiscoveryBoost * in.multiplier
		c.score += boost
		c.signals.DiscoveryBoost = boost
	}
}

// boostRecency applies the tiered freshness boost. Unlike the lexical
// boosts it is not attenuated by query length.
func (e *Engine) boostRecency(candidates []candidate, in rerankInput) {
	r := e.cfg.Recency
	for i := range candidates {
		c := &candidates[i]
		if c.row.PublishedDate.IsZero() {
			continue
		}
		age := in.now.Sub(c.row.PublishedDate)

		var boost float64
		switch {
		case age < 7*24*time.Hour:
			boost = r.PastWeek
		case age < 30*24*time.Hour:
			boost = r.PastMonth
		case age < 90*24*time.Hour:
			boost = r.Past3Months
		case age < 365*24*time.Hour:
			boost = r.PastYear
		case age < 3*365*24*time.Hour:
			boost = r.Past3Years
		default:
			continue
		}
		c.score += boost
		c.signals.RecencyBoost = boost
	}
}
