package search

import (
	"context"
	"log/slog"
	"math"
	"regexp"
	"sort"

	"github.com/domwxyz/marxist-search/internal/config"
)

// Cutoff strategies. hybrid is the production setting; the rest exist
// for ablation runs.
const (
	CutoffHybrid      = "hybrid"
	CutoffStatistical = "statistical"
	CutoffPercentile  = "percentile"
	CutoffFixed       = "fixed"
)

// scoreStats holds the distribution moments of one recall set.
type scoreStats struct {
	mean   float64
	median float64
	std    float64
}

func computeScoreStats(candidates []candidate) scoreStats {
	n := len(candidates)
	if n == 0 {
		return scoreStats{}
	}

	scores := make([]float64, n)
	var sum float64
	for i, c := range candidates {
		scores[i] = c.score
		sum += c.score
	}
	mean := sum / float64(n)

	var variance float64
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(n))

	sort.Float64s(scores)
	var median float64
	if n%2 == 1 {
		median = scores[n/2]
	} else {
		median = (scores[n/2-1] + scores[n/2]) / 2
	}

	return scoreStats{mean: mean, median: median, std: std}
}

// cutoffThreshold derives the semantic score threshold for one recall
// set. A tight score cluster means the embedding is not discriminating,
// so the multiplier shrinks and the cut bites harder; a wide spread
// means the ranking is trustworthy and the cut relaxes.
func cutoffThreshold(cfg config.CutoffConfig, stats scoreStats, scores []float64) float64 {
	center := stats.mean
	if cfg.Center == "median" {
		center = stats.median
	}

	switch cfg.Strategy {
	case CutoffFixed:
		return cfg.FixedThreshold

	case CutoffPercentile:
		if len(scores) == 0 {
			return 0
		}
		sorted := append([]float64(nil), scores...)
		sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
		keep := int(float64(len(sorted)) * cfg.Percentile / 100)
		if keep <= 0 {
			keep = 1
		}
		if keep > len(sorted) {
			keep = len(sorted)
		}
		return sorted[keep-1]

	case CutoffStatistical:
		return center - stdMultiplier(stats.std)*stats.std

	default: // hybrid
		threshold := center - stdMultiplier(stats.std)*stats.std
		if threshold < cfg.MinAbsoluteThreshold {
			threshold = cfg.MinAbsoluteThreshold
		}
		return threshold
	}
}

func stdMultiplier(std float64) float64 {
	switch {
	case std < 0.05:
		return 1.0
	case std > 0.12:
		return 2.5
	default:
		return 2.0
	}
}

// applyCutoff drops candidates below the adaptive threshold, with a
// keyword-aware bypass for the band just under it: a candidate in
// [keyword_threshold, threshold) survives when a meaningful query term
// appears whole-word in its title, or failing that, when a single
// batched body probe finds any term in its content. This keeps articles
// that literally contain the query terms but embed poorly because of
// chunk context.
func (e *Engine) applyCutoff(ctx context.Context, candidates []candidate, terms []string) []candidate {
	if len(candidates) == 0 {
		return candidates
	}

	cfg := e.cfg.Cutoff
	stats := computeScoreStats(candidates)

	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = c.score
	}
	threshold := cutoffThreshold(cfg, stats, scores)

	slog.Debug("semantic cutoff",
		slog.Float64("mean", stats.mean),
		slog.Float64("median", stats.median),
		slog.Float64("std", stats.std),
		slog.Float64("threshold", threshold),
		slog.Int("candidates", len(candidates)))

	var kept []candidate
	var borderline []candidate
	for _, c := range candidates {
		switch {
		case c.score >= threshold:
			kept = append(kept, c)
		case cfg.Strategy == CutoffHybrid && c.score >= cfg.KeywordThreshold:
			borderline = append(borderline, c)
		}
	}

	if len(borderline) == 0 {
		return kept
	}

	meaningful := meaningfulTerms(terms)
	if len(meaningful) == 0 {
		return kept
	}
	patterns := wholeWordPatterns(meaningful)

	var bodyProbe []candidate
	for _, c := range borderline {
		if anyPatternMatches(patterns, c.row.Title) {
			kept = append(kept, c)
		} else {
			bodyProbe = append(bodyProbe, c)
		}
	}

	if len(bodyProbe) == 0 {
		return kept
	}

	ids := make([]string, len(bodyProbe))
	for i, c := range bodyProbe {
		ids[i] = c.row.ID
	}
	matched, err := e.meta.FilterByBodyLike(ctx, ids, meaningful)
	if err != nil {
		slog.Warn("keyword bypass body probe failed", slog.Any("error", err))
		return kept
	}
	for _, c := range bodyProbe {
		if matched[c.row.ID] {
			kept = append(kept, c)
		}
	}

	return kept
}

// meaningfulTerms drops terms shorter than 3 characters.
func meaningfulTerms(terms []string) []string {
	var out []string
	for _, t := range terms {
		if len(t) >= 3 {
			out = append(out, t)
		}
	}
	return out
}

func anyPatternMatches(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
