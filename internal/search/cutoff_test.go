package search

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domwxyz/marxist-search/internal/config"
	"github.com/domwxyz/marxist-search/internal/store"
	"github.com/domwxyz/marxist-search/internal/vocab"
)

func scoredCandidates(scores ...float64) []candidate {
	out := make([]candidate, len(scores))
	for i, s := range scores {
		out[i] = candidate{
			row:   store.UnitRow{ID: "a_" + strconv.Itoa(i+1), ArticleID: i + 1, Title: "Untitled"},
			score: s,
		}
	}
	return out
}

// borderlineSet returns a tight cluster at 0.8 plus one candidate at
// 0.45: the hybrid threshold lands near 0.57, putting the straggler in
// the keyword bypass band.
func borderlineSet() []candidate {
	scores := make([]float64, 0, 11)
	for i := 0; i < 10; i++ {
		scores = append(scores, 0.8)
	}
	scores = append(scores, 0.45)
	return scoredCandidates(scores...)
}

func TestComputeScoreStats(t *testing.T) {
	stats := computeScoreStats(scoredCandidates(0.2, 0.4, 0.6))
	assert.InDelta(t, 0.4, stats.mean, 1e-9)
	assert.InDelta(t, 0.4, stats.median, 1e-9)
	assert.InDelta(t, 0.1633, stats.std, 1e-3)

	even := computeScoreStats(scoredCandidates(0.2, 0.4, 0.6, 0.8))
	assert.InDelta(t, 0.5, even.median, 1e-9)
}

func TestStdMultiplierBands(t *testing.T) {
	assert.Equal(t, 1.0, stdMultiplier(0.01))
	assert.Equal(t, 2.0, stdMultiplier(0.08))
	assert.Equal(t, 2.5, stdMultiplier(0.20))
}

func TestCutoffThresholdHybridFloor(t *testing.T) {
	cfg := config.NewConfig().Search.Cutoff

	// Wide spread drives the statistical threshold below the floor.
	stats := scoreStats{mean: 0.50, std: 0.20}
	got := cutoffThreshold(cfg, stats, nil)
	assert.InDelta(t, 0.35, got, 1e-9)

	// Tight cluster: the cut bites at center - std.
	stats = scoreStats{mean: 0.80, std: 0.02}
	got = cutoffThreshold(cfg, stats, nil)
	assert.InDelta(t, 0.78, got, 1e-9)
}

func TestCutoffThresholdStatisticalNoFloor(t *testing.T) {
	cfg := config.NewConfig().Search.Cutoff
	cfg.Strategy = CutoffStatistical

	got := cutoffThreshold(cfg, scoreStats{mean: 0.50, std: 0.20}, nil)
	assert.InDelta(t, 0.0, got, 1e-9)
}

func TestCutoffThresholdFixed(t *testing.T) {
	cfg := config.NewConfig().Search.Cutoff
	cfg.Strategy = CutoffFixed
	cfg.FixedThreshold = 0.62

	assert.Equal(t, 0.62, cutoffThreshold(cfg, scoreStats{}, nil))
}

func TestCutoffThresholdPercentile(t *testing.T) {
	cfg := config.NewConfig().Search.Cutoff
	cfg.Strategy = CutoffPercentile
	cfg.Percentile = 50

	got := cutoffThreshold(cfg, scoreStats{}, []float64{0.9, 0.8, 0.7, 0.6})
	assert.InDelta(t, 0.8, got, 1e-9)
}

func TestCutoffThresholdMedianCenter(t *testing.T) {
	cfg := config.NewConfig().Search.Cutoff
	cfg.Center = "median"

	got := cutoffThreshold(cfg, scoreStats{mean: 0.9, median: 0.7, std: 0.02}, nil)
	assert.InDelta(t, 0.68, got, 1e-9)
}

func newCutoffEngine(t *testing.T, meta *fakeMeta) *Engine {
	t.Helper()
	e, err := NewEngine(meta, &fakeVectors{loaded: true}, vocab.Empty(), config.NewConfig().Search)
	require.NoError(t, err)
	return e
}

func TestApplyCutoffDropsWeakTail(t *testing.T) {
	e := newCutoffEngine(t, newFakeMeta())

	// mean 0.55, std ~0.2: threshold floors at 0.35, and 0.30 sits below
	// the keyword band as well.
	candidates := scoredCandidates(0.85, 0.75, 0.30)
	kept := e.applyCutoff(context.Background(), candidates, []string{"economy"})

	require.Len(t, kept, 2)
	assert.Equal(t, 0.85, kept[0].score)
	assert.Equal(t, 0.75, kept[1].score)
}

func TestApplyCutoffKeywordBypassViaTitle(t *testing.T) {
	e := newCutoffEngine(t, newFakeMeta())

	candidates := borderlineSet()
	borderline := &candidates[len(candidates)-1]
	borderline.row.Title = "The World Economy in Crisis"

	kept := e.applyCutoff(context.Background(), candidates, []string{"economy"})

	ids := make(map[string]bool)
	for _, c := range kept {
		ids[c.row.ID] = true
	}
	assert.True(t, ids[borderline.row.ID], "borderline candidate with term in title must survive")
}

func TestApplyCutoffKeywordBypassViaBody(t *testing.T) {
	meta := newFakeMeta()
	e := newCutoffEngine(t, meta)

	candidates := borderlineSet()
	borderline := candidates[len(candidates)-1]
	meta.bodies[borderline.row.ID] = "a long discussion of the world economy"

	kept := e.applyCutoff(context.Background(), candidates, []string{"economy"})

	found := false
	for _, c := range kept {
		if c.row.ID == borderline.row.ID {
			found = true
		}
	}
	assert.True(t, found, "borderline candidate with term in body must survive")
}

func TestApplyCutoffShortTermsNeverBypass(t *testing.T) {
	e := newCutoffEngine(t, newFakeMeta())

	candidates := borderlineSet()
	borderline := &candidates[len(candidates)-1]
	borderline.row.Title = "On It"

	kept := e.applyCutoff(context.Background(), candidates, []string{"it"})
	for _, c := range kept {
		assert.NotEqual(t, borderline.row.ID, c.row.ID)
	}
}

func TestMeaningfulTerms(t *testing.T) {
	assert.Equal(t, []string{"economy", "the"}, meaningfulTerms([]string{"economy", "of", "the", "an"}))
	assert.Empty(t, meaningfulTerms([]string{"a", "of"}))
}
