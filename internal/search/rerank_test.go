package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domwxyz/marxist-search/internal/config"
	"github.com/domwxyz/marxist-search/internal/store"
	"github.com/domwxyz/marxist-search/internal/vocab"
)

func newRerankEngine(t *testing.T, mutate func(*config.SearchConfig)) *Engine {
	t.Helper()
	cfg := config.NewConfig().Search
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewEngine(newFakeMeta(), &fakeVectors{loaded: true}, vocab.Empty(), cfg,
		WithClock(func() time.Time { return engineNow }))
	require.NoError(t, err)
	return e
}

func TestRerankInputMultiplierFollowsQueryLength(t *testing.T) {
	e := newRerankEngine(t, nil)

	terms := []string{"a", "b", "c", "d", "e"}
	wants := []float64{1.0, 1.0, 0.5, 0.25, 0.25}
	for n, want := range wants {
		in := e.newRerankInput(terms[:n+1], nil, engineNow)
		assert.Equal(t, want, in.multiplier, "terms=%d", n+1)
	}
}

func TestTitleTermBoostScalesWithCoverage(t *testing.T) {
	e := newRerankEngine(t, nil)
	in := e.newRerankInput([]string{"class", "struggle"}, nil, engineNow)

	candidates := []candidate{
		{row: store.UnitRow{Title: "Class Struggle in France"}, score: 0.5},
		{row: store.UnitRow{Title: "The Class Question"}, score: 0.5},
		{row: store.UnitRow{Title: "Unrelated"}, score: 0.5},
	}
	e.boostTitleTerms(candidates, in)

	assert.InDelta(t, 0.08, candidates[0].signals.TitleBoost, 1e-9)
	assert.InDelta(t, 0.04, candidates[1].signals.TitleBoost, 1e-9)
	assert.Zero(t, candidates[2].signals.TitleBoost)
}

func TestPhrasePresenceTiers(t *testing.T) {
	e := newRerankEngine(t, nil)
	in := e.newRerankInput([]string{"permanent", "revolution"}, nil, engineNow)

	candidates := []candidate{
		{row: store.UnitRow{Title: "The Permanent Revolution"}, score: 0.5},
		{row: store.UnitRow{Title: "Other"}, score: 0.5,
			content: "on the permanent revolution", hasContent: true},
		{row: store.UnitRow{Title: "Revolution Permanent Crisis"}, score: 0.5},
		{row: store.UnitRow{Title: "Nothing Here"}, score: 0.5},
	}
	e.boostPhrasePresence(candidates, in)

	assert.InDelta(t, 0.08, candidates[0].signals.PhraseBoost, 1e-9)
	assert.InDelta(t, 0.06, candidates[1].signals.PhraseBoost, 1e-9)
	// Terms present in title but not as a phrase.
	assert.InDelta(t, 0.04, candidates[2].signals.PhraseBoost, 1e-9)
	assert.Zero(t, candidates[3].signals.PhraseBoost)
}

func TestPhrasePresenceAttenuatedForLongQueries(t *testing.T) {
	e := newRerankEngine(t, nil)
	in := e.newRerankInput([]string{"one", "two", "three", "four"}, nil, engineNow)

	candidates := []candidate{
		{row: store.UnitRow{Title: "one two three four"}, score: 0.5},
	}
	e.boostPhrasePresence(candidates, in)

	assert.InDelta(t, 0.08*0.25, candidates[0].signals.PhraseBoost, 1e-9)
}

func TestKeywordDensityFavorsFocusedDocs(t *testing.T) {
	e := newRerankEngine(t, nil)
	in := e.newRerankInput([]string{"economy"}, nil, engineNow)

	dense := candidate{
		row:        store.UnitRow{ArticleID: 1, WordCount: 500},
		score:      0.5,
		content:    "economy economy economy economy economy",
		hasContent: true,
	}
	sparse := candidate{
		row:        store.UnitRow{ArticleID: 2, WordCount: 5000},
		score:      0.5,
		content:    "economy",
		hasContent: true,
	}
	candidates := []candidate{dense, sparse}
	e.boostKeywordDensity(context.Background(), candidates, in)

	assert.Greater(t, candidates[0].signals.KeywordBoost, candidates[1].signals.KeywordBoost)
	assert.LessOrEqual(t, candidates[0].signals.KeywordBoost, e.cfg.Boosts.KeywordBoostMax)
}

func TestKeywordDensitySkippedForLongQueries(t *testing.T) {
	e := newRerankEngine(t, nil)
	in := e.newRerankInput([]string{"a1", "a2", "a3", "a4", "a5", "a6"}, nil, engineNow)

	candidates := []candidate{
		{row: store.UnitRow{WordCount: 500}, score: 0.5, content: "a1 a2", hasContent: true},
	}
	e.boostKeywordDensity(context.Background(), candidates, in)
	assert.Zero(t, candidates[0].signals.KeywordBoost)
}

func TestKeywordDensityOnlyTopN(t *testing.T) {
	e := newRerankEngine(t, func(cfg *config.SearchConfig) {
		cfg.Boosts.KeywordRerankTopN = 1
	})
	in := e.newRerankInput([]string{"economy"}, nil, engineNow)

	candidates := []candidate{
		{row: store.UnitRow{ArticleID: 1, WordCount: 500}, score: 0.9,
			content: "economy text", hasContent: true},
		{row: store.UnitRow{ArticleID: 2, WordCount: 500}, score: 0.4,
			content: "economy text", hasContent: true},
	}
	e.boostKeywordDensity(context.Background(), candidates, in)

	assert.Greater(t, candidates[0].signals.KeywordBoost, 0.0)
	assert.Zero(t, candidates[1].signals.KeywordBoost)
}

func TestKeywordDensityHydratesBoostedLeaders(t *testing.T) {
	meta := newFakeMeta()
	meta.bodies["a_2"] = "the economy in crisis, economy and state"
	cfg := config.NewConfig().Search
	cfg.Boosts.KeywordRerankTopN = 1
	e, err := NewEngine(meta, &fakeVectors{loaded: true}, vocab.Empty(), cfg,
		WithClock(func() time.Time { return engineNow }))
	require.NoError(t, err)

	in := e.newRerankInput([]string{"economy"}, nil, engineNow)
	candidates := []candidate{
		{row: store.UnitRow{ID: "a_1", ArticleID: 1, WordCount: 500}, score: 0.90},
		{row: store.UnitRow{ID: "a_2", ArticleID: 2, Title: "World Economy",
			WordCount: 500}, score: 0.88},
	}

	// The title boost moves the second candidate into the lead, so the
	// top-1 density pass must fetch its body rather than skip it.
	e.boostTitleTerms(candidates, in)
	require.Greater(t, candidates[1].score, candidates[0].score)

	e.boostKeywordDensity(context.Background(), candidates, in)
	assert.Greater(t, candidates[1].signals.KeywordBoost, 0.0)
	assert.Zero(t, candidates[0].signals.KeywordBoost)
}

func TestDiscoveryBoostRequiresStrongSemanticWeakLexical(t *testing.T) {
	e := newRerankEngine(t, nil)
	in := e.newRerankInput([]string{"alienation"}, nil, engineNow)

	candidates := []candidate{
		// Conceptual hit: high base score, no lexical signal.
		{row: store.UnitRow{ArticleID: 1, Title: "Estranged Labour"},
			score: 0.8, signals: DebugSignals{BaseScore: 0.8}},
		// Below the base-score bar.
		{row: store.UnitRow{ArticleID: 2, Title: "Misc"},
			score: 0.5, signals: DebugSignals{BaseScore: 0.5}},
		// Strong keyword signal disqualifies.
		{row: store.UnitRow{ArticleID: 3, Title: "Notes"},
			score: 0.8, signals: DebugSignals{BaseScore: 0.8, KeywordBoost: 0.05}},
	}
	e.boostDiscovery(candidates, in)

	assert.InDelta(t, 0.025, candidates[0].signals.DiscoveryBoost, 1e-9)
	assert.Zero(t, candidates[1].signals.DiscoveryBoost)
	assert.Zero(t, candidates[2].signals.DiscoveryBoost)
}

func TestDiscoveryBoostDisabled(t *testing.T) {
	e := newRerankEngine(t, func(cfg *config.SearchConfig) {
		cfg.Boosts.DiscoveryEnabled = false
	})
	in := e.newRerankInput([]string{"alienation"}, nil, engineNow)

	candidates := []candidate{
		{row: store.UnitRow{ArticleID: 1}, score: 0.9, signals: DebugSignals{BaseScore: 0.9}},
	}
	e.boostDiscovery(candidates, in)
	assert.Zero(t, candidates[0].signals.DiscoveryBoost)
}

func TestRecencyTiers(t *testing.T) {
	e := newRerankEngine(t, nil)
	in := e.newRerankInput([]string{"x"}, nil, engineNow)

	tiers := []struct {
		age  time.Duration
		want float64
	}{
		{3 * 24 * time.Hour, 0.07},
		{20 * 24 * time.Hour, 0.05},
		{60 * 24 * time.Hour, 0.03},
		{200 * 24 * time.Hour, 0.02},
		{2 * 365 * 24 * time.Hour, 0.01},
		{5 * 365 * 24 * time.Hour, 0},
	}

	for _, tier := range tiers {
		candidates := []candidate{
			{row: store.UnitRow{PublishedDate: engineNow.Add(-tier.age)}, score: 0.5},
		}
		e.boostRecency(candidates, in)
		assert.InDelta(t, tier.want, candidates[0].signals.RecencyBoost, 1e-9)
	}
}

func TestRecencyNotScaledByQueryLength(t *testing.T) {
	e := newRerankEngine(t, nil)
	// Five terms: lexical multiplier would be 0.25.
	in := e.newRerankInput([]string{"a", "b", "c", "d", "e"}, nil, engineNow)

	candidates := []candidate{
		{row: store.UnitRow{PublishedDate: engineNow.Add(-24 * time.Hour)}, score: 0.5},
	}
	e.boostRecency(candidates, in)
	assert.InDelta(t, 0.07, candidates[0].signals.RecencyBoost, 1e-9)
}

func TestRecencySkipsUndatedRows(t *testing.T) {
	e := newRerankEngine(t, nil)
	in := e.newRerankInput([]string{"x"}, nil, engineNow)

	candidates := []candidate{{row: store.UnitRow{}, score: 0.5}}
	e.boostRecency(candidates, in)
	assert.Zero(t, candidates[0].signals.RecencyBoost)
}
