package search

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domwxyz/marxist-search/internal/config"
	"github.com/domwxyz/marxist-search/internal/errors"
	"github.com/domwxyz/marxist-search/internal/store"
	"github.com/domwxyz/marxist-search/internal/vocab"
)

var engineNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// fakeMeta is an in-memory MetadataReader.
type fakeMeta struct {
	rows    map[string]store.UnitRow
	bodies  map[string]string
	logged  []string
	sources []store.SourceInfo
	authors []store.AuthorInfo
	stats   store.CorpusStats
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{
		rows:   make(map[string]store.UnitRow),
		bodies: make(map[string]string),
	}
}

func (m *fakeMeta) add(row store.UnitRow, body string) {
	m.rows[row.ID] = row
	m.bodies[row.ID] = body
}

func (m *fakeMeta) LookupByIDs(_ context.Context, ids []string) ([]store.UnitRow, error) {
	var out []store.UnitRow
	for _, id := range ids {
		if row, ok := m.rows[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *fakeMeta) FetchContent(_ context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range ids {
		if body, ok := m.bodies[id]; ok {
			out[id] = body
		}
	}
	return out, nil
}

func (m *fakeMeta) FilterByBodyLike(_ context.Context, ids []string, terms []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, id := range ids {
		body := strings.ToLower(m.bodies[id])
		for _, term := range terms {
			if strings.Contains(body, strings.ToLower(term)) {
				out[id] = true
				break
			}
		}
	}
	return out, nil
}

func (m *fakeMeta) SearchByContent(_ context.Context, q store.ContentQuery) ([]store.UnitRow, error) {
	var out []store.UnitRow
	for id, row := range m.rows {
		if row.IsChunk {
			continue
		}
		body := strings.ToLower(m.bodies[id])
		title := strings.ToLower(row.Title)

		ok := true
		for _, phrase := range q.ExactPhrases {
			p := strings.ToLower(phrase)
			if !strings.Contains(body, p) && !strings.Contains(title, p) {
				ok = false
			}
		}
		for _, phrase := range q.TitlePhrases {
			if !strings.Contains(title, strings.ToLower(phrase)) {
				ok = false
			}
		}
		author := strings.ToLower(row.Author)
		for _, token := range q.AuthorTokens {
			if !regexp.MustCompile(`\b`+regexp.QuoteMeta(token)+`\b`).MatchString(author) {
				ok = false
			}
		}
		if q.Source != "" && row.Source != q.Source {
			ok = false
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *fakeMeta) Sources(context.Context) ([]store.SourceInfo, error) { return m.sources, nil }

func (m *fakeMeta) TopAuthors(context.Context, int, int) ([]store.AuthorInfo, error) {
	return m.authors, nil
}

func (m *fakeMeta) Stats(context.Context) (store.CorpusStats, error) { return m.stats, nil }

func (m *fakeMeta) LogSearch(_ context.Context, query string, _ int, _ time.Duration) error {
	m.logged = append(m.logged, query)
	return nil
}

// fakeVectors is a canned VectorReader.
type fakeVectors struct {
	hits     []store.VectorResult
	err      error
	loaded   bool
	count    int
	reloadTo int
}

func (v *fakeVectors) Search(context.Context, string, int) ([]store.VectorResult, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.hits, nil
}

func (v *fakeVectors) Count() int    { return v.count }
func (v *fakeVectors) Loaded() bool  { return v.loaded }
func (v *fakeVectors) IndexDir() string { return "/tmp/index" }

func (v *fakeVectors) Reload() (int, int, error) {
	old := v.count
	v.count = v.reloadTo
	return old, v.count, nil
}

func newTestEngine(t *testing.T, meta *fakeMeta, vectors *fakeVectors) *Engine {
	t.Helper()
	cfg := config.NewConfig().Search
	e, err := NewEngine(meta, vectors, vocab.Empty(), cfg,
		WithClock(func() time.Time { return engineNow }))
	require.NoError(t, err)
	return e
}

func articleRow(id int, title, author string, published time.Time) store.UnitRow {
	return store.UnitRow{
		ID:            "a_" + strconv.Itoa(id),
		ArticleID:     id,
		Title:         title,
		URL:           "https://example.org/" + strconv.Itoa(id),
		Source:        "marxist.com",
		Author:        author,
		PublishedDate: published,
		PublishedYear: published.Year(),
		WordCount:     1500,
	}
}

func TestSearchEmptyQueryNoFilters(t *testing.T) {
	e := newTestEngine(t, newFakeMeta(), &fakeVectors{loaded: true})

	resp, err := e.Search(context.Background(), Request{Query: ""})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.Total)
	assert.Empty(t, resp.Error)
}

func TestSearchQueryTooLongReturnsErrorField(t *testing.T) {
	e := newTestEngine(t, newFakeMeta(), &fakeVectors{loaded: true})

	resp, err := e.Search(context.Background(), Request{Query: strings.Repeat("x", 1001)})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Contains(t, resp.Error, errors.ErrCodeQueryTooLong)
}

func TestSearchVectorPathBasic(t *testing.T) {
	meta := newFakeMeta()
	old := engineNow.AddDate(-2, 0, 0)
	meta.add(articleRow(1, "The Permanent Revolution", "Leon", old),
		"The Permanent Revolution. A long discussion of the permanent revolution and its consequences for colonial countries.")
	meta.add(articleRow(2, "Budget Notes", "Clerk", old),
		"Quarterly budget notes and nothing else of interest here.")

	vectors := &fakeVectors{loaded: true, hits: []store.VectorResult{
		{ID: "a_1", Score: 0.85},
		{ID: "a_2", Score: 0.80},
	}}
	e := newTestEngine(t, meta, vectors)

	resp, err := e.Search(context.Background(), Request{Query: "permanent revolution", Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)

	// Title and phrase boosts put the on-topic article first despite the
	// narrow base-score gap.
	assert.Equal(t, "a_1", resp.Results[0].ID)
	assert.Greater(t, resp.Results[0].Score, resp.Results[1].Score)
	assert.Equal(t, []string{"permanent", "revolution"}, resp.ParsedQuery.SemanticTerms)
	assert.Equal(t, 2, resp.Total)
}

func TestSearchVectorStoreErrorPropagates(t *testing.T) {
	vectors := &fakeVectors{err: errors.New(errors.ErrCodeIndexNotLoaded, "no index", nil)}
	e := newTestEngine(t, newFakeMeta(), vectors)

	_, err := e.Search(context.Background(), Request{Query: "anything"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIndexNotLoaded, errors.GetCode(err))
}

func TestSearchDedupKeepsMaxScore(t *testing.T) {
	meta := newFakeMeta()
	old := engineNow.AddDate(-5, 0, 0)

	base := articleRow(7, "Long Study", "Author", old)
	for i, id := range []string{"c_7_0", "c_7_1", "c_7_2"} {
		row := base
		row.ID = id
		row.IsChunk = true
		row.ChunkIndex = i
		meta.add(row, "chunk body content")
	}

	vectors := &fakeVectors{loaded: true, hits: []store.VectorResult{
		{ID: "c_7_1", Score: 0.90},
		{ID: "c_7_0", Score: 0.75},
		{ID: "c_7_2", Score: 0.60},
	}}
	e := newTestEngine(t, meta, vectors)

	resp, err := e.Search(context.Background(), Request{Query: "study", Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	r := resp.Results[0]
	assert.Equal(t, "c_7_1", r.ID)
	assert.Equal(t, 7, r.ArticleID)
	assert.Equal(t, 3, r.MatchedSections)
	assert.InDelta(t, 0.90, r.Debug.BaseScore, 1e-9)
}

func TestSearchAuthorOnlyUsesContentPath(t *testing.T) {
	meta := newFakeMeta()
	old := engineNow.AddDate(-4, 0, 0)
	meta.add(articleRow(1, "On Capitalism", "Alan Woods", old), "body one")
	meta.add(articleRow(2, "On Feudalism", "Ted Grant", old), "body two")

	e := newTestEngine(t, meta, &fakeVectors{loaded: true})

	resp, err := e.Search(context.Background(), Request{Query: `author:"Alan Woods"`, Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Alan Woods", resp.Results[0].Author)
	assert.Equal(t, "Alan Woods", resp.ParsedQuery.AuthorFilter)
}

func TestSearchAuthorQuerySyntaxBeatsJSONFilter(t *testing.T) {
	meta := newFakeMeta()
	old := engineNow.AddDate(-4, 0, 0)
	meta.add(articleRow(1, "First Piece", "John Smith", old), "body one")
	meta.add(articleRow(2, "Second Piece", "Alan Woods", old), "body two")

	e := newTestEngine(t, meta, &fakeVectors{loaded: true})

	resp, err := e.Search(context.Background(), Request{
		Query:   `author:"Smith"`,
		Filters: Filters{Author: "Woods"},
		Limit:   10,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "John Smith", resp.Results[0].Author)
}

func TestSearchExactPhraseWholeWord(t *testing.T) {
	meta := newFakeMeta()
	old := engineNow.AddDate(-4, 0, 0)
	meta.add(articleRow(1, "First", "A", old), "the permanent revolution in one country")
	// Substring only: "permanent revolutionary" must not satisfy the
	// whole-word phrase filter even though LIKE would match it.
	meta.add(articleRow(2, "Second", "B", old), "a permanent revolutionary committee")

	e := newTestEngine(t, meta, &fakeVectors{loaded: true})

	resp, err := e.Search(context.Background(), Request{Query: `"permanent revolution"`, Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a_1", resp.Results[0].ID)
	require.NotNil(t, resp.Results[0].MatchedPhrase)
	assert.Equal(t, "permanent revolution", *resp.Results[0].MatchedPhrase)
}

func TestSearchTitlePhraseSubstring(t *testing.T) {
	meta := newFakeMeta()
	old := engineNow.AddDate(-4, 0, 0)
	meta.add(articleRow(1, "The Labour Theory of Value", "A", old), "body")
	meta.add(articleRow(2, "Value and Price", "B", old), "body")

	vectors := &fakeVectors{loaded: true, hits: []store.VectorResult{
		{ID: "a_1", Score: 0.8},
		{ID: "a_2", Score: 0.8},
	}}
	e := newTestEngine(t, meta, vectors)

	resp, err := e.Search(context.Background(), Request{Query: `title:"labour theory" value`, Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a_1", resp.Results[0].ID)
}

func TestSearchPaginationDisjointAndReassembles(t *testing.T) {
	meta := newFakeMeta()
	old := engineNow.AddDate(-4, 0, 0)
	var hits []store.VectorResult
	for i := 1; i <= 9; i++ {
		meta.add(articleRow(i, "Article "+strconv.Itoa(i), "A", old), "steady body text")
		hits = append(hits, store.VectorResult{ID: "a_" + strconv.Itoa(i), Score: 0.9 - float64(i)*0.01})
	}
	e := newTestEngine(t, meta, &fakeVectors{loaded: true, hits: hits})

	var all []string
	for offset := 0; offset < 9; offset += 3 {
		resp, err := e.Search(context.Background(), Request{Query: "steady", Limit: 3, Offset: offset})
		require.NoError(t, err)
		assert.Equal(t, 9, resp.Total)
		for _, r := range resp.Results {
			all = append(all, r.ID)
		}
	}

	full, err := e.Search(context.Background(), Request{Query: "steady", Limit: 100})
	require.NoError(t, err)

	var want []string
	for _, r := range full.Results {
		want = append(want, r.ID)
	}
	assert.Equal(t, want, all)
}

func TestSearchRecencyMonotone(t *testing.T) {
	meta := newFakeMeta()
	meta.add(articleRow(1, "Same Topic", "A", engineNow.AddDate(0, 0, -2)), "identical body")
	meta.add(articleRow(2, "Same Topic", "A", engineNow.AddDate(-5, 0, 0)), "identical body")

	vectors := &fakeVectors{loaded: true, hits: []store.VectorResult{
		{ID: "a_1", Score: 0.8},
		{ID: "a_2", Score: 0.8},
	}}
	e := newTestEngine(t, meta, vectors)

	resp, err := e.Search(context.Background(), Request{Query: "topic", Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "a_1", resp.Results[0].ID)
	assert.GreaterOrEqual(t, resp.Results[0].Score, resp.Results[1].Score)
	assert.InDelta(t, 0.07, resp.Results[0].Debug.RecencyBoost, 1e-9)
}

func TestSearchDateFilterPastWeek(t *testing.T) {
	meta := newFakeMeta()
	meta.add(articleRow(1, "Fresh", "A", engineNow.AddDate(0, 0, -2)), "fresh body")
	meta.add(articleRow(2, "Stale", "A", engineNow.AddDate(0, 0, -20)), "stale body")

	vectors := &fakeVectors{loaded: true, hits: []store.VectorResult{
		{ID: "a_1", Score: 0.8},
		{ID: "a_2", Score: 0.8},
	}}
	e := newTestEngine(t, meta, vectors)

	resp, err := e.Search(context.Background(), Request{
		Query:   "body",
		Filters: Filters{DateRange: "past_week"},
		Limit:   10,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a_1", resp.Results[0].ID)
}

func TestSearchInvalidDateYieldsEmpty(t *testing.T) {
	meta := newFakeMeta()
	meta.add(articleRow(1, "Anything", "A", engineNow), "body")
	vectors := &fakeVectors{loaded: true, hits: []store.VectorResult{{ID: "a_1", Score: 0.9}}}
	e := newTestEngine(t, meta, vectors)

	resp, err := e.Search(context.Background(), Request{
		Query:   "anything",
		Filters: Filters{StartDate: "June 2024"},
		Limit:   10,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.Total)
}

func TestSearchUnknownAuthorDefaults(t *testing.T) {
	meta := newFakeMeta()
	row := articleRow(1, "Anonymous Piece", "", engineNow.AddDate(-4, 0, 0))
	meta.add(row, "body")
	vectors := &fakeVectors{loaded: true, hits: []store.VectorResult{{ID: "a_1", Score: 0.9}}}
	e := newTestEngine(t, meta, vectors)

	resp, err := e.Search(context.Background(), Request{Query: "piece", Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Unknown", resp.Results[0].Author)
}

func TestSearchLogsQueries(t *testing.T) {
	meta := newFakeMeta()
	e := newTestEngine(t, meta, &fakeVectors{loaded: true})

	_, err := e.Search(context.Background(), Request{Query: ""})
	require.NoError(t, err)
	assert.Equal(t, []string{""}, meta.logged)
}

func TestReloadReportsDelta(t *testing.T) {
	vectors := &fakeVectors{loaded: true, count: 10, reloadTo: 14}
	e := newTestEngine(t, newFakeMeta(), vectors)

	result, err := e.Reload()
	require.NoError(t, err)
	assert.Equal(t, 10, result.OldCount)
	assert.Equal(t, 14, result.NewCount)
	assert.Equal(t, 4, result.DocumentsAdded)
	assert.Equal(t, "/tmp/index", result.IndexPath)
}

func TestStatsAttachesVectorCount(t *testing.T) {
	meta := newFakeMeta()
	meta.stats = store.CorpusStats{TotalArticles: 100}
	e := newTestEngine(t, meta, &fakeVectors{loaded: true, count: 250})

	stats, err := e.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, stats.TotalArticles)
	assert.Equal(t, 250, stats.IndexedVectors)
}

func TestNewEngineRequiresStores(t *testing.T) {
	_, err := NewEngine(nil, &fakeVectors{}, nil, config.NewConfig().Search)
	assert.Error(t, err)

	_, err = NewEngine(newFakeMeta(), nil, nil, config.NewConfig().Search)
	assert.Error(t, err)
}
