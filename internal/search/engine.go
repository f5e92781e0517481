package search

import (
	"context"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/domwxyz/marxist-search/internal/config"
	"github.com/domwxyz/marxist-search/internal/errors"
	"github.com/domwxyz/marxist-search/internal/store"
	"github.com/domwxyz/marxist-search/internal/vocab"
)

// contentCacheSize bounds the body cache. Bodies are fetched for phrase
// filtering, keyword reranking, and excerpting; popular articles recur
// across queries.
const contentCacheSize = 4096

// defaultLimit applies when a request does not set one.
const defaultLimit = 10

// Engine is the retrieval core. One instance is constructed at startup
// and shared across workers; all methods are safe for concurrent use.
type Engine struct {
	meta     MetadataReader
	vectors  VectorReader
	expander *Expander
	cfg      config.SearchConfig
	logger   *slog.Logger

	contentCache *lru.Cache[string, string]
	now          func() time.Time
}

// EngineOption customizes engine construction.
type EngineOption func(*Engine)

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithClock fixes the time source. Tests use this to pin recency tiers
// and date presets.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires the retrieval core over its two stores and the
// expansion vocabulary.
func NewEngine(meta MetadataReader, vectors VectorReader, v *vocab.Vocabulary, cfg config.SearchConfig, opts ...EngineOption) (*Engine, error) {
	if meta == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "metadata store is required", nil)
	}
	if vectors == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "vector searcher is required", nil)
	}
	if v == nil {
		v = vocab.Empty()
	}

	cache, err := lru.New[string, string](contentCacheSize)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "create content cache", err)
	}

	e := &Engine{
		meta:         meta,
		vectors:      vectors,
		expander:     NewExpander(v, cfg.MaxExpansionVariants),
		cfg:          cfg,
		logger:       slog.Default(),
		contentCache: cache,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search runs the full pipeline for one request.
//
// A query that fails to parse is not an error: the response carries an
// error field and empty results. Infrastructure failures (index not
// loaded, vector store unreachable) are returned as errors for the
// transport to map.
func (e *Engine) Search(ctx context.Context, req Request) (Response, error) {
	started := e.now()

	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	resp := Response{
		Results: []Result{},
		Limit:   limit,
		Offset:  offset,
		Page:    offset/limit + 1,
		Query:   req.Query,
		Filters: req.Filters,
	}

	parsed, err := ParseQuery(req.Query)
	if err != nil {
		resp.Error = err.Error()
		resp.QueryTimeMS = e.now().Sub(started).Milliseconds()
		return resp, nil
	}
	resp.ParsedQuery = parsed

	now := e.now().UTC()
	cf := compileFilters(req.Filters, parsed.AuthorFilter, now)

	var candidates []candidate
	semanticPath := len(parsed.SemanticTerms) > 0

	switch {
	case !parsed.HasContent() && req.Filters.IsZero():
		// Nothing to search for.
	case cf.invalidDate:
		// Date predicate is false for every row.
	case !semanticPath:
		candidates, err = e.searchByContent(ctx, parsed, cf)
	default:
		candidates, err = e.searchByVector(ctx, parsed, cf)
	}
	if err != nil {
		return resp, err
	}

	candidates = dedupByArticle(candidates)

	in := e.newRerankInput(parsed.SemanticTerms, parsed.ExactPhrases, now)
	e.rerank(ctx, candidates, in, semanticPath)

	sortCandidates(candidates)

	resp.Total = len(candidates)
	page := paginate(candidates, offset, limit)
	e.hydrateAll(ctx, page)

	resp.Results = e.buildResults(page, parsed.ExactPhrases)
	resp.QueryTimeMS = e.now().Sub(started).Milliseconds()

	if logErr := e.meta.LogSearch(ctx, req.Query, resp.Total, e.now().Sub(started)); logErr != nil {
		e.logger.Debug("search log write failed", slog.Any("error", logErr))
	}
	return resp, nil
}

// searchByContent serves queries with no free semantic terms: the
// metadata store materializes phrases and filters as SQL predicates and
// every hit carries a uniform base score.
func (e *Engine) searchByContent(ctx context.Context, parsed ParsedQuery, cf compiledFilters) ([]candidate, error) {
	q := cf.contentQuery(parsed, e.cfg.RecallLimit)

	rows, err := e.meta.SearchByContent(ctx, q)
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(rows))
	for _, row := range rows {
		if !cf.matches(row) {
			continue
		}
		candidates = append(candidates, candidate{row: row, score: 1.0, matchedSections: 1})
	}

	// SQL LIKE is a substring probe; the whole-word guarantee is
	// enforced here, same as on the vector path.
	return e.filterPhrases(ctx, candidates, parsed)
}

// searchByVector serves queries with free semantic terms: expanded
// recall from the vector index, adaptive cutoff, then app-level filters.
func (e *Engine) searchByVector(ctx context.Context, parsed ParsedQuery, cf compiledFilters) ([]candidate, error) {
	queryText := strings.Join(parsed.SemanticTerms, " ")
	if e.cfg.ExpansionEnabled {
		queryText = e.expander.Expand(queryText)
	}

	hits, err := e.vectors.Search(ctx, queryText, e.cfg.RecallLimit)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	scores := make(map[string]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
		scores[h.ID] = h.Score
	}

	rows, err := e.meta.LookupByIDs(ctx, ids)
	if err != nil {
		return nil, errors.New(errors.ErrCodeSearchFailed, "hydrate recall set", err)
	}

	candidates := make([]candidate, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, candidate{
			row:             row,
			score:           scores[row.ID],
			matchedSections: 1,
		})
	}

	candidates = e.applyCutoff(ctx, candidates, parsed.SemanticTerms)

	kept := candidates[:0]
	for _, c := range candidates {
		if cf.matches(c.row) {
			kept = append(kept, c)
		}
	}
	candidates = kept

	return e.filterPhrases(ctx, candidates, parsed)
}

// filterPhrases applies the exact-phrase whole-word filter (against
// title and body) and the title-phrase substring filter. Conjunctive
// across phrases.
func (e *Engine) filterPhrases(ctx context.Context, candidates []candidate, parsed ParsedQuery) ([]candidate, error) {
	if len(parsed.TitlePhrases) > 0 {
		kept := candidates[:0]
		for _, c := range candidates {
			title := strings.ToLower(c.row.Title)
			ok := true
			for _, phrase := range parsed.TitlePhrases {
				if !strings.Contains(title, strings.ToLower(phrase)) {
					ok = false
					break
				}
			}
			if ok {
				kept = append(kept, c)
			}
		}
		candidates = kept
	}

	if len(parsed.ExactPhrases) == 0 || len(candidates) == 0 {
		return candidates, nil
	}

	e.hydrateAll(ctx, candidates)

	patterns := make([]*regexp.Regexp, 0, len(parsed.ExactPhrases))
	for _, phrase := range parsed.ExactPhrases {
		if p := wholeWordPattern(phrase); p != nil {
			patterns = append(patterns, p)
		}
	}

	kept := candidates[:0]
	for _, c := range candidates {
		ok := true
		for _, p := range patterns {
			if !p.MatchString(c.row.Title) && !(c.hasContent && p.MatchString(c.content)) {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// dedupByArticle collapses chunk-level hits to one result per article,
// keeping the highest-scoring unit and recording the group size.
func dedupByArticle(candidates []candidate) []candidate {
	if len(candidates) == 0 {
		return candidates
	}

	best := make(map[int]int, len(candidates)) // article id -> index in out
	var out []candidate
	for _, c := range candidates {
		i, seen := best[c.row.ArticleID]
		if !seen {
			best[c.row.ArticleID] = len(out)
			out = append(out, c)
			continue
		}
		out[i].matchedSections++
		if c.score > out[i].score {
			sections := out[i].matchedSections
			out[i] = c
			out[i].matchedSections = sections
		}
	}
	return out
}

// sortCandidates orders by final score descending, breaking ties by
// article id so pagination is deterministic.
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].row.ArticleID < candidates[j].row.ArticleID
	})
}

func paginate(candidates []candidate, offset, limit int) []candidate {
	if offset >= len(candidates) {
		return nil
	}
	end := offset + limit
	if end > len(candidates) {
		end = len(candidates)
	}
	return candidates[offset:end]
}

// hydrateTopN attaches body content to the current top-N candidates by
// score, for the body-dependent rerank signals.
func (e *Engine) hydrateTopN(ctx context.Context, candidates []candidate, n int) {
	if n <= 0 || len(candidates) == 0 {
		return
	}
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return candidates[order[a]].score > candidates[order[b]].score
	})
	if len(order) > n {
		order = order[:n]
	}

	subset := make([]candidate, len(order))
	for i, idx := range order {
		subset[i] = candidates[idx]
	}
	e.hydrateAll(ctx, subset)
	for i, idx := range order {
		candidates[idx] = subset[i]
	}
}

// hydrateAll attaches body content to every candidate that lacks it,
// going through the LRU cache and batching the misses into one fetch.
// A fetch failure drops no rows; affected candidates just stay without
// content.
func (e *Engine) hydrateAll(ctx context.Context, candidates []candidate) {
	var missing []string
	for i := range candidates {
		if candidates[i].hasContent {
			continue
		}
		if body, ok := e.contentCache.Get(candidates[i].row.ID); ok {
			candidates[i].content = body
			candidates[i].hasContent = true
			continue
		}
		missing = append(missing, candidates[i].row.ID)
	}
	if len(missing) == 0 {
		return
	}

	bodies, err := e.meta.FetchContent(ctx, missing)
	if err != nil {
		e.logger.Warn("content hydration failed", slog.Any("error", err))
		return
	}
	for i := range candidates {
		if candidates[i].hasContent {
			continue
		}
		if body, ok := bodies[candidates[i].row.ID]; ok {
			candidates[i].content = body
			candidates[i].hasContent = true
			e.contentCache.Add(candidates[i].row.ID, body)
		}
	}
}

// buildResults converts the paginated survivors into the response shape.
func (e *Engine) buildResults(page []candidate, exactPhrases []string) []Result {
	results := make([]Result, 0, len(page))
	for _, c := range page {
		author := c.row.Author
		if author == "" {
			author = "Unknown"
		}

		excerpt, matched := buildExcerpt(c.content, c.row.Title, exactPhrases)

		var published string
		if !c.row.PublishedDate.IsZero() {
			published = c.row.PublishedDate.UTC().Format(time.RFC3339)
		}

		signals := c.signals
		results = append(results, Result{
			ID:              c.row.ID,
			ArticleID:       c.row.ArticleID,
			Title:           c.row.Title,
			URL:             c.row.URL,
			Source:          c.row.Source,
			Author:          author,
			PublishedDate:   published,
			Excerpt:         excerpt,
			MatchedPhrase:   matched,
			Score:           round4(c.score),
			MatchedSections: c.matchedSections,
			WordCount:       c.row.WordCount,
			Tags:            c.row.Tags,
			Terms:           c.row.Terms,
			Debug:           &signals,
		})
	}
	return results
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

// Reload swaps in the vector index currently on disk. The old index
// keeps serving until the new one loads successfully.
func (e *Engine) Reload() (ReloadResult, error) {
	oldCount, newCount, err := e.vectors.Reload()
	result := ReloadResult{
		OldCount:       oldCount,
		NewCount:       newCount,
		DocumentsAdded: newCount - oldCount,
		IndexPath:      e.vectors.IndexDir(),
	}
	if err != nil {
		return result, err
	}
	return result, nil
}

// Sources returns the per-source aggregate.
func (e *Engine) Sources(ctx context.Context) ([]store.SourceInfo, error) {
	return e.meta.Sources(ctx)
}

// TopAuthors returns authors with at least minArticles indexed articles.
func (e *Engine) TopAuthors(ctx context.Context, minArticles, limit int) ([]store.AuthorInfo, error) {
	return e.meta.TopAuthors(ctx, minArticles, limit)
}

// Stats returns corpus statistics, with the live vector count attached.
func (e *Engine) Stats(ctx context.Context) (store.CorpusStats, error) {
	stats, err := e.meta.Stats(ctx)
	if err != nil {
		return stats, err
	}
	stats.IndexedVectors = e.vectors.Count()
	return stats, nil
}

// IndexLoaded reports whether the vector index is serving.
func (e *Engine) IndexLoaded() bool {
	return e.vectors.Loaded()
}
