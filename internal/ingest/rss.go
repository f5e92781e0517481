package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/domwxyz/marxist-search/internal/errors"
	"github.com/domwxyz/marxist-search/internal/store"
	"github.com/domwxyz/marxist-search/internal/vocab"
)

const userAgent = "marxist-search/1.0 (+https://github.com/domwxyz/marxist-search)"

// FetchStats summarizes one ingestion pass over the feed registry.
type FetchStats struct {
	FeedsPolled  int
	FeedsSkipped int
	FeedsFailed  int
	NewArticles  int
	NotModified  int
}

// Fetcher polls registered feeds and upserts their entries. Conditional
// requests use the stored ETag and Last-Modified values; a 304 costs
// one round trip and nothing else.
type Fetcher struct {
	store       *store.SQLiteStore
	vocab       *vocab.Vocabulary
	chunker     *Chunker
	client      *http.Client
	parser      *gofeed.Parser
	concurrency int
	logger      *slog.Logger
}

// NewFetcher wires a fetcher over the metadata store.
func NewFetcher(st *store.SQLiteStore, v *vocab.Vocabulary, chunker *Chunker, concurrency int, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if v == nil {
		v = vocab.Empty()
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		store:       st,
		vocab:       v,
		chunker:     chunker,
		client:      &http.Client{Timeout: timeout},
		parser:      gofeed.NewParser(),
		concurrency: concurrency,
		logger:      logger,
	}
}

// FetchAll polls every active and degraded feed concurrently. Feeds
// marked failing are skipped until an operator re-enables them.
// Individual feed failures are recorded, never fatal.
func (f *Fetcher) FetchAll(ctx context.Context) (FetchStats, error) {
	feeds, err := f.store.ListFeeds(ctx, false)
	if err != nil {
		return FetchStats{}, err
	}

	var stats FetchStats
	results := make([]FetchStats, len(feeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, feed := range feeds {
		g.Go(func() error {
			s, ferr := f.fetchFeed(gctx, feed)
			if ferr != nil {
				f.logger.Warn("feed fetch failed",
					slog.String("feed", feed.URL),
					slog.Any("error", ferr))
				if derr := f.store.RecordFeedFailure(gctx, feed.URL); derr != nil {
					f.logger.Warn("record feed failure", slog.Any("error", derr))
				}
				s.FeedsFailed = 1
			}
			results[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	for _, s := range results {
		stats.FeedsPolled += s.FeedsPolled
		stats.FeedsFailed += s.FeedsFailed
		stats.NewArticles += s.NewArticles
		stats.NotModified += s.NotModified
	}
	return stats, nil
}

// fetchFeed polls one feed and upserts its entries.
func (f *Fetcher) fetchFeed(ctx context.Context, feed store.Feed) (FetchStats, error) {
	stats := FetchStats{FeedsPolled: 1}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return stats, errors.New(errors.ErrCodeFeedFetch, "build feed request", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if feed.ETag != "" {
		req.Header.Set("If-None-Match", feed.ETag)
	}
	if feed.LastModified != "" {
		req.Header.Set("If-Modified-Since", feed.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return stats, errors.New(errors.ErrCodeFeedFetch, "fetch "+feed.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		stats.NotModified = 1
		return stats, f.store.RecordFeedSuccess(ctx, feed.URL, feed.ETag, feed.LastModified)
	}
	if resp.StatusCode != http.StatusOK {
		return stats, errors.New(errors.ErrCodeFeedFetch,
			fmt.Sprintf("fetch %s: status %d", feed.URL, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return stats, errors.New(errors.ErrCodeFeedFetch, "read feed body", err)
	}

	parsed, err := f.parser.ParseString(string(body))
	if err != nil {
		return stats, errors.New(errors.ErrCodeFeedFetch, "parse feed "+feed.URL, err)
	}

	sourceName := feed.Name
	if sourceName == "" {
		sourceName = parsed.Title
	}

	for _, item := range parsed.Items {
		n, ierr := f.ingestItem(ctx, sourceName, item)
		if ierr != nil {
			f.logger.Warn("item ingest failed",
				slog.String("feed", feed.URL),
				slog.String("item", item.Link),
				slog.Any("error", ierr))
			continue
		}
		stats.NewArticles += n
	}

	return stats, f.store.RecordFeedSuccess(ctx, feed.URL,
		resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"))
}

// ingestItem converts one feed entry into an article row, chunking it
// when it crosses the threshold. Returns 1 when a row was written.
func (f *Fetcher) ingestItem(ctx context.Context, source string, item *gofeed.Item) (int, error) {
	if item.Link == "" {
		return 0, nil
	}

	raw := item.Content
	if raw == "" {
		raw = item.Description
	}
	content, err := ExtractText(raw)
	if err != nil {
		return 0, err
	}
	if content == "" {
		return 0, nil
	}

	var published time.Time
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.UTC()
	}

	var author string
	if len(item.Authors) > 0 {
		author = item.Authors[0].Name
	}

	wordCount := CountWords(content)
	article := &store.Article{
		URL:           item.Link,
		GUID:          item.GUID,
		Title:         normalizeSpace(item.Title),
		Content:       content,
		Summary:       normalizeSpace(item.Description),
		Source:        source,
		Author:        author,
		PublishedDate: published,
		FetchedDate:   time.Now().UTC(),
		WordCount:     wordCount,
		Chunked:       f.chunker.NeedsChunking(wordCount),
		Tags:          item.Categories,
		Terms:         f.vocab.MatchTerms(item.Title + " " + content),
	}

	id, err := f.store.UpsertArticle(ctx, article)
	if err != nil {
		return 0, err
	}

	if article.Chunked {
		chunks := f.chunker.Split(content)
		for i := range chunks {
			chunks[i].ArticleID = id
		}
		if err := f.store.ReplaceChunks(ctx, id, chunks); err != nil {
			return 0, err
		}
	}
	return 1, nil
}
