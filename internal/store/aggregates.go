package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/domwxyz/marxist-search/internal/errors"
)

// Sources returns per-source article counts and date ranges for indexed
// articles, most prolific source first.
func (s *SQLiteStore) Sources(ctx context.Context) ([]SourceInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT source, COUNT(*), MIN(published_date), MAX(published_date)
FROM articles
WHERE indexed = 1
GROUP BY source
ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, errors.StorageError("sources aggregate", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SourceInfo
	for rows.Next() {
		var info SourceInfo
		var earliest, latest sql.NullString
		if err := rows.Scan(&info.Name, &info.ArticleCount, &earliest, &latest); err != nil {
			return nil, errors.StorageError("scan source row", err)
		}
		info.Earliest = parseTime(earliest)
		info.Latest = parseTime(latest)
		out = append(out, info)
	}
	return out, rows.Err()
}

// TopAuthors returns authors with at least minArticles indexed articles.
func (s *SQLiteStore) TopAuthors(ctx context.Context, minArticles, limit int) ([]AuthorInfo, error) {
	if minArticles < 1 {
		minArticles = 1
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT author, COUNT(*), MAX(published_date)
FROM articles
WHERE indexed = 1 AND author != ''
GROUP BY author
HAVING COUNT(*) >= ?
ORDER BY COUNT(*) DESC
LIMIT ?`, minArticles, limit)
	if err != nil {
		return nil, errors.StorageError("top authors aggregate", err)
	}
	defer func() { _ = rows.Close() }()

	var out []AuthorInfo
	for rows.Next() {
		var info AuthorInfo
		var latest sql.NullString
		if err := rows.Scan(&info.Author, &info.ArticleCount, &latest); err != nil {
			return nil, errors.StorageError("scan author row", err)
		}
		info.Latest = parseTime(latest)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Stats summarizes the corpus. IndexedVectors is filled in by the caller
// from the vector store; the metadata store knows nothing about it.
func (s *SQLiteStore) Stats(ctx context.Context) (CorpusStats, error) {
	var stats CorpusStats
	var earliest, latest sql.NullString

	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*),
	COALESCE(SUM(indexed), 0),
	(SELECT COUNT(*) FROM article_chunks),
	(SELECT COUNT(DISTINCT source) FROM articles),
	MIN(published_date),
	MAX(published_date),
	(SELECT COUNT(*) FROM search_logs)
FROM articles`).Scan(
		&stats.TotalArticles, &stats.IndexedArticles, &stats.TotalChunks,
		&stats.SourceCount, &earliest, &latest, &stats.TotalSearches)
	if err != nil {
		return CorpusStats{}, errors.StorageError("stats aggregate", err)
	}

	stats.EarliestArticle = parseTime(earliest)
	stats.LatestArticle = parseTime(latest)
	return stats, nil
}

// LogSearch records one query for the analytics aggregate. Best effort:
// callers ignore the returned error after logging it.
func (s *SQLiteStore) LogSearch(ctx context.Context, query string, resultCount int, duration time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO search_logs (query, result_count, duration_ms, created_at)
VALUES (?, ?, ?, ?)`,
		query, resultCount, duration.Milliseconds(), time.Now().UTC().Format(sqlTimeLayout))
	if err != nil {
		return errors.StorageError("log search", err)
	}
	return nil
}
