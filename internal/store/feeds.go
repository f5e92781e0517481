package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/domwxyz/marxist-search/internal/errors"
)

// UpsertFeed registers a feed URL, keeping fetch state on conflict.
func (s *SQLiteStore) UpsertFeed(ctx context.Context, url, name string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO rss_feeds (url, name) VALUES (?, ?)
ON CONFLICT(url) DO UPDATE SET name = excluded.name`, url, name)
	if err != nil {
		return errors.StorageError("upsert feed", err)
	}
	return nil
}

// ListFeeds returns registered feeds. Failing feeds are excluded unless
// includeFailing is set.
func (s *SQLiteStore) ListFeeds(ctx context.Context, includeFailing bool) ([]Feed, error) {
	query := `
SELECT id, url, name, etag, last_modified, last_fetched, consecutive_failures, status
FROM rss_feeds`
	if !includeFailing {
		query += ` WHERE status != '` + FeedStatusFailing + `'`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.StorageError("list feeds", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Feed
	for rows.Next() {
		var f Feed
		var lastFetched sql.NullString
		if err := rows.Scan(&f.ID, &f.URL, &f.Name, &f.ETag, &f.LastModified,
			&lastFetched, &f.ConsecutiveFailures, &f.Status); err != nil {
			return nil, errors.StorageError("scan feed", err)
		}
		f.LastFetched = parseTime(lastFetched)
		out = append(out, f)
	}
	return out, rows.Err()
}

// RecordFeedSuccess resets the failure counter and stores the new cache
// validators.
func (s *SQLiteStore) RecordFeedSuccess(ctx context.Context, url, etag, lastModified string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE rss_feeds
SET etag = ?, last_modified = ?, last_fetched = ?, consecutive_failures = 0, status = ?
WHERE url = ?`,
		etag, lastModified, time.Now().UTC().Format(sqlTimeLayout), FeedStatusActive, url)
	if err != nil {
		return errors.StorageError("record feed success", err)
	}
	return nil
}

// RecordFeedFailure bumps the failure counter and degrades the feed
// status at the configured thresholds.
func (s *SQLiteStore) RecordFeedFailure(ctx context.Context, url string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE rss_feeds
SET consecutive_failures = consecutive_failures + 1,
	status = CASE
		WHEN consecutive_failures + 1 >= ? THEN ?
		WHEN consecutive_failures + 1 >= ? THEN ?
		ELSE status
	END
WHERE url = ?`,
		feedFailingAfter, FeedStatusFailing, feedDegradedAfter, FeedStatusDegraded, url)
	if err != nil {
		return errors.StorageError("record feed failure", err)
	}
	return nil
}
