package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/domwxyz/marxist-search/internal/errors"
	"github.com/domwxyz/marxist-search/internal/ident"
)

// sqlTimeLayout is the stored timestamp format. Lexicographic order
// matches chronological order, so date predicates work as plain string
// comparisons.
const sqlTimeLayout = "2006-01-02 15:04:05"

// SQLiteStore is the metadata store over a single SQLite file.
// Single writer, readers serialized by the driver; WAL keeps readers
// from blocking the ingestion process.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (and if needed creates) the metadata database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.StorageError("open metadata database", err)
	}

	// Serialize all access through one connection. modernc.org/sqlite
	// returns SQLITE_BUSY under concurrent writes otherwise.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.StorageError(fmt.Sprintf("apply %s", pragma), err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS articles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT UNIQUE NOT NULL,
	guid TEXT,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	summary TEXT DEFAULT '',
	source TEXT NOT NULL,
	author TEXT DEFAULT '',
	published_date TEXT,
	fetched_date TEXT,
	word_count INTEGER DEFAULT 0,
	is_chunked INTEGER DEFAULT 0,
	indexed INTEGER DEFAULT 0,
	tags TEXT DEFAULT '[]',
	terms TEXT DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);
CREATE INDEX IF NOT EXISTS idx_articles_author ON articles(author);
CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_date);
CREATE INDEX IF NOT EXISTS idx_articles_indexed ON articles(indexed);

CREATE TABLE IF NOT EXISTS article_chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	content TEXT NOT NULL,
	word_count INTEGER DEFAULT 0,
	start_position INTEGER DEFAULT 0,
	UNIQUE(article_id, chunk_index)
);

CREATE TABLE IF NOT EXISTS rss_feeds (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT UNIQUE NOT NULL,
	name TEXT DEFAULT '',
	etag TEXT DEFAULT '',
	last_modified TEXT DEFAULT '',
	last_fetched TEXT,
	consecutive_failures INTEGER DEFAULT 0,
	status TEXT DEFAULT 'active'
);

CREATE TABLE IF NOT EXISTS search_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	query TEXT NOT NULL,
	result_count INTEGER DEFAULT 0,
	duration_ms INTEGER DEFAULT 0,
	created_at TEXT NOT NULL
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.StorageError("create schema", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Write side (ingestion only) ---

// UpsertArticle inserts an article or, when the URL already exists,
// refreshes its mutable fields while keeping the id. Re-ingesting the
// same URL is idempotent.
func (s *SQLiteStore) UpsertArticle(ctx context.Context, a *Article) (int, error) {
	tags, terms := marshalList(a.Tags), marshalList(a.Terms)

	_, err := s.db.ExecContext(ctx, `
INSERT INTO articles (url, guid, title, content, summary, source, author,
	published_date, fetched_date, word_count, is_chunked, indexed, tags, terms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(url) DO UPDATE SET
	guid = excluded.guid,
	title = excluded.title,
	content = excluded.content,
	summary = excluded.summary,
	source = excluded.source,
	author = excluded.author,
	published_date = excluded.published_date,
	fetched_date = excluded.fetched_date,
	word_count = excluded.word_count,
	tags = excluded.tags,
	terms = excluded.terms`,
		a.URL, a.GUID, a.Title, a.Content, a.Summary, a.Source, a.Author,
		timeArg(a.PublishedDate), timeArg(a.FetchedDate), a.WordCount,
		boolArg(a.Chunked), boolArg(a.Indexed), tags, terms)
	if err != nil {
		return 0, errors.StorageError("upsert article", err)
	}

	var id int
	err = s.db.QueryRowContext(ctx, `SELECT id FROM articles WHERE url = ?`, a.URL).Scan(&id)
	if err != nil {
		return 0, errors.StorageError("resolve article id", err)
	}
	a.ID = id
	return id, nil
}

// ReplaceChunks swaps the chunk set of an article and sets is_chunked.
func (s *SQLiteStore) ReplaceChunks(ctx context.Context, articleID int, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StorageError("begin chunk transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM article_chunks WHERE article_id = ?`, articleID); err != nil {
		return errors.StorageError("delete old chunks", err)
	}
	for _, c := range chunks {
		_, err := tx.ExecContext(ctx, `
INSERT INTO article_chunks (article_id, chunk_index, content, word_count, start_position)
VALUES (?, ?, ?, ?, ?)`,
			articleID, c.Index, c.Content, c.WordCount, c.StartPos)
		if err != nil {
			return errors.StorageError("insert chunk", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE articles SET is_chunked = ? WHERE id = ?`,
		boolArg(len(chunks) > 0), articleID); err != nil {
		return errors.StorageError("set chunked flag", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageError("commit chunks", err)
	}
	return nil
}

// MarkIndexed sets the indexed flag for a batch of articles.
func (s *SQLiteStore) MarkIndexed(ctx context.Context, articleIDs []int) error {
	if len(articleIDs) == 0 {
		return nil
	}
	args := make([]any, len(articleIDs))
	for i, id := range articleIDs {
		args[i] = id
	}
	query := fmt.Sprintf(`UPDATE articles SET indexed = 1 WHERE id IN (%s)`, placeholders(len(articleIDs)))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errors.StorageError("mark indexed", err)
	}
	return nil
}

// MarkAllUnindexed clears every indexed flag. Used by full reindex runs.
func (s *SQLiteStore) MarkAllUnindexed(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE articles SET indexed = 0`); err != nil {
		return errors.StorageError("mark all unindexed", err)
	}
	return nil
}

// ListUnindexed returns articles awaiting vector indexing, oldest first.
func (s *SQLiteStore) ListUnindexed(ctx context.Context, limit int) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, url, guid, title, content, summary, source, author,
	published_date, fetched_date, word_count, is_chunked, indexed, tags, terms
FROM articles WHERE indexed = 0 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, errors.StorageError("list unindexed", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetArticle fetches one article with content.
func (s *SQLiteStore) GetArticle(ctx context.Context, id int) (*Article, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, url, guid, title, content, summary, source, author,
	published_date, fetched_date, word_count, is_chunked, indexed, tags, terms
FROM articles WHERE id = ?`, id)
	if err != nil {
		return nil, errors.StorageError("get article", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, sql.ErrNoRows
	}
	a, err := scanArticle(rows)
	if err != nil {
		return nil, err
	}
	return &a, rows.Err()
}

// GetChunks returns the chunks of an article in index order.
func (s *SQLiteStore) GetChunks(ctx context.Context, articleID int) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT article_id, chunk_index, content, word_count, start_position
FROM article_chunks WHERE article_id = ? ORDER BY chunk_index`, articleID)
	if err != nil {
		return nil, errors.StorageError("get chunks", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ArticleID, &c.Index, &c.Content, &c.WordCount, &c.StartPos); err != nil {
			return nil, errors.StorageError("scan chunk", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- Read side (retrieval pipeline) ---

// LookupByIDs returns the filter projection for a mixed set of unit ids.
// Unknown ids are silently absent from the result; malformed ids are
// logged and skipped.
func (s *SQLiteStore) LookupByIDs(ctx context.Context, ids []string) ([]UnitRow, error) {
	articleUnits := make(map[int]string)    // article id -> unit id
	chunkUnits := make(map[int]map[int]string) // article id -> chunk index -> unit id

	for _, id := range ids {
		u, err := ident.Parse(id)
		if err != nil {
			slog.Warn("skipping malformed unit id", slog.String("id", id))
			continue
		}
		switch u.Kind {
		case ident.KindArticle:
			articleUnits[u.ArticleID] = id
		case ident.KindChunk:
			if chunkUnits[u.ArticleID] == nil {
				chunkUnits[u.ArticleID] = make(map[int]string)
			}
			chunkUnits[u.ArticleID][u.ChunkIndex] = id
		}
	}

	var out []UnitRow

	if len(articleUnits) > 0 {
		idArgs := make([]any, 0, len(articleUnits))
		for aid := range articleUnits {
			idArgs = append(idArgs, aid)
		}
		query := fmt.Sprintf(`
SELECT id, title, url, source, author, published_date, word_count, tags, terms
FROM articles WHERE id IN (%s)`, placeholders(len(idArgs)))

		rows, err := s.db.QueryContext(ctx, query, idArgs...)
		if err != nil {
			return nil, errors.StorageError("lookup article units", err)
		}
		for rows.Next() {
			var (
				aid, wordCount               int
				title, url, source           string
				author, published, tg, tm    sql.NullString
			)
			if err := rows.Scan(&aid, &title, &url, &source, &author, &published, &wordCount, &tg, &tm); err != nil {
				_ = rows.Close()
				return nil, errors.StorageError("scan article unit", err)
			}
			row := UnitRow{
				ID:            articleUnits[aid],
				ArticleID:     aid,
				Title:         title,
				URL:           url,
				Source:        source,
				Author:        author.String,
				PublishedDate: parseTime(published),
				WordCount:     wordCount,
				Tags:          unmarshalList(tg.String),
				Terms:         unmarshalList(tm.String),
			}
			row.PublishedYear, row.PublishedMonth = yearMonth(row.PublishedDate)
			out = append(out, row)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, errors.StorageError("iterate article units", err)
		}
		_ = rows.Close()
	}

	if len(chunkUnits) > 0 {
		idArgs := make([]any, 0, len(chunkUnits))
		for aid := range chunkUnits {
			idArgs = append(idArgs, aid)
		}
		query := fmt.Sprintf(`
SELECT c.article_id, c.chunk_index, c.word_count,
	a.title, a.url, a.source, a.author, a.published_date, a.tags, a.terms
FROM article_chunks c
JOIN articles a ON a.id = c.article_id
WHERE c.article_id IN (%s)`, placeholders(len(idArgs)))

		rows, err := s.db.QueryContext(ctx, query, idArgs...)
		if err != nil {
			return nil, errors.StorageError("lookup chunk units", err)
		}
		for rows.Next() {
			var (
				aid, chunkIndex, wordCount int
				title, url, source         string
				author, published, tg, tm  sql.NullString
			)
			if err := rows.Scan(&aid, &chunkIndex, &wordCount, &title, &url, &source, &author, &published, &tg, &tm); err != nil {
				_ = rows.Close()
				return nil, errors.StorageError("scan chunk unit", err)
			}
			unitID, wanted := chunkUnits[aid][chunkIndex]
			if !wanted {
				continue
			}
			row := UnitRow{
				ID:            unitID,
				ArticleID:     aid,
				Title:         title,
				URL:           url,
				Source:        source,
				Author:        author.String,
				PublishedDate: parseTime(published),
				WordCount:     wordCount,
				IsChunk:       true,
				ChunkIndex:    chunkIndex,
				Tags:          unmarshalList(tg.String),
				Terms:         unmarshalList(tm.String),
			}
			row.PublishedYear, row.PublishedMonth = yearMonth(row.PublishedDate)
			out = append(out, row)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, errors.StorageError("iterate chunk units", err)
		}
		_ = rows.Close()
	}

	return out, nil
}

// FetchContent returns unit id -> body text for the given unit ids.
// Article units map to the article body, chunk units to the chunk body.
func (s *SQLiteStore) FetchContent(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))

	articleUnits := make(map[int]string)
	chunkUnits := make(map[int]map[int]string)
	for _, id := range ids {
		u, err := ident.Parse(id)
		if err != nil {
			slog.Warn("skipping malformed unit id", slog.String("id", id))
			continue
		}
		if u.Kind == ident.KindArticle {
			articleUnits[u.ArticleID] = id
		} else {
			if chunkUnits[u.ArticleID] == nil {
				chunkUnits[u.ArticleID] = make(map[int]string)
			}
			chunkUnits[u.ArticleID][u.ChunkIndex] = id
		}
	}

	if len(articleUnits) > 0 {
		idArgs := make([]any, 0, len(articleUnits))
		for aid := range articleUnits {
			idArgs = append(idArgs, aid)
		}
		query := fmt.Sprintf(`SELECT id, content FROM articles WHERE id IN (%s)`, placeholders(len(idArgs)))
		rows, err := s.db.QueryContext(ctx, query, idArgs...)
		if err != nil {
			return nil, errors.StorageError("fetch article content", err)
		}
		for rows.Next() {
			var aid int
			var content string
			if err := rows.Scan(&aid, &content); err != nil {
				_ = rows.Close()
				return nil, errors.StorageError("scan article content", err)
			}
			out[articleUnits[aid]] = content
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, errors.StorageError("iterate article content", err)
		}
		_ = rows.Close()
	}

	if len(chunkUnits) > 0 {
		idArgs := make([]any, 0, len(chunkUnits))
		for aid := range chunkUnits {
			idArgs = append(idArgs, aid)
		}
		query := fmt.Sprintf(`
SELECT article_id, chunk_index, content FROM article_chunks WHERE article_id IN (%s)`,
			placeholders(len(idArgs)))
		rows, err := s.db.QueryContext(ctx, query, idArgs...)
		if err != nil {
			return nil, errors.StorageError("fetch chunk content", err)
		}
		for rows.Next() {
			var aid, chunkIndex int
			var content string
			if err := rows.Scan(&aid, &chunkIndex, &content); err != nil {
				_ = rows.Close()
				return nil, errors.StorageError("scan chunk content", err)
			}
			if unitID, ok := chunkUnits[aid][chunkIndex]; ok {
				out[unitID] = content
			}
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, errors.StorageError("iterate chunk content", err)
		}
		_ = rows.Close()
	}

	return out, nil
}

// FilterByBodyLike returns the subset of unit ids whose body contains any
// of the given terms as a substring. Used by the keyword-aware cutoff
// bypass; whole-word verification happens later against fetched content.
func (s *SQLiteStore) FilterByBodyLike(ctx context.Context, ids []string, terms []string) (map[string]bool, error) {
	matched := make(map[string]bool)
	if len(ids) == 0 || len(terms) == 0 {
		return matched, nil
	}

	likeClauses := func(column string) (string, []any) {
		parts := make([]string, len(terms))
		args := make([]any, len(terms))
		for i, term := range terms {
			parts[i] = column + ` LIKE ? ESCAPE '\'`
			args[i] = "%" + EscapeLike(term) + "%"
		}
		return "(" + strings.Join(parts, " OR ") + ")", args
	}

	articleUnits := make(map[int]string)
	chunkUnits := make(map[int]map[int]string)
	for _, id := range ids {
		u, err := ident.Parse(id)
		if err != nil {
			slog.Warn("skipping malformed unit id", slog.String("id", id))
			continue
		}
		if u.Kind == ident.KindArticle {
			articleUnits[u.ArticleID] = id
		} else {
			if chunkUnits[u.ArticleID] == nil {
				chunkUnits[u.ArticleID] = make(map[int]string)
			}
			chunkUnits[u.ArticleID][u.ChunkIndex] = id
		}
	}

	if len(articleUnits) > 0 {
		idArgs := make([]any, 0, len(articleUnits))
		for aid := range articleUnits {
			idArgs = append(idArgs, aid)
		}
		clause, likeArgs := likeClauses("content")
		query := fmt.Sprintf(`SELECT id FROM articles WHERE id IN (%s) AND %s`,
			placeholders(len(idArgs)), clause)
		rows, err := s.db.QueryContext(ctx, query, append(idArgs, likeArgs...)...)
		if err != nil {
			return nil, errors.StorageError("body like filter (articles)", err)
		}
		for rows.Next() {
			var aid int
			if err := rows.Scan(&aid); err != nil {
				_ = rows.Close()
				return nil, errors.StorageError("scan body like filter", err)
			}
			matched[articleUnits[aid]] = true
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, errors.StorageError("iterate body like filter", err)
		}
		_ = rows.Close()
	}

	if len(chunkUnits) > 0 {
		idArgs := make([]any, 0, len(chunkUnits))
		for aid := range chunkUnits {
			idArgs = append(idArgs, aid)
		}
		clause, likeArgs := likeClauses("content")
		query := fmt.Sprintf(`
SELECT article_id, chunk_index FROM article_chunks WHERE article_id IN (%s) AND %s`,
			placeholders(len(idArgs)), clause)
		rows, err := s.db.QueryContext(ctx, query, append(idArgs, likeArgs...)...)
		if err != nil {
			return nil, errors.StorageError("body like filter (chunks)", err)
		}
		for rows.Next() {
			var aid, chunkIndex int
			if err := rows.Scan(&aid, &chunkIndex); err != nil {
				_ = rows.Close()
				return nil, errors.StorageError("scan body like filter", err)
			}
			if unitID, ok := chunkUnits[aid][chunkIndex]; ok {
				matched[unitID] = true
			}
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, errors.StorageError("iterate body like filter", err)
		}
		_ = rows.Close()
	}

	return matched, nil
}

// SearchByContent serves queries with no free semantic terms: phrase and
// attribute predicates materialized as SQL, newest first. Only whole
// articles are returned; whole-word verification happens in the engine.
func (s *SQLiteStore) SearchByContent(ctx context.Context, q ContentQuery) ([]UnitRow, error) {
	var (
		conds []string
		args  []any
	)
	conds = append(conds, "indexed = 1")

	for _, phrase := range q.ExactPhrases {
		conds = append(conds, `(title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\')`)
		pattern := "%" + EscapeLike(phrase) + "%"
		args = append(args, pattern, pattern)
	}
	for _, phrase := range q.TitlePhrases {
		conds = append(conds, `title LIKE ? ESCAPE '\'`)
		args = append(args, "%"+EscapeLike(phrase)+"%")
	}
	if q.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, q.Source)
	}
	for _, token := range q.AuthorTokens {
		conds = append(conds, `author LIKE ? ESCAPE '\'`)
		args = append(args, "%"+EscapeLike(token)+"%")
	}
	if q.Year > 0 {
		conds = append(conds, "published_date >= ? AND published_date < ?")
		args = append(args, fmt.Sprintf("%04d-01-01 00:00:00", q.Year), fmt.Sprintf("%04d-01-01 00:00:00", q.Year+1))
	}
	if q.MinWordCount > 0 {
		conds = append(conds, "word_count >= ?")
		args = append(args, q.MinWordCount)
	}
	if !q.StartDate.IsZero() {
		conds = append(conds, "published_date >= ?")
		args = append(args, q.StartDate.UTC().Format(sqlTimeLayout))
	}
	if !q.EndDate.IsZero() {
		conds = append(conds, "published_date <= ?")
		args = append(args, q.EndDate.UTC().Format(sqlTimeLayout))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 1000
	}

	query := fmt.Sprintf(`
SELECT id, title, url, source, author, published_date, word_count, tags, terms
FROM articles
WHERE %s
ORDER BY published_date DESC
LIMIT %d`, strings.Join(conds, " AND "), limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.StorageError("search by content", err)
	}
	defer func() { _ = rows.Close() }()

	var out []UnitRow
	for rows.Next() {
		var (
			aid, wordCount            int
			title, url, source        string
			author, published, tg, tm sql.NullString
		)
		if err := rows.Scan(&aid, &title, &url, &source, &author, &published, &wordCount, &tg, &tm); err != nil {
			return nil, errors.StorageError("scan content search row", err)
		}
		row := UnitRow{
			ID:            ident.MakeArticleID(aid),
			ArticleID:     aid,
			Title:         title,
			URL:           url,
			Source:        source,
			Author:        author.String,
			PublishedDate: parseTime(published),
			WordCount:     wordCount,
			Tags:          unmarshalList(tg.String),
			Terms:         unmarshalList(tm.String),
		}
		row.PublishedYear, row.PublishedMonth = yearMonth(row.PublishedDate)
		out = append(out, row)
	}
	return out, rows.Err()
}

// EscapeLike escapes %, _ and \ so user text is safe inside a LIKE
// pattern with ESCAPE '\'.
func EscapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// --- helpers ---

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func marshalList(list []string) string {
	if list == nil {
		list = []string{}
	}
	data, _ := json.Marshal(list)
	return string(data)
}

func unmarshalList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func timeArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(sqlTimeLayout)
}

func boolArg(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTime(ns sql.NullString) time.Time {
	if !ns.Valid || ns.String == "" {
		return time.Time{}
	}
	for _, layout := range []string{sqlTimeLayout, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, ns.String); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func yearMonth(t time.Time) (int, int) {
	if t.IsZero() {
		return 0, 0
	}
	return t.Year(), int(t.Month())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(rows rowScanner) (Article, error) {
	var (
		a                         Article
		guid, summary, author     sql.NullString
		published, fetched        sql.NullString
		chunked, indexed          int
		tg, tm                    sql.NullString
	)
	err := rows.Scan(&a.ID, &a.URL, &guid, &a.Title, &a.Content, &summary, &a.Source, &author,
		&published, &fetched, &a.WordCount, &chunked, &indexed, &tg, &tm)
	if err != nil {
		return Article{}, errors.StorageError("scan article", err)
	}
	a.GUID = guid.String
	a.Summary = summary.String
	a.Author = author.String
	a.PublishedDate = parseTime(published)
	a.FetchedDate = parseTime(fetched)
	a.Chunked = chunked != 0
	a.Indexed = indexed != 0
	a.Tags = unmarshalList(tg.String)
	a.Terms = unmarshalList(tm.String)
	return a, nil
}
