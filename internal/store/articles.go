package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"skim/internal/core"
)

const articleColumns = `id, feed_id, url, source_url, title, author, content, content_hash,
	published_at, created_at, summary_short, summary_full, key_points, model_used, summarized_at,
	word_count, reading_minutes, image_url, has_code_blocks, code_languages, site_name, tags,
	paywalled, extractor, content_type, filename, storage_path, user_id, is_read, is_bookmarked`

// AddArticle inserts an article and returns its id. Inserting a duplicate URL
// is not an error: it returns id 0 so upstream can skip quietly.
func (s *Store) AddArticle(a *core.Article) (int64, error) {
	codeLanguages, _ := json.Marshal(emptyIfNil(a.CodeLanguages))
	tags, _ := json.Marshal(emptyIfNil(a.Tags))

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.Exec(`
		INSERT INTO articles (feed_id, url, source_url, title, author, content, content_hash,
			published_at, created_at, word_count, reading_minutes, image_url, has_code_blocks,
			code_languages, site_name, tags, paywalled, extractor, content_type, filename,
			storage_path, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO NOTHING`,
		a.FeedID, a.URL, a.SourceURL, a.Title, a.Author, a.Content, a.ContentHash,
		a.PublishedAt, createdAt, a.WordCount, a.ReadingMinutes, a.ImageURL, a.HasCodeBlocks,
		string(codeLanguages), a.SiteName, string(tags), a.Paywalled, a.Extractor, a.ContentType,
		a.Filename, a.StoragePath, a.UserID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add article: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check article insert: %w", err)
	}
	if affected == 0 {
		return 0, nil // Duplicate URL; caller treats as "already exists".
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get article id: %w", err)
	}
	a.ID = id
	return id, nil
}

// GetArticle returns the article with the given id, or nil when absent.
func (s *Store) GetArticle(id int64) (*core.Article, error) {
	return s.getArticle(`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
}

// GetArticleByURL returns the article with the given URL, or nil when absent.
func (s *Store) GetArticleByURL(url string) (*core.Article, error) {
	return s.getArticle(`SELECT `+articleColumns+` FROM articles WHERE url = ?`, url)
}

func (s *Store) getArticle(query string, arg any) (*core.Article, error) {
	row := s.db.QueryRow(query, arg)
	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan article: %w", err)
	}
	return article, nil
}

// UpdateArticleContent rewrites an article's content and extraction metadata
// in place (the FTS index follows via trigger).
func (s *Store) UpdateArticleContent(a *core.Article) error {
	codeLanguages, _ := json.Marshal(emptyIfNil(a.CodeLanguages))
	tags, _ := json.Marshal(emptyIfNil(a.Tags))

	_, err := s.db.Exec(`
		UPDATE articles SET title = ?, author = ?, content = ?, content_hash = ?,
			word_count = ?, reading_minutes = ?, image_url = ?, has_code_blocks = ?,
			code_languages = ?, site_name = ?, tags = ?, paywalled = ?, extractor = ?
		WHERE id = ?`,
		a.Title, a.Author, a.Content, a.ContentHash,
		a.WordCount, a.ReadingMinutes, a.ImageURL, a.HasCodeBlocks,
		string(codeLanguages), a.SiteName, string(tags), a.Paywalled, a.Extractor,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update article content: %w", err)
	}
	return nil
}

// UpdateArticleSourceURL records the resolved publisher URL for an
// aggregator-derived article.
func (s *Store) UpdateArticleSourceURL(id int64, sourceURL string) error {
	if _, err := s.db.Exec(`UPDATE articles SET source_url = ? WHERE id = ?`, sourceURL, id); err != nil {
		return fmt.Errorf("failed to update article source url: %w", err)
	}
	return nil
}

// UpdateArticleSummary writes the summarizer's output block.
func (s *Store) UpdateArticleSummary(id int64, summary core.Summary) error {
	keyPoints, _ := json.Marshal(emptyIfNil(summary.KeyPoints))
	_, err := s.db.Exec(`
		UPDATE articles SET summary_short = ?, summary_full = ?, key_points = ?,
			model_used = ?, summarized_at = ?
		WHERE id = ?`,
		summary.Headline, summary.SummaryText, string(keyPoints),
		summary.ModelTier, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update article summary: %w", err)
	}
	return nil
}

// SearchArticles runs a full-text query over titles and contents, ranked by
// relevance.
func (s *Store) SearchArticles(query string, limit int) ([]core.Article, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT `+prefixColumns("a", articleColumns)+`
		FROM articles_fts f
		JOIN articles a ON a.id = f.rowid
		WHERE articles_fts MATCH ?
		ORDER BY rank
		LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search articles: %w", err)
	}
	defer rows.Close()
	return collectArticles(rows)
}

// ArticleFilter selects articles for listing. A nil FeedID means all feeds.
// UnreadOnly and BookmarkedOnly consult the per-user state for UserID;
// Summarized filters on the presence of a summary when non-nil.
type ArticleFilter struct {
	FeedID         *int64
	UserID         int64
	UnreadOnly     bool
	BookmarkedOnly bool
	Summarized     *bool
	Limit          int
	Offset         int
	OldestFirst    bool
}

// ListArticles returns articles matching the filter, newest first by default.
func (s *Store) ListArticles(f ArticleFilter) ([]core.Article, error) {
	var conditions []string
	var args []any

	if f.FeedID != nil {
		conditions = append(conditions, "a.feed_id = ?")
		args = append(args, *f.FeedID)
	}
	// Library items belong to their creating user; shared articles have user_id 0.
	conditions = append(conditions, "(a.user_id = 0 OR a.user_id = ?)")
	args = append(args, f.UserID)

	if f.UnreadOnly {
		conditions = append(conditions, `NOT EXISTS (
			SELECT 1 FROM user_article_state st
			WHERE st.article_id = a.id AND st.user_id = ? AND st.is_read = 1)`)
		args = append(args, f.UserID)
	}
	if f.BookmarkedOnly {
		conditions = append(conditions, `EXISTS (
			SELECT 1 FROM user_article_state st
			WHERE st.article_id = a.id AND st.user_id = ? AND st.is_bookmarked = 1)`)
		args = append(args, f.UserID)
	}
	if f.Summarized != nil {
		if *f.Summarized {
			conditions = append(conditions, "a.summarized_at IS NOT NULL")
		} else {
			conditions = append(conditions, "a.summarized_at IS NULL")
		}
	}

	order := "DESC"
	if f.OldestFirst {
		order = "ASC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + prefixColumns("a", articleColumns) + ` FROM articles a`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY COALESCE(a.published_at, a.created_at) %s LIMIT ? OFFSET ?`, order)
	args = append(args, limit, f.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()
	return collectArticles(rows)
}

// ArticleGroup is a labeled slice of articles, used by the grouped listings.
type ArticleGroup struct {
	Key      string
	Articles []core.Article
}

// ArticlesGroupedByDate groups recent articles by calendar day (UTC), newest
// day first.
func (s *Store) ArticlesGroupedByDate(userID int64, limit int) ([]ArticleGroup, error) {
	articles, err := s.ListArticles(ArticleFilter{UserID: userID, Limit: limit})
	if err != nil {
		return nil, err
	}
	return groupArticles(articles, func(a core.Article) string {
		ts := a.CreatedAt
		if a.PublishedAt != nil {
			ts = *a.PublishedAt
		}
		return ts.UTC().Format("2006-01-02")
	}), nil
}

// ArticlesGroupedByFeed groups recent articles by feed name.
func (s *Store) ArticlesGroupedByFeed(userID int64, limit int) ([]ArticleGroup, error) {
	articles, err := s.ListArticles(ArticleFilter{UserID: userID, Limit: limit})
	if err != nil {
		return nil, err
	}
	names := map[int64]string{}
	feeds, err := s.ListFeeds(0)
	if err != nil {
		return nil, err
	}
	for _, f := range feeds {
		names[f.ID] = f.Name
	}
	return groupArticles(articles, func(a core.Article) string {
		return names[a.FeedID]
	}), nil
}

func groupArticles(articles []core.Article, key func(core.Article) string) []ArticleGroup {
	index := map[string]int{}
	var groups []ArticleGroup
	for _, a := range articles {
		k := key(a)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, ArticleGroup{Key: k})
		}
		groups[i].Articles = append(groups[i].Articles, a)
	}
	return groups
}

// GetDuplicateIDs returns the ids of articles that share a non-empty content
// hash with an earlier article. The earliest by published-at (falling back to
// created-at) is canonical and not reported.
func (s *Store) GetDuplicateIDs() ([]int64, error) {
	rows, err := s.db.Query(`
		SELECT a.id FROM articles a
		WHERE a.content_hash != ''
		  AND EXISTS (
			SELECT 1 FROM articles b
			WHERE b.content_hash = a.content_hash AND b.id != a.id
			  AND (COALESCE(b.published_at, b.created_at) < COALESCE(a.published_at, a.created_at)
			   OR (COALESCE(b.published_at, b.created_at) = COALESCE(a.published_at, a.created_at) AND b.id < a.id))
		)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate articles: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DuplicateGroups returns groups of articles sharing a content hash, each
// group ordered canonical-first.
func (s *Store) DuplicateGroups() ([]ArticleGroup, error) {
	rows, err := s.db.Query(`
		SELECT ` + articleColumns + ` FROM articles
		WHERE content_hash != '' AND content_hash IN (
			SELECT content_hash FROM articles WHERE content_hash != ''
			GROUP BY content_hash HAVING COUNT(*) > 1
		)
		ORDER BY content_hash, COALESCE(published_at, created_at), id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate groups: %w", err)
	}
	defer rows.Close()

	articles, err := collectArticles(rows)
	if err != nil {
		return nil, err
	}
	return groupArticles(articles, func(a core.Article) string { return a.ContentHash }), nil
}

// ArchiveOlderThan deletes articles older than the given number of days,
// optionally sparing bookmarked or unread ones. It returns the number of
// deleted rows.
func (s *Store) ArchiveOlderThan(days int, keepBookmarked, keepUnread bool) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	query := `DELETE FROM articles WHERE COALESCE(published_at, created_at) < ?`
	if keepBookmarked {
		query += ` AND id NOT IN (SELECT article_id FROM user_article_state WHERE is_bookmarked = 1)
			AND is_bookmarked = 0`
	}
	if keepUnread {
		query += ` AND id IN (SELECT article_id FROM user_article_state WHERE is_read = 1)`
	}
	res, err := s.db.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to archive articles: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func collectArticles(rows *sql.Rows) ([]core.Article, error) {
	var articles []core.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate articles: %w", err)
	}
	return articles, nil
}

func scanArticle(row rowScanner) (*core.Article, error) {
	var a core.Article
	var publishedAt, summarizedAt sql.NullTime
	var keyPoints, codeLanguages, tags string

	err := row.Scan(
		&a.ID, &a.FeedID, &a.URL, &a.SourceURL, &a.Title, &a.Author, &a.Content, &a.ContentHash,
		&publishedAt, &a.CreatedAt, &a.SummaryShort, &a.SummaryFull, &keyPoints, &a.ModelUsed,
		&summarizedAt, &a.WordCount, &a.ReadingMinutes, &a.ImageURL, &a.HasCodeBlocks,
		&codeLanguages, &a.SiteName, &tags, &a.Paywalled, &a.Extractor, &a.ContentType,
		&a.Filename, &a.StoragePath, &a.UserID, &a.IsRead, &a.IsBookmarked,
	)
	if err != nil {
		return nil, err
	}

	if publishedAt.Valid {
		t := publishedAt.Time
		a.PublishedAt = &t
	}
	if summarizedAt.Valid {
		t := summarizedAt.Time
		a.SummarizedAt = &t
	}
	_ = json.Unmarshal([]byte(keyPoints), &a.KeyPoints)
	_ = json.Unmarshal([]byte(codeLanguages), &a.CodeLanguages)
	_ = json.Unmarshal([]byte(tags), &a.Tags)
	return &a, nil
}

// prefixColumns qualifies each column in a comma-separated list with a table
// alias for use in joined queries.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
