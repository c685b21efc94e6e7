package store

import (
	"database/sql"
	"fmt"
	"time"

	"skim/internal/core"
)

// MarkRead sets the read flag for (userID, articleID), creating the state row
// lazily on first use.
func (s *Store) MarkRead(userID, articleID int64, read bool) error {
	var readAt any
	if read {
		readAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO user_article_state (user_id, article_id, is_read, read_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, article_id) DO UPDATE SET is_read = excluded.is_read, read_at = excluded.read_at`,
		userID, articleID, read, readAt,
	)
	if err != nil {
		return fmt.Errorf("failed to mark article read: %w", err)
	}
	return nil
}

// MarkReadBulk marks a set of articles read for a user.
func (s *Store) MarkReadBulk(userID int64, articleIDs []int64) error {
	if len(articleIDs) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	stmt, err := tx.Prepare(`
		INSERT INTO user_article_state (user_id, article_id, is_read, read_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(user_id, article_id) DO UPDATE SET is_read = 1, read_at = excluded.read_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare mark-read statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range articleIDs {
		if _, err := stmt.Exec(userID, id, now); err != nil {
			return fmt.Errorf("failed to mark article %d read: %w", id, err)
		}
	}
	return tx.Commit()
}

// MarkFeedRead marks every article in a feed read for a user.
func (s *Store) MarkFeedRead(userID, feedID int64) error {
	return s.markReadWhere(userID, "feed_id = ?", feedID)
}

// MarkAllRead marks every article visible to the user read.
func (s *Store) MarkAllRead(userID int64) error {
	return s.markReadWhere(userID, "(user_id = 0 OR user_id = ?)", userID)
}

func (s *Store) markReadWhere(userID int64, condition string, args ...any) error {
	query := fmt.Sprintf(`
		INSERT INTO user_article_state (user_id, article_id, is_read, read_at)
		SELECT ?, id, 1, ? FROM articles WHERE %s
		ON CONFLICT(user_id, article_id) DO UPDATE SET is_read = 1, read_at = excluded.read_at`,
		condition)
	allArgs := append([]any{userID, time.Now().UTC()}, args...)
	if _, err := s.db.Exec(query, allArgs...); err != nil {
		return fmt.Errorf("failed to mark articles read: %w", err)
	}
	return nil
}

// ToggleBookmark flips the bookmark flag for (userID, articleID) and returns
// the new state.
func (s *Store) ToggleBookmark(userID, articleID int64) (bool, error) {
	_, err := s.db.Exec(`
		INSERT INTO user_article_state (user_id, article_id, is_bookmarked, bookmarked_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(user_id, article_id) DO UPDATE SET
			is_bookmarked = NOT user_article_state.is_bookmarked,
			bookmarked_at = CASE WHEN user_article_state.is_bookmarked THEN NULL ELSE excluded.bookmarked_at END`,
		userID, articleID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to toggle bookmark: %w", err)
	}

	var bookmarked bool
	err = s.db.QueryRow(
		`SELECT is_bookmarked FROM user_article_state WHERE user_id = ? AND article_id = ?`,
		userID, articleID,
	).Scan(&bookmarked)
	if err != nil {
		return false, fmt.Errorf("failed to read bookmark state: %w", err)
	}
	return bookmarked, nil
}

// GetUserArticleState returns the state row for (userID, articleID), or nil
// when absent (meaning unread and not bookmarked).
func (s *Store) GetUserArticleState(userID, articleID int64) (*core.UserArticleState, error) {
	row := s.db.QueryRow(`
		SELECT user_id, article_id, is_read, read_at, is_bookmarked, bookmarked_at
		FROM user_article_state WHERE user_id = ? AND article_id = ?`,
		userID, articleID)

	var st core.UserArticleState
	var readAt, bookmarkedAt *time.Time
	err := row.Scan(&st.UserID, &st.ArticleID, &st.IsRead, &readAt, &st.IsBookmarked, &bookmarkedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user article state: %w", err)
	}
	st.ReadAt = readAt
	st.BookmarkedAt = bookmarkedAt
	return &st, nil
}

// UnreadCount returns the number of articles visible to the user without a
// read mark.
func (s *Store) UnreadCount(userID int64) (int, error) {
	return s.unreadCountWhere(userID, "(a.user_id = 0 OR a.user_id = ?)", userID)
}

// UnreadCountForFeed returns the unread count for one feed.
func (s *Store) UnreadCountForFeed(userID, feedID int64) (int, error) {
	return s.unreadCountWhere(userID, "a.feed_id = ?", feedID)
}

func (s *Store) unreadCountWhere(userID int64, condition string, args ...any) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM articles a
		WHERE %s AND NOT EXISTS (
			SELECT 1 FROM user_article_state st
			WHERE st.article_id = a.id AND st.user_id = ? AND st.is_read = 1
		)`, condition)
	allArgs := append(args, userID)

	var count int
	if err := s.db.QueryRow(query, allArgs...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread articles: %w", err)
	}
	return count, nil
}

// ReadStats summarizes a user's reading activity.
type ReadStats struct {
	TotalRead       int `json:"total_read"`
	TotalBookmarked int `json:"total_bookmarked"`
	ReadToday       int `json:"read_today"`
}

// GetReadStats returns reading statistics for a user.
func (s *Store) GetReadStats(userID int64) (*ReadStats, error) {
	stats := &ReadStats{}
	startOfDay := time.Now().UTC().Truncate(24 * time.Hour)

	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM user_article_state WHERE user_id = ? AND is_read = 1`, userID,
	).Scan(&stats.TotalRead)
	if err != nil {
		return nil, fmt.Errorf("failed to count read articles: %w", err)
	}
	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM user_article_state WHERE user_id = ? AND is_bookmarked = 1`, userID,
	).Scan(&stats.TotalBookmarked)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookmarks: %w", err)
	}
	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM user_article_state WHERE user_id = ? AND is_read = 1 AND read_at >= ?`,
		userID, startOfDay,
	).Scan(&stats.ReadToday)
	if err != nil {
		return nil, fmt.Errorf("failed to count today's reads: %w", err)
	}
	return stats, nil
}
