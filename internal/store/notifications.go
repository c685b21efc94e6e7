package store

import (
	"database/sql"
	"fmt"
	"time"

	"skim/internal/core"
)

// AddNotificationRule inserts a rule and returns its id. A rule without any
// filter is rejected.
func (s *Store) AddNotificationRule(r *core.NotificationRule) (int64, error) {
	if !r.HasFilter() {
		return 0, fmt.Errorf("notification rule must carry at least one filter")
	}
	priority := r.Priority
	if priority == "" {
		priority = core.PriorityNormal
	}
	res, err := s.db.Exec(`
		INSERT INTO notification_rules (name, feed_id, keyword, author, priority, enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Name, r.FeedID, r.Keyword, r.Author, string(priority), r.Enabled, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add notification rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get rule id: %w", err)
	}
	r.ID = id
	return id, nil
}

// GetNotificationRule returns the rule with the given id, or nil when absent.
func (s *Store) GetNotificationRule(id int64) (*core.NotificationRule, error) {
	row := s.db.QueryRow(`
		SELECT id, name, feed_id, keyword, author, priority, enabled, created_at
		FROM notification_rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan notification rule: %w", err)
	}
	return rule, nil
}

// ListNotificationRules returns rules, optionally only the enabled ones.
func (s *Store) ListNotificationRules(enabledOnly bool) ([]core.NotificationRule, error) {
	query := `SELECT id, name, feed_id, keyword, author, priority, enabled, created_at FROM notification_rules`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification rules: %w", err)
	}
	defer rows.Close()

	var rules []core.NotificationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// UpdateNotificationRule rewrites a rule in place.
func (s *Store) UpdateNotificationRule(r *core.NotificationRule) error {
	if !r.HasFilter() {
		return fmt.Errorf("notification rule must carry at least one filter")
	}
	_, err := s.db.Exec(`
		UPDATE notification_rules SET name = ?, feed_id = ?, keyword = ?, author = ?, priority = ?, enabled = ?
		WHERE id = ?`,
		r.Name, r.FeedID, r.Keyword, r.Author, string(r.Priority), r.Enabled, r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update notification rule: %w", err)
	}
	return nil
}

// DeleteNotificationRule removes a rule; history rows keep a null rule id.
func (s *Store) DeleteNotificationRule(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM notification_rules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete notification rule: %w", err)
	}
	return nil
}

// WasNotified reports whether the article ever produced a notification, for
// at-most-once suppression.
func (s *Store) WasNotified(articleID int64) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM notification_history WHERE article_id = ?`, articleID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check notification history: %w", err)
	}
	return count > 0, nil
}

// RecordNotification writes a history entry for (article, rule).
func (s *Store) RecordNotification(articleID int64, ruleID *int64) error {
	_, err := s.db.Exec(`
		INSERT INTO notification_history (article_id, rule_id, notified_at) VALUES (?, ?, ?)`,
		articleID, ruleID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

// ListNotificationHistory returns recent history entries, newest first.
func (s *Store) ListNotificationHistory(limit int) ([]core.NotificationHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, article_id, rule_id, notified_at, dismissed
		FROM notification_history ORDER BY notified_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification history: %w", err)
	}
	defer rows.Close()

	var entries []core.NotificationHistoryEntry
	for rows.Next() {
		var e core.NotificationHistoryEntry
		var ruleID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.ArticleID, &ruleID, &e.NotifiedAt, &e.Dismissed); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if ruleID.Valid {
			id := ruleID.Int64
			e.RuleID = &id
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DismissNotification marks a history entry dismissed.
func (s *Store) DismissNotification(id int64) error {
	if _, err := s.db.Exec(`UPDATE notification_history SET dismissed = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to dismiss notification: %w", err)
	}
	return nil
}

func scanRule(row rowScanner) (*core.NotificationRule, error) {
	var r core.NotificationRule
	var feedID sql.NullInt64
	var priority string
	err := row.Scan(&r.ID, &r.Name, &feedID, &r.Keyword, &r.Author, &priority, &r.Enabled, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if feedID.Valid {
		id := feedID.Int64
		r.FeedID = &id
	}
	r.Priority = core.Priority(priority)
	return &r, nil
}
