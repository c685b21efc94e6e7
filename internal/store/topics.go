package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"skim/internal/core"
)

// LabelHash normalizes a topic label (lower-cased, whitespace collapsed) and
// hashes it so trend queries match labels across runs.
func LabelHash(label string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(label)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// SaveTopicRun persists the topics of one clustering run.
func (s *Store) SaveTopicRun(entries []core.TopicHistoryEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, e := range entries {
		ids := e.ArticleIDs
		if ids == nil {
			ids = []int64{}
		}
		idsJSON, _ := json.Marshal(ids)
		hash := e.LabelHash
		if hash == "" {
			hash = LabelHash(e.Label)
		}
		clusteredAt := e.ClusteredAt
		if clusteredAt.IsZero() {
			clusteredAt = now
		}
		_, err := tx.Exec(`
			INSERT INTO topic_history (label, label_hash, article_count, article_ids, clustered_at, period_start, period_end)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.Label, hash, len(ids), string(idsJSON), clusteredAt, e.PeriodStart, e.PeriodEnd,
		)
		if err != nil {
			return fmt.Errorf("failed to save topic entry: %w", err)
		}
	}
	return tx.Commit()
}

// TopicTrend aggregates how often a topic appeared over a window.
type TopicTrend struct {
	Label        string    `json:"label"`
	LabelHash    string    `json:"label_hash"`
	Occurrences  int       `json:"occurrences"`
	ArticleCount int       `json:"article_count"`
	LastSeen     time.Time `json:"last_seen"`
}

// GetTopicTrends returns topics seen since the given time, most frequent
// first.
func (s *Store) GetTopicTrends(since time.Time) ([]TopicTrend, error) {
	rows, err := s.db.Query(`
		SELECT label_hash, MAX(label), COUNT(*), SUM(article_count), MAX(clustered_at)
		FROM topic_history
		WHERE clustered_at >= ?
		GROUP BY label_hash
		ORDER BY COUNT(*) DESC, SUM(article_count) DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query topic trends: %w", err)
	}
	defer rows.Close()

	var trends []TopicTrend
	for rows.Next() {
		var t TopicTrend
		var lastSeen string
		if err := rows.Scan(&t.LabelHash, &t.Label, &t.Occurrences, &t.ArticleCount, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan topic trend: %w", err)
		}
		t.LastSeen = parseSQLiteTime(lastSeen)
		trends = append(trends, t)
	}
	return trends, rows.Err()
}

// parseSQLiteTime parses a timestamp coming back from an aggregate expression,
// where the driver returns raw text instead of a time value.
func parseSQLiteTime(value string) time.Time {
	layouts := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		time.RFC3339Nano,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
