package store

import (
	"database/sql"
	"fmt"
	"time"

	"skim/internal/core"
)

// AddFeed inserts a feed and returns its id. Adding an existing URL returns
// an error; feed URLs are unique.
func (s *Store) AddFeed(url, name, category string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO feeds (url, name, category, created_at) VALUES (?, ?, NULLIF(?, ''), ?)`,
		url, name, category, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add feed: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get feed id: %w", err)
	}
	return id, nil
}

// GetFeed returns the feed with the given id, or nil when absent.
func (s *Store) GetFeed(id int64) (*core.Feed, error) {
	return s.getFeed(`SELECT id, url, name, category, last_fetched, fetch_error, created_at FROM feeds WHERE id = ?`, id)
}

// GetFeedByURL returns the feed with the given URL, or nil when absent.
func (s *Store) GetFeedByURL(url string) (*core.Feed, error) {
	return s.getFeed(`SELECT id, url, name, category, last_fetched, fetch_error, created_at FROM feeds WHERE url = ?`, url)
}

func (s *Store) getFeed(query string, arg any) (*core.Feed, error) {
	row := s.db.QueryRow(query, arg)
	feed, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan feed: %w", err)
	}
	return feed, nil
}

// GetOrCreateFeed returns the feed with the given URL, creating it with the
// given name when absent. Used for the standalone and newsletter pseudo-feeds.
func (s *Store) GetOrCreateFeed(url, name string) (*core.Feed, error) {
	if feed, err := s.GetFeedByURL(url); err != nil {
		return nil, err
	} else if feed != nil {
		return feed, nil
	}
	id, err := s.AddFeed(url, name, "")
	if err != nil {
		return nil, err
	}
	return s.GetFeed(id)
}

// ListFeeds returns all feeds ordered by name. When userID is non-zero each
// feed's UnreadCount is populated from the per-user state relation; articles
// without a state row count as unread.
func (s *Store) ListFeeds(userID int64) ([]core.Feed, error) {
	rows, err := s.db.Query(`SELECT id, url, name, category, last_fetched, fetch_error, created_at FROM feeds ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []core.Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed: %w", err)
		}
		feeds = append(feeds, *feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feeds: %w", err)
	}

	if userID != 0 {
		for i := range feeds {
			count, err := s.UnreadCountForFeed(userID, feeds[i].ID)
			if err != nil {
				return nil, err
			}
			feeds[i].UnreadCount = count
		}
	}
	return feeds, nil
}

// FeedUpdate describes a feed mutation. Nil fields are left unchanged;
// ClearCategory removes the category regardless of Category.
type FeedUpdate struct {
	Name          *string
	Category      *string
	ClearCategory bool
}

// UpdateFeed applies the given update to a feed.
func (s *Store) UpdateFeed(id int64, update FeedUpdate) error {
	if update.Name != nil {
		if _, err := s.db.Exec(`UPDATE feeds SET name = ? WHERE id = ?`, *update.Name, id); err != nil {
			return fmt.Errorf("failed to update feed name: %w", err)
		}
	}
	if update.ClearCategory {
		if _, err := s.db.Exec(`UPDATE feeds SET category = NULL WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to clear feed category: %w", err)
		}
	} else if update.Category != nil {
		if _, err := s.db.Exec(`UPDATE feeds SET category = ? WHERE id = ?`, *update.Category, id); err != nil {
			return fmt.Errorf("failed to update feed category: %w", err)
		}
	}
	return nil
}

// UpdateFeedFetchStatus records the outcome of a refresh attempt. An empty
// fetchErr marks a successful fetch and stamps last_fetched; otherwise the
// error text is recorded and last_fetched is left alone.
func (s *Store) UpdateFeedFetchStatus(id int64, fetchErr string) error {
	var err error
	if fetchErr == "" {
		_, err = s.db.Exec(`UPDATE feeds SET last_fetched = ?, fetch_error = NULL WHERE id = ?`, time.Now().UTC(), id)
	} else {
		_, err = s.db.Exec(`UPDATE feeds SET fetch_error = ? WHERE id = ?`, fetchErr, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update feed fetch status: %w", err)
	}
	return nil
}

// DeleteFeed removes a feed; its articles cascade.
func (s *Store) DeleteFeed(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM feeds WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}
	return nil
}

// DeleteAllFeeds removes every feed (articles cascade). When keepNewsletters
// is true, newsletter pseudo-feeds are preserved.
func (s *Store) DeleteAllFeeds(keepNewsletters bool) (int64, error) {
	query := `DELETE FROM feeds`
	if keepNewsletters {
		query += ` WHERE url NOT LIKE 'newsletter://%'`
	}
	res, err := s.db.Exec(query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete feeds: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*core.Feed, error) {
	var feed core.Feed
	var category, fetchError sql.NullString
	var lastFetched sql.NullTime

	err := row.Scan(&feed.ID, &feed.URL, &feed.Name, &category, &lastFetched, &fetchError, &feed.CreatedAt)
	if err != nil {
		return nil, err
	}
	feed.Category = category.String
	feed.FetchError = fetchError.String
	if lastFetched.Valid {
		t := lastFetched.Time
		feed.LastFetched = &t
	}
	return &feed, nil
}
