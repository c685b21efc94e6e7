// Package store is the single authoritative home for feeds, articles,
// per-user state, settings, notification rules and history, Gmail config and
// topic history. It maintains a full-text search index over articles and a
// content-hash deduplication index, all in one SQLite database file.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database. All operations are transactional at the
// operation level; SQLite serializes writes on the single connection.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at dbPath and ensures the
// schema exists. Foreign keys are enabled so feed deletion cascades to
// articles and article deletion cascades to per-user state.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps writes serialized and the FTS triggers atomic
	// with article mutations.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: dbPath}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// initialize creates the tables, the FTS index and its triggers.
func (s *Store) initialize() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS feeds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			category TEXT,
			last_fetched DATETIME,
			fetch_error TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS articles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
			url TEXT NOT NULL UNIQUE,
			source_url TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			author TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL DEFAULT '',
			published_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			summary_short TEXT NOT NULL DEFAULT '',
			summary_full TEXT NOT NULL DEFAULT '',
			key_points TEXT NOT NULL DEFAULT '[]',
			model_used TEXT NOT NULL DEFAULT '',
			summarized_at DATETIME,
			word_count INTEGER NOT NULL DEFAULT 0,
			reading_minutes INTEGER NOT NULL DEFAULT 0,
			image_url TEXT NOT NULL DEFAULT '',
			has_code_blocks INTEGER NOT NULL DEFAULT 0,
			code_languages TEXT NOT NULL DEFAULT '[]',
			site_name TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			paywalled INTEGER NOT NULL DEFAULT 0,
			extractor TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL DEFAULT '',
			filename TEXT NOT NULL DEFAULT '',
			storage_path TEXT NOT NULL DEFAULT '',
			user_id INTEGER NOT NULL DEFAULT 0,
			is_read INTEGER NOT NULL DEFAULT 0,
			is_bookmarked INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_feed_id ON articles(feed_id)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_content_hash ON articles(content_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles(created_at)`,

		`CREATE VIRTUAL TABLE IF NOT EXISTS articles_fts USING fts5(
			title, content,
			content='articles', content_rowid='id'
		)`,
		`CREATE TRIGGER IF NOT EXISTS articles_fts_insert AFTER INSERT ON articles BEGIN
			INSERT INTO articles_fts(rowid, title, content)
			VALUES (new.id, new.title, new.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS articles_fts_delete AFTER DELETE ON articles BEGIN
			INSERT INTO articles_fts(articles_fts, rowid, title, content)
			VALUES ('delete', old.id, old.title, old.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS articles_fts_update AFTER UPDATE OF title, content ON articles BEGIN
			INSERT INTO articles_fts(articles_fts, rowid, title, content)
			VALUES ('delete', old.id, old.title, old.content);
			INSERT INTO articles_fts(rowid, title, content)
			VALUES (new.id, new.title, new.content);
		END`,

		`CREATE TABLE IF NOT EXISTS user_article_state (
			user_id INTEGER NOT NULL,
			article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
			is_read INTEGER NOT NULL DEFAULT 0,
			read_at DATETIME,
			is_bookmarked INTEGER NOT NULL DEFAULT 0,
			bookmarked_at DATETIME,
			PRIMARY KEY (user_id, article_id)
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS notification_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			feed_id INTEGER REFERENCES feeds(id) ON DELETE CASCADE,
			keyword TEXT NOT NULL DEFAULT '',
			author TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT 'normal',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS notification_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
			rule_id INTEGER REFERENCES notification_rules(id) ON DELETE SET NULL,
			notified_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			dismissed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notification_history_article ON notification_history(article_id)`,

		`CREATE TABLE IF NOT EXISTS gmail_config (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			email TEXT NOT NULL,
			access_token TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			token_expires_at DATETIME,
			label TEXT NOT NULL DEFAULT 'Newsletters',
			last_uid INTEGER NOT NULL DEFAULT 0,
			poll_interval_minutes INTEGER NOT NULL DEFAULT 30,
			enabled INTEGER NOT NULL DEFAULT 1
		)`,

		`CREATE TABLE IF NOT EXISTS topic_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			label TEXT NOT NULL,
			label_hash TEXT NOT NULL,
			article_count INTEGER NOT NULL,
			article_ids TEXT NOT NULL DEFAULT '[]',
			clustered_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			period_start DATETIME NOT NULL,
			period_end DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_topic_history_hash ON topic_history(label_hash)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}
