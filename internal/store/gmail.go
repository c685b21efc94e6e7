package store

import (
	"database/sql"
	"fmt"
	"time"

	"skim/internal/core"
)

// SaveGmailConfig upserts the singleton Gmail poller configuration.
func (s *Store) SaveGmailConfig(cfg *core.GmailConfig) error {
	label := cfg.Label
	if label == "" {
		label = "Newsletters"
	}
	interval := cfg.PollIntervalMinutes
	if interval <= 0 {
		interval = 30
	}
	_, err := s.db.Exec(`
		INSERT INTO gmail_config (id, email, access_token, refresh_token, token_expires_at, label, last_uid, poll_interval_minutes, enabled)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expires_at = excluded.token_expires_at,
			label = excluded.label,
			last_uid = excluded.last_uid,
			poll_interval_minutes = excluded.poll_interval_minutes,
			enabled = excluded.enabled`,
		cfg.Email, cfg.AccessToken, cfg.RefreshToken, cfg.TokenExpiresAt, label, cfg.LastUID, interval, cfg.Enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to save gmail config: %w", err)
	}
	return nil
}

// GetGmailConfig returns the Gmail config, or nil when none is stored.
func (s *Store) GetGmailConfig() (*core.GmailConfig, error) {
	row := s.db.QueryRow(`
		SELECT email, access_token, refresh_token, token_expires_at, label, last_uid, poll_interval_minutes, enabled
		FROM gmail_config WHERE id = 1`)

	var cfg core.GmailConfig
	var expiresAt sql.NullTime
	err := row.Scan(&cfg.Email, &cfg.AccessToken, &cfg.RefreshToken, &expiresAt, &cfg.Label,
		&cfg.LastUID, &cfg.PollIntervalMinutes, &cfg.Enabled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan gmail config: %w", err)
	}
	if expiresAt.Valid {
		cfg.TokenExpiresAt = expiresAt.Time
	}
	return &cfg, nil
}

// DeleteGmailConfig removes the stored configuration.
func (s *Store) DeleteGmailConfig() error {
	if _, err := s.db.Exec(`DELETE FROM gmail_config WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to delete gmail config: %w", err)
	}
	return nil
}

// UpdateGmailLastUID records the highest processed message UID.
func (s *Store) UpdateGmailLastUID(uid uint32) error {
	if _, err := s.db.Exec(`UPDATE gmail_config SET last_uid = ? WHERE id = 1`, uid); err != nil {
		return fmt.Errorf("failed to update gmail last uid: %w", err)
	}
	return nil
}

// UpdateGmailTokens records a refreshed access token and its expiry.
func (s *Store) UpdateGmailTokens(accessToken string, expiresAt time.Time) error {
	if _, err := s.db.Exec(`UPDATE gmail_config SET access_token = ?, token_expires_at = ? WHERE id = 1`, accessToken, expiresAt); err != nil {
		return fmt.Errorf("failed to update gmail tokens: %w", err)
	}
	return nil
}
