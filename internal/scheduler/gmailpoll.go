package scheduler

import (
	"context"
	"fmt"
	"time"

	"skim/internal/core"
	"skim/internal/gmail"
	"skim/internal/logger"
)

const (
	gmailInitialDelay    = 5 * time.Second
	gmailDefaultInterval = 30 * time.Minute
)

// RunGmailPoller polls the configured Gmail label until ctx is cancelled or
// the poller is disabled. The interval is re-read from the stored config
// each cycle so changes take effect without a restart.
func (s *Scheduler) RunGmailPoller(ctx context.Context) error {
	if s.mailer == nil {
		return nil
	}

	// Let the process settle before the first poll.
	select {
	case <-time.After(gmailInitialDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		cfg, err := s.store.GetGmailConfig()
		if err != nil {
			return fmt.Errorf("failed to load gmail config: %w", err)
		}
		if cfg == nil || !cfg.Enabled {
			logger.Info("gmail polling disabled, stopping")
			return nil
		}

		if err := s.PollGmailOnce(ctx, cfg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("gmail poll cycle failed", "error", err)
		}

		interval := gmailDefaultInterval
		if cfg.PollIntervalMinutes > 0 {
			interval = time.Duration(cfg.PollIntervalMinutes) * time.Minute
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// PollGmailOnce runs a single poll cycle: refresh the token if needed, fetch
// new messages, persist them as newsletter articles, and advance the UID
// high-water mark.
func (s *Scheduler) PollGmailOnce(ctx context.Context, cfg *core.GmailConfig) error {
	changed, err := s.mailer.EnsureToken(ctx, cfg)
	if err != nil {
		return fmt.Errorf("token refresh failed: %w", err)
	}
	if changed {
		if err := s.store.UpdateGmailTokens(cfg.AccessToken, cfg.TokenExpiresAt); err != nil {
			logger.Warn("failed to persist refreshed gmail tokens", "error", err)
		}
	}

	newsletters, highest, err := s.mailer.FetchNew(ctx, cfg)
	if err != nil {
		return err
	}

	added := 0
	for i := range newsletters {
		ok, err := s.persistNewsletter(&newsletters[i])
		if err != nil {
			logger.Warn("failed to persist newsletter", "url", newsletters[i].SyntheticURL, "error", err)
			continue
		}
		if ok {
			added++
		}
	}
	if added > 0 {
		logger.Info("ingested newsletters", "count", added)
	}

	if highest > cfg.LastUID {
		if err := s.store.UpdateGmailLastUID(highest); err != nil {
			return fmt.Errorf("failed to advance gmail UID: %w", err)
		}
		cfg.LastUID = highest
	}
	return nil
}

// persistNewsletter stores one newsletter under its sender's synthetic feed.
// A duplicate synthetic URL is skipped silently.
func (s *Scheduler) persistNewsletter(n *gmail.Newsletter) (bool, error) {
	feedName := n.NewsletterName
	if feedName == "" {
		feedName = n.SenderEmail
	}
	feed, err := s.store.GetOrCreateFeed(core.NewsletterFeedScheme+n.SenderEmail, feedName)
	if err != nil {
		return false, fmt.Errorf("failed to resolve newsletter feed: %w", err)
	}

	date := n.Date
	article := &core.Article{
		FeedID:      feed.ID,
		URL:         n.SyntheticURL,
		Title:       n.Subject,
		Author:      n.SenderName,
		Content:     n.Content,
		PublishedAt: &date,
		SiteName:    n.NewsletterName,
		ContentType: core.ContentTypeNewsletter,
	}
	id, err := s.store.AddArticle(article)
	if err != nil {
		return false, err
	}
	return id != 0, nil
}
