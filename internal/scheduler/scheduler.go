// Package scheduler drives feed refreshes and the Gmail newsletter poller.
// A refresh walks every subscribed feed, ingests new items through the
// enhanced fetcher, evaluates notification rules, and optionally summarizes.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"skim/internal/core"
	"skim/internal/feeds"
	"skim/internal/fetch"
	"skim/internal/gmail"
	"skim/internal/llm"
	"skim/internal/logger"
	"skim/internal/notify"
	"skim/internal/resolver"
)

// minContentChars is the embedded-content threshold below which the item URL
// is fetched for the full article.
const minContentChars = 500

// Store is the subset of the article store the scheduler needs.
type Store interface {
	ListFeeds(userID int64) ([]core.Feed, error)
	UpdateFeedFetchStatus(id int64, fetchErr string) error
	GetOrCreateFeed(url, name string) (*core.Feed, error)
	GetArticle(id int64) (*core.Article, error)
	GetArticleByURL(url string) (*core.Article, error)
	AddArticle(a *core.Article) (int64, error)
	UpdateArticleSourceURL(id int64, sourceURL string) error
	UpdateArticleContent(a *core.Article) error
	UpdateArticleSummary(id int64, summary core.Summary) error
	GetSetting(key, fallback string) (string, error)
	GetGmailConfig() (*core.GmailConfig, error)
	UpdateGmailLastUID(uid uint32) error
	UpdateGmailTokens(accessToken string, expiresAt time.Time) error
	ArchiveOlderThan(days int, keepBookmarked, keepUnread bool) (int64, error)
}

// FeedParser fetches and parses one feed.
type FeedParser interface {
	FetchFeed(ctx context.Context, feedURL, etag, lastModified string) (*feeds.ParsedFeed, error)
}

// Fetcher fetches article pages with fallbacks.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string, policy fetch.Policy) (*fetch.Result, error)
}

// Resolver maps aggregator URLs to publisher URLs.
type Resolver interface {
	Resolve(ctx context.Context, rawURL, description string) resolver.Result
}

// Notifier evaluates new articles against notification rules.
type Notifier interface {
	Evaluate(article *core.Article) ([]notify.Match, error)
	Record(articleID int64, matches []notify.Match) error
}

// Summarizer produces article summaries.
type Summarizer interface {
	SummarizeArticle(ctx context.Context, article *core.Article, forceTier llm.ModelTier) (*core.Summary, error)
}

// Mailer polls Gmail for newsletter messages.
type Mailer interface {
	EnsureToken(ctx context.Context, cfg *core.GmailConfig) (bool, error)
	FetchNew(ctx context.Context, cfg *core.GmailConfig) ([]gmail.Newsletter, uint32, error)
}

// Options configures the scheduler.
type Options struct {
	// ArchiveAfterDays archives read, unbookmarked articles older than this
	// many days at the end of each refresh. Zero disables the sweep.
	ArchiveAfterDays int
}

// RefreshStats summarizes one refresh-all run.
type RefreshStats struct {
	Skipped        bool // A refresh was already running
	FeedsRefreshed int
	FeedsFailed    int
	NewArticles    int
}

// conditionalState holds the per-feed conditional GET validators. Kept in
// memory only; a restart just refetches once.
type conditionalState struct {
	etag         string
	lastModified string
}

// Scheduler coordinates refreshes and the Gmail poll loop.
type Scheduler struct {
	store      Store
	parser     FeedParser
	fetcher    Fetcher
	resolver   Resolver
	notifier   Notifier
	summarizer Summarizer
	mailer     Mailer
	options    Options

	mu                sync.Mutex
	refreshInProgress bool
	lastNotifications []notify.Match
	feedState         map[int64]conditionalState
}

// New creates a scheduler. fetcher, resolver, notifier, summarizer, and
// mailer may each be nil, disabling the corresponding step.
func New(store Store, parser FeedParser, fetcher Fetcher, res Resolver, notifier Notifier, summarizer Summarizer, mailer Mailer, options Options) *Scheduler {
	return &Scheduler{
		store:      store,
		parser:     parser,
		fetcher:    fetcher,
		resolver:   res,
		notifier:   notifier,
		summarizer: summarizer,
		mailer:     mailer,
		options:    options,
		feedState:  map[int64]conditionalState{},
	}
}

// RefreshAll refreshes every subscribed feed. A refresh already in progress
// makes this a no-op success with Skipped set. Newsletter pseudo-feeds are
// never fetched.
func (s *Scheduler) RefreshAll(ctx context.Context) (RefreshStats, error) {
	s.mu.Lock()
	if s.refreshInProgress {
		s.mu.Unlock()
		return RefreshStats{Skipped: true}, nil
	}
	s.refreshInProgress = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.refreshInProgress = false
		s.mu.Unlock()
	}()

	allFeeds, err := s.store.ListFeeds(0)
	if err != nil {
		return RefreshStats{}, fmt.Errorf("failed to list feeds: %w", err)
	}

	var stats RefreshStats
	for i := range allFeeds {
		feed := &allFeeds[i]
		if feed.IsNewsletter() || feed.IsStandalone() {
			continue
		}
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		added, err := s.RefreshFeed(ctx, feed)
		stats.NewArticles += added
		if err != nil {
			stats.FeedsFailed++
			logger.Warn("feed refresh failed", "feed", feed.URL, "error", err)
			if statusErr := s.store.UpdateFeedFetchStatus(feed.ID, err.Error()); statusErr != nil {
				logger.Warn("failed to record feed error", "feed", feed.URL, "error", statusErr)
			}
			continue
		}
		stats.FeedsRefreshed++
		if statusErr := s.store.UpdateFeedFetchStatus(feed.ID, ""); statusErr != nil {
			logger.Warn("failed to stamp feed refresh", "feed", feed.URL, "error", statusErr)
		}
	}

	if s.options.ArchiveAfterDays > 0 {
		if n, err := s.store.ArchiveOlderThan(s.options.ArchiveAfterDays, true, true); err != nil {
			logger.Warn("archive sweep failed", "error", err)
		} else if n > 0 {
			logger.Info("archived old articles", "count", n)
		}
	}
	return stats, nil
}

// RefreshFeed fetches one feed and ingests its new items in feed order.
// It returns the number of articles added.
func (s *Scheduler) RefreshFeed(ctx context.Context, feed *core.Feed) (int, error) {
	s.mu.Lock()
	state := s.feedState[feed.ID]
	s.mu.Unlock()

	parsed, err := s.parser.FetchFeed(ctx, feed.URL, state.etag, state.lastModified)
	if err != nil {
		return 0, err
	}
	if parsed.NotModified {
		return 0, nil
	}
	if parsed.ETag != "" || parsed.LastModified != "" {
		s.mu.Lock()
		s.feedState[feed.ID] = conditionalState{etag: parsed.ETag, lastModified: parsed.LastModified}
		s.mu.Unlock()
	}

	added := 0
	for i := range parsed.Items {
		if ctx.Err() != nil {
			return added, ctx.Err()
		}
		ok, err := s.ingestItem(ctx, feed, &parsed.Items[i])
		if err != nil {
			// One bad item does not stop the feed.
			logger.Warn("failed to ingest item", "feed", feed.URL, "url", parsed.Items[i].URL, "error", err)
			continue
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// ingestItem ingests one feed item: dedupe by URL, fetch the page when the
// embedded content is thin, insert, notify, and optionally summarize. It
// reports whether a new article was added.
func (s *Scheduler) ingestItem(ctx context.Context, feed *core.Feed, item *feeds.Item) (bool, error) {
	if item.URL == "" {
		return false, nil
	}
	existing, err := s.store.GetArticleByURL(item.URL)
	if err != nil {
		return false, fmt.Errorf("failed to check for existing article: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	article := &core.Article{
		FeedID:      feed.ID,
		URL:         item.URL,
		SourceURL:   item.SourceURL,
		Title:       item.Title,
		Author:      item.Author,
		Content:     item.Content,
		PublishedAt: item.PublishedAt,
		ImageURL:    item.ImageURL,
		Tags:        item.Categories,
	}
	// Aggregator links point at the aggregator, not the story; resolve the
	// publisher URL before fetching.
	if s.resolver != nil && article.SourceURL == "" && resolver.IsAggregator(item.URL) {
		if res := s.resolver.Resolve(ctx, item.URL, item.Content); res.SourceURL != "" {
			article.SourceURL = res.SourceURL
		} else if res.Err != "" {
			logger.Debug("aggregator resolution failed", "url", item.URL, "error", res.Err)
		}
	}
	fetchURL := item.URL
	if article.SourceURL != "" {
		fetchURL = article.SourceURL
	}
	if len(item.Content) < minContentChars && s.fetcher != nil {
		if result, err := s.fetcher.Fetch(ctx, fetchURL, fetch.Policy{}); err == nil {
			applyFetchResult(article, result)
		} else {
			// Thin feed content is still better than nothing.
			logger.Debug("content fetch failed, keeping feed content", "url", fetchURL, "error", err)
		}
	}
	if article.ContentHash == "" && article.Content != "" {
		article.ContentHash = fetch.HashContent(article.Content)
	}

	id, err := s.store.AddArticle(article)
	if err != nil {
		return false, fmt.Errorf("failed to store article: %w", err)
	}
	if id == 0 {
		// Raced with a concurrent insert of the same URL.
		return false, nil
	}
	article.ID = id

	if s.notifier != nil {
		matches, err := s.notifier.Evaluate(article)
		if err != nil {
			logger.Warn("notification evaluation failed", "url", item.URL, "error", err)
		} else if len(matches) > 0 {
			if err := s.notifier.Record(article.ID, matches); err != nil {
				logger.Warn("failed to record notification", "url", item.URL, "error", err)
			}
			s.mu.Lock()
			s.lastNotifications = append(s.lastNotifications, matches...)
			s.mu.Unlock()
		}
	}

	if s.summarizer != nil && s.autoSummarizeEnabled() {
		if summary, err := s.summarizer.SummarizeArticle(ctx, article, ""); err != nil {
			logger.Warn("auto-summarize failed", "url", item.URL, "error", err)
		} else if err := s.store.UpdateArticleSummary(article.ID, *summary); err != nil {
			logger.Warn("failed to store summary", "url", item.URL, "error", err)
		}
	}
	return true, nil
}

// FetchSourceArticle resolves an aggregator article's publisher URL if it is
// not known yet, fetches the publisher page, and persists the refreshed
// content. The returned article carries the new content.
func (s *Scheduler) FetchSourceArticle(ctx context.Context, articleID int64) (*core.Article, error) {
	article, err := s.store.GetArticle(articleID)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, fmt.Errorf("article %d not found", articleID)
	}

	if article.SourceURL == "" {
		if !resolver.IsAggregator(article.URL) {
			return nil, fmt.Errorf("article %d is not an aggregator link and has no source url", articleID)
		}
		if s.resolver == nil {
			return nil, fmt.Errorf("no resolver configured")
		}
		res := s.resolver.Resolve(ctx, article.URL, article.Content)
		if res.SourceURL == "" {
			if res.Err != "" {
				return nil, fmt.Errorf("failed to resolve source url: %s", res.Err)
			}
			return nil, fmt.Errorf("article %d looks like a self-post with no external source", articleID)
		}
		if err := s.store.UpdateArticleSourceURL(article.ID, res.SourceURL); err != nil {
			return nil, err
		}
		article.SourceURL = res.SourceURL
	}

	if s.fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured")
	}
	result, err := s.fetcher.Fetch(ctx, article.SourceURL, fetch.Policy{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source article: %w", err)
	}
	applyFetchResult(article, result)
	if article.ContentHash == "" && article.Content != "" {
		article.ContentHash = fetch.HashContent(article.Content)
	}
	if err := s.store.UpdateArticleContent(article); err != nil {
		return nil, err
	}
	return article, nil
}

func applyFetchResult(article *core.Article, result *fetch.Result) {
	if result.Title != "" {
		article.Title = result.Title
	}
	if result.Author != "" {
		article.Author = result.Author
	}
	article.Content = result.Content
	article.ContentHash = result.ContentHash
	article.WordCount = result.WordCount
	article.ReadingMinutes = result.ReadingMinutes
	article.HasCodeBlocks = result.HasCodeBlocks
	article.CodeLanguages = result.CodeLanguages
	article.SiteName = result.SiteName
	article.Paywalled = result.Paywalled
	article.Extractor = result.Extractor
	if result.ImageURL != "" {
		article.ImageURL = result.ImageURL
	}
	if result.PublishedAt != nil {
		article.PublishedAt = result.PublishedAt
	}
	if len(result.Tags) > 0 {
		article.Tags = append(article.Tags, result.Tags...)
	}
}

func (s *Scheduler) autoSummarizeEnabled() bool {
	value, err := s.store.GetSetting(core.SettingAutoSummarize, "false")
	if err != nil {
		logger.Warn("failed to read auto_summarize setting", "error", err)
		return false
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// DrainNotifications returns the matches accumulated since the last drain
// and clears the buffer.
func (s *Scheduler) DrainNotifications() []notify.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	matches := s.lastNotifications
	s.lastNotifications = nil
	return matches
}

// RunRefreshLoop refreshes all feeds periodically until ctx is cancelled.
// The interval is re-read from settings each cycle (default 30 minutes).
func (s *Scheduler) RunRefreshLoop(ctx context.Context) error {
	for {
		if _, err := s.RefreshAll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("scheduled refresh failed", "error", err)
		}
		interval := s.settingMinutes(core.SettingRefreshIntervalMinutes, 30)
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Scheduler) settingMinutes(key string, fallback int) time.Duration {
	value, err := s.store.GetSetting(key, "")
	if err != nil || value == "" {
		return time.Duration(fallback) * time.Minute
	}
	var minutes int
	if _, err := fmt.Sscanf(value, "%d", &minutes); err != nil || minutes <= 0 {
		return time.Duration(fallback) * time.Minute
	}
	return time.Duration(minutes) * time.Minute
}
