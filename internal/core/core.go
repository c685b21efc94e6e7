package core

import (
	"strings"
	"time"
)

// Reserved feed URL schemes. The standalone feed holds library items; each
// newsletter sender gets its own synthetic feed keyed by email address.
const (
	StandaloneFeedURL    = "local://standalone"
	NewsletterFeedScheme = "newsletter://"
)

// Content type tags for library items.
const (
	ContentTypeURL        = "url"
	ContentTypePDF        = "pdf"
	ContentTypeDOCX       = "docx"
	ContentTypeTXT        = "txt"
	ContentTypeMD         = "md"
	ContentTypeHTML       = "html"
	ContentTypeNewsletter = "newsletter"
)

// Priority is the notification priority bucket.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Rank maps a priority to its sort order (high sorts first).
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// Feed represents a subscribed RSS/Atom feed, or one of the reserved
// pseudo-feeds (standalone library, per-sender newsletter feeds).
type Feed struct {
	ID          int64      `json:"id"`           // Internal numeric identifier
	URL         string     `json:"url"`          // Feed source URL, unique
	Name        string     `json:"name"`         // Display name
	Category    string     `json:"category"`     // Optional category (empty when unset)
	LastFetched *time.Time `json:"last_fetched"` // Last successful refresh
	FetchError  string     `json:"fetch_error"`  // Last fetch error text (empty when healthy)
	CreatedAt   time.Time  `json:"created_at"`   // When the feed was added
	UnreadCount int        `json:"unread_count"` // Per-user unread count, populated by list queries
}

// IsStandalone reports whether this is the reserved library feed.
func (f Feed) IsStandalone() bool {
	return f.URL == StandaloneFeedURL
}

// IsNewsletter reports whether this is a synthetic newsletter feed.
func (f Feed) IsNewsletter() bool {
	return strings.HasPrefix(f.URL, NewsletterFeedScheme)
}

// Article represents a normalized, optionally enriched article. Articles are
// created by feed ingestion, library intake, Gmail polling, or manually, and
// are mutated in place by enrichment.
type Article struct {
	ID          int64      `json:"id"`           // Internal numeric identifier
	FeedID      int64      `json:"feed_id"`      // Owning feed
	URL         string     `json:"url"`          // Canonical URL, unique
	SourceURL   string     `json:"source_url"`   // Underlying publisher URL for aggregator items
	Title       string     `json:"title"`        //
	Author      string     `json:"author"`       //
	Content     string     `json:"content"`      // Post-extraction HTML-ish body
	ContentHash string     `json:"content_hash"` // Short hash for cross-feed deduplication
	PublishedAt *time.Time `json:"published_at"` //
	CreatedAt   time.Time  `json:"created_at"`   //

	// Enrichment fields written by the summarizer.
	SummaryShort string     `json:"summary_short"` // One-line headline summary
	SummaryFull  string     `json:"summary_full"`  // Full paragraph summary
	KeyPoints    []string   `json:"key_points"`    //
	ModelUsed    string     `json:"model_used"`    // Model tier used for generation
	SummarizedAt *time.Time `json:"summarized_at"` //

	// Extraction-derived metadata.
	WordCount      int      `json:"word_count"`      //
	ReadingMinutes int      `json:"reading_minutes"` // Estimated reading time
	ImageURL       string   `json:"image_url"`       // Featured image
	HasCodeBlocks  bool     `json:"has_code_blocks"` //
	CodeLanguages  []string `json:"code_languages"`  //
	SiteName       string   `json:"site_name"`       //
	Tags           []string `json:"tags"`            // Categories/tags from the source page
	Paywalled      bool     `json:"paywalled"`       // Source page appeared paywalled
	Extractor      string   `json:"extractor"`       // Identifier of the extractor that produced this content

	// Library item fields.
	ContentType string `json:"content_type"` // url|pdf|docx|txt|md|html|newsletter (empty for feed articles)
	Filename    string `json:"filename"`     // Original upload filename
	StoragePath string `json:"storage_path"` // Local path of the persisted upload
	UserID      int64  `json:"user_id"`      // Owning user for library items (0 = shared)

	// Legacy single-user flags; authoritative per-user state lives in
	// UserArticleState.
	IsRead       bool `json:"is_read"`
	IsBookmarked bool `json:"is_bookmarked"`
}

// UserArticleState holds per-user read/bookmark state for a shared article.
// Absence of a row is interpreted as unread and not bookmarked.
type UserArticleState struct {
	UserID       int64      `json:"user_id"`
	ArticleID    int64      `json:"article_id"`
	IsRead       bool       `json:"is_read"`
	ReadAt       *time.Time `json:"read_at"`
	IsBookmarked bool       `json:"is_bookmarked"`
	BookmarkedAt *time.Time `json:"bookmarked_at"`
}

// Recognized setting keys.
const (
	SettingRefreshIntervalMinutes = "refresh_interval_minutes"
	SettingAutoSummarize          = "auto_summarize"
	SettingMarkReadOnOpen         = "mark_read_on_open"
	SettingDefaultModel           = "default_model"
	SettingLLMProvider            = "llm_provider"
)

// Setting is a key-value configuration pair persisted in the store.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NotificationRule matches newly ingested articles. A rule must carry at
// least one filter; a rule with only a feed filter matches every new article
// in that feed.
type NotificationRule struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	FeedID    *int64    `json:"feed_id"`  // Optional feed filter
	Keyword   string    `json:"keyword"`  // Case-insensitive substring against title/summary/content
	Author    string    `json:"author"`   // Case-insensitive substring against author
	Priority  Priority  `json:"priority"` //
	Enabled   bool      `json:"enabled"`  //
	CreatedAt time.Time `json:"created_at"`
}

// HasFilter reports whether the rule carries at least one usable filter.
func (r NotificationRule) HasFilter() bool {
	return r.FeedID != nil || r.Keyword != "" || r.Author != ""
}

// NotificationHistoryEntry records that an article triggered a rule. At most
// one entry is written per article.
type NotificationHistoryEntry struct {
	ID         int64     `json:"id"`
	ArticleID  int64     `json:"article_id"`
	RuleID     *int64    `json:"rule_id"` // Nil when the triggering rule was deleted
	NotifiedAt time.Time `json:"notified_at"`
	Dismissed  bool      `json:"dismissed"`
}

// GmailConfig is the singleton configuration for the Gmail newsletter poller.
type GmailConfig struct {
	Email               string    `json:"email"`
	AccessToken         string    `json:"access_token"`
	RefreshToken        string    `json:"refresh_token"`
	TokenExpiresAt      time.Time `json:"token_expires_at"`
	Label               string    `json:"label"` // Monitored label, default "Newsletters"
	LastUID             uint32    `json:"last_uid"`
	PollIntervalMinutes int       `json:"poll_interval_minutes"`
	Enabled             bool      `json:"enabled"`
}

// TopicHistoryEntry is a persisted clustering run used for trend queries.
type TopicHistoryEntry struct {
	ID           int64     `json:"id"`
	Label        string    `json:"label"`
	LabelHash    string    `json:"label_hash"` // Hash of the normalized label
	ArticleCount int       `json:"article_count"`
	ArticleIDs   []int64   `json:"article_ids"`
	ClusteredAt  time.Time `json:"clustered_at"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
}

// Summary is the result of the two-step summarization pipeline.
type Summary struct {
	Headline    string    `json:"headline"`     // Short one-line summary
	SummaryText string    `json:"summary"`      // Full flowing summary
	KeyPoints   []string  `json:"key_points"`   // Up to five distinct key points
	ContentType string    `json:"content_type"` // news|analysis|tutorial|review|research|newsletter
	ModelTier   string    `json:"model_tier"`   // Tier used for the generation step
	GeneratedAt time.Time `json:"generated_at"`
}
