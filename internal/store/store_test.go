package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"skim/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "skim.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func addTestFeed(t *testing.T, s *Store, url, name string) int64 {
	t.Helper()
	id, err := s.AddFeed(url, name, "")
	if err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}
	return id
}

func addTestArticle(t *testing.T, s *Store, feedID int64, url, title, content string) int64 {
	t.Helper()
	id, err := s.AddArticle(&core.Article{FeedID: feedID, URL: url, Title: title, Content: content})
	if err != nil {
		t.Fatalf("AddArticle failed: %v", err)
	}
	if id == 0 {
		t.Fatalf("AddArticle returned 0 for new URL %s", url)
	}
	return id
}

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "skim.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file should be created")
	}
}

func TestAddArticle_DuplicateURL(t *testing.T) {
	s := newTestStore(t)
	feedID := addTestFeed(t, s, "https://example.com/feed.xml", "Example")

	first := addTestArticle(t, s, feedID, "https://example.com/post", "First", "body")

	id, err := s.AddArticle(&core.Article{FeedID: feedID, URL: "https://example.com/post", Title: "Second"})
	if err != nil {
		t.Fatalf("duplicate AddArticle should not error: %v", err)
	}
	if id != 0 {
		t.Errorf("duplicate AddArticle should return 0, got %d", id)
	}

	got, err := s.GetArticle(first)
	if err != nil {
		t.Fatalf("GetArticle failed: %v", err)
	}
	if got.Title != "First" {
		t.Errorf("original article should be untouched, title = %q", got.Title)
	}
}

func TestSearchArticles_FTS(t *testing.T) {
	s := newTestStore(t)
	feedID := addTestFeed(t, s, "https://example.com/feed.xml", "Example")

	addTestArticle(t, s, feedID, "https://example.com/a", "Distributed consensus explained", "Raft and Paxos in practice.")
	addTestArticle(t, s, feedID, "https://example.com/b", "Gardening tips", "Water your tomatoes daily.")

	results, err := s.SearchArticles("consensus", 10)
	if err != nil {
		t.Fatalf("SearchArticles failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Title != "Distributed consensus explained" {
		t.Errorf("unexpected match: %q", results[0].Title)
	}
}

func TestSearchArticles_IndexFollowsUpdate(t *testing.T) {
	s := newTestStore(t)
	feedID := addTestFeed(t, s, "https://example.com/feed.xml", "Example")
	id := addTestArticle(t, s, feedID, "https://example.com/a", "Old title", "old body")

	a, err := s.GetArticle(id)
	if err != nil {
		t.Fatalf("GetArticle failed: %v", err)
	}
	a.Title = "Quantum networking primer"
	a.Content = "entanglement distribution"
	if err := s.UpdateArticleContent(a); err != nil {
		t.Fatalf("UpdateArticleContent failed: %v", err)
	}

	results, err := s.SearchArticles("quantum", 10)
	if err != nil {
		t.Fatalf("SearchArticles failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected updated article in index, got %d results", len(results))
	}

	stale, err := s.SearchArticles("old", 10)
	if err != nil {
		t.Fatalf("SearchArticles failed: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("stale terms should no longer match, got %d results", len(stale))
	}
}

func TestUnreadCount_AbsentStateIsUnread(t *testing.T) {
	s := newTestStore(t)
	feedID := addTestFeed(t, s, "https://example.com/feed.xml", "Example")

	a1 := addTestArticle(t, s, feedID, "https://example.com/1", "One", "x")
	addTestArticle(t, s, feedID, "https://example.com/2", "Two", "x")
	addTestArticle(t, s, feedID, "https://example.com/3", "Three", "x")

	count, err := s.UnreadCount(1)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 unread with no state rows, got %d", count)
	}

	if err := s.MarkRead(1, a1, true); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	count, err = s.UnreadCount(1)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 unread after marking one read, got %d", count)
	}

	// Another user's reading does not affect this user's count.
	count, err = s.UnreadCount(2)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 unread for second user, got %d", count)
	}

	if err := s.MarkRead(1, a1, false); err != nil {
		t.Fatalf("MarkRead(false) failed: %v", err)
	}
	count, err = s.UnreadCount(1)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 unread after unmarking, got %d", count)
	}
}

func TestMarkFeedRead(t *testing.T) {
	s := newTestStore(t)
	f1 := addTestFeed(t, s, "https://a.example/feed.xml", "A")
	f2 := addTestFeed(t, s, "https://b.example/feed.xml", "B")
	addTestArticle(t, s, f1, "https://a.example/1", "A1", "x")
	addTestArticle(t, s, f1, "https://a.example/2", "A2", "x")
	addTestArticle(t, s, f2, "https://b.example/1", "B1", "x")

	if err := s.MarkFeedRead(1, f1); err != nil {
		t.Fatalf("MarkFeedRead failed: %v", err)
	}

	count, err := s.UnreadCountForFeed(1, f1)
	if err != nil {
		t.Fatalf("UnreadCountForFeed failed: %v", err)
	}
	if count != 0 {
		t.Errorf("feed A should have 0 unread, got %d", count)
	}
	count, err = s.UnreadCountForFeed(1, f2)
	if err != nil {
		t.Fatalf("UnreadCountForFeed failed: %v", err)
	}
	if count != 1 {
		t.Errorf("feed B should have 1 unread, got %d", count)
	}
}

func TestToggleBookmark(t *testing.T) {
	s := newTestStore(t)
	feedID := addTestFeed(t, s, "https://example.com/feed.xml", "Example")
	id := addTestArticle(t, s, feedID, "https://example.com/1", "One", "x")

	on, err := s.ToggleBookmark(1, id)
	if err != nil {
		t.Fatalf("ToggleBookmark failed: %v", err)
	}
	if !on {
		t.Error("first toggle should bookmark")
	}
	off, err := s.ToggleBookmark(1, id)
	if err != nil {
		t.Fatalf("ToggleBookmark failed: %v", err)
	}
	if off {
		t.Error("second toggle should unbookmark")
	}
}

func TestListArticles_Filters(t *testing.T) {
	s := newTestStore(t)
	feedID := addTestFeed(t, s, "https://example.com/feed.xml", "Example")
	a1 := addTestArticle(t, s, feedID, "https://example.com/1", "One", "x")
	a2 := addTestArticle(t, s, feedID, "https://example.com/2", "Two", "x")

	if err := s.MarkRead(1, a1, true); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if _, err := s.ToggleBookmark(1, a2); err != nil {
		t.Fatalf("ToggleBookmark failed: %v", err)
	}

	unread, err := s.ListArticles(ArticleFilter{UserID: 1, UnreadOnly: true})
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	if len(unread) != 1 || unread[0].ID != a2 {
		t.Errorf("unread filter should return only article %d, got %v", a2, unread)
	}

	bookmarked, err := s.ListArticles(ArticleFilter{UserID: 1, BookmarkedOnly: true})
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	if len(bookmarked) != 1 || bookmarked[0].ID != a2 {
		t.Errorf("bookmark filter should return only article %d", a2)
	}

	summarized := true
	none, err := s.ListArticles(ArticleFilter{UserID: 1, Summarized: &summarized})
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("no article is summarized yet, got %d", len(none))
	}

	if err := s.UpdateArticleSummary(a1, core.Summary{Headline: "h", SummaryText: "s", ModelTier: "fast"}); err != nil {
		t.Fatalf("UpdateArticleSummary failed: %v", err)
	}
	some, err := s.ListArticles(ArticleFilter{UserID: 1, Summarized: &summarized})
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	if len(some) != 1 || some[0].ID != a1 {
		t.Errorf("summarized filter should return article %d", a1)
	}
	if some[0].SummaryShort != "h" || some[0].ModelUsed != "fast" {
		t.Errorf("summary fields not persisted: %+v", some[0])
	}
}

func TestListArticles_UserVisibility(t *testing.T) {
	s := newTestStore(t)
	feedID := addTestFeed(t, s, core.StandaloneFeedURL, "Library")

	if _, err := s.AddArticle(&core.Article{FeedID: feedID, URL: "https://example.com/mine", Title: "Mine", UserID: 1}); err != nil {
		t.Fatalf("AddArticle failed: %v", err)
	}
	if _, err := s.AddArticle(&core.Article{FeedID: feedID, URL: "https://example.com/shared", Title: "Shared"}); err != nil {
		t.Fatalf("AddArticle failed: %v", err)
	}

	mine, err := s.ListArticles(ArticleFilter{UserID: 1})
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("owner should see private and shared articles, got %d", len(mine))
	}

	other, err := s.ListArticles(ArticleFilter{UserID: 2})
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	if len(other) != 1 || other[0].Title != "Shared" {
		t.Errorf("other user should only see the shared article, got %v", other)
	}
}

func TestGetDuplicateIDs_CanonicalEarliest(t *testing.T) {
	s := newTestStore(t)
	feedID := addTestFeed(t, s, "https://example.com/feed.xml", "Example")

	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	canonical, err := s.AddArticle(&core.Article{
		FeedID: feedID, URL: "https://example.com/orig", Title: "Orig",
		ContentHash: "hash1", PublishedAt: &early,
	})
	if err != nil {
		t.Fatalf("AddArticle failed: %v", err)
	}
	dup, err := s.AddArticle(&core.Article{
		FeedID: feedID, URL: "https://mirror.example/copy", Title: "Copy",
		ContentHash: "hash1", PublishedAt: &late,
	})
	if err != nil {
		t.Fatalf("AddArticle failed: %v", err)
	}
	// Empty hashes never pair up.
	if _, err := s.AddArticle(&core.Article{FeedID: feedID, URL: "https://example.com/nohash", Title: "NoHash"}); err != nil {
		t.Fatalf("AddArticle failed: %v", err)
	}

	ids, err := s.GetDuplicateIDs()
	if err != nil {
		t.Fatalf("GetDuplicateIDs failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 duplicate, got %v", ids)
	}
	if ids[0] != dup {
		t.Errorf("duplicate should be the later article %d, got %d", dup, ids[0])
	}

	groups, err := s.DuplicateGroups()
	if err != nil {
		t.Fatalf("DuplicateGroups failed: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Articles) != 2 {
		t.Fatalf("expected one group of two, got %v", groups)
	}
	if groups[0].Articles[0].ID != canonical {
		t.Errorf("group should lead with canonical %d, got %d", canonical, groups[0].Articles[0].ID)
	}
}

func TestDeleteFeed_Cascades(t *testing.T) {
	s := newTestStore(t)
	feedID := addTestFeed(t, s, "https://example.com/feed.xml", "Example")
	articleID := addTestArticle(t, s, feedID, "https://example.com/1", "One", "x")

	if err := s.MarkRead(1, articleID, true); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if err := s.RecordNotification(articleID, nil); err != nil {
		t.Fatalf("RecordNotification failed: %v", err)
	}

	if err := s.DeleteFeed(feedID); err != nil {
		t.Fatalf("DeleteFeed failed: %v", err)
	}

	a, err := s.GetArticle(articleID)
	if err != nil {
		t.Fatalf("GetArticle failed: %v", err)
	}
	if a != nil {
		t.Error("article should cascade-delete with its feed")
	}
	st, err := s.GetUserArticleState(1, articleID)
	if err != nil {
		t.Fatalf("GetUserArticleState failed: %v", err)
	}
	if st != nil {
		t.Error("user state should cascade-delete with the article")
	}
	notified, err := s.WasNotified(articleID)
	if err != nil {
		t.Fatalf("WasNotified failed: %v", err)
	}
	if notified {
		t.Error("notification history should cascade-delete with the article")
	}
}

func TestDeleteAllFeeds_KeepNewsletters(t *testing.T) {
	s := newTestStore(t)
	addTestFeed(t, s, "https://a.example/feed.xml", "A")
	addTestFeed(t, s, "https://b.example/feed.xml", "B")
	addTestFeed(t, s, core.NewsletterFeedScheme+"weekly@example.com", "Weekly")

	deleted, err := s.DeleteAllFeeds(true)
	if err != nil {
		t.Fatalf("DeleteAllFeeds failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted feeds, got %d", deleted)
	}

	feeds, err := s.ListFeeds(0)
	if err != nil {
		t.Fatalf("ListFeeds failed: %v", err)
	}
	if len(feeds) != 1 || !feeds[0].IsNewsletter() {
		t.Errorf("only the newsletter feed should survive, got %v", feeds)
	}
}

func TestNotificationRules(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.AddNotificationRule(&core.NotificationRule{Name: "empty", Enabled: true}); err == nil {
		t.Error("rule without a filter should be rejected")
	}

	rule := &core.NotificationRule{Name: "go articles", Keyword: "golang", Priority: core.PriorityHigh, Enabled: true}
	id, err := s.AddNotificationRule(rule)
	if err != nil {
		t.Fatalf("AddNotificationRule failed: %v", err)
	}

	got, err := s.GetNotificationRule(id)
	if err != nil {
		t.Fatalf("GetNotificationRule failed: %v", err)
	}
	if got == nil || got.Keyword != "golang" || got.Priority != core.PriorityHigh {
		t.Errorf("unexpected rule: %+v", got)
	}

	got.Enabled = false
	if err := s.UpdateNotificationRule(got); err != nil {
		t.Fatalf("UpdateNotificationRule failed: %v", err)
	}
	enabled, err := s.ListNotificationRules(true)
	if err != nil {
		t.Fatalf("ListNotificationRules failed: %v", err)
	}
	if len(enabled) != 0 {
		t.Errorf("disabled rule should not be listed as enabled, got %d", len(enabled))
	}

	if err := s.DeleteNotificationRule(id); err != nil {
		t.Fatalf("DeleteNotificationRule failed: %v", err)
	}
	gone, err := s.GetNotificationRule(id)
	if err != nil {
		t.Fatalf("GetNotificationRule failed: %v", err)
	}
	if gone != nil {
		t.Error("deleted rule should be gone")
	}
}

func TestNotificationHistory_AtMostOnce(t *testing.T) {
	s := newTestStore(t)
	feedID := addTestFeed(t, s, "https://example.com/feed.xml", "Example")
	articleID := addTestArticle(t, s, feedID, "https://example.com/1", "One", "x")

	ruleID, err := s.AddNotificationRule(&core.NotificationRule{Name: "r", Keyword: "one", Enabled: true})
	if err != nil {
		t.Fatalf("AddNotificationRule failed: %v", err)
	}

	notified, err := s.WasNotified(articleID)
	if err != nil {
		t.Fatalf("WasNotified failed: %v", err)
	}
	if notified {
		t.Error("fresh article should not be notified")
	}

	if err := s.RecordNotification(articleID, &ruleID); err != nil {
		t.Fatalf("RecordNotification failed: %v", err)
	}
	notified, err = s.WasNotified(articleID)
	if err != nil {
		t.Fatalf("WasNotified failed: %v", err)
	}
	if !notified {
		t.Error("article should be notified after recording")
	}

	// Rule deletion keeps history but nulls the rule reference.
	if err := s.DeleteNotificationRule(ruleID); err != nil {
		t.Fatalf("DeleteNotificationRule failed: %v", err)
	}
	entries, err := s.ListNotificationHistory(10)
	if err != nil {
		t.Fatalf("ListNotificationHistory failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(entries))
	}
	if entries[0].RuleID != nil {
		t.Errorf("rule id should be null after rule deletion, got %v", *entries[0].RuleID)
	}
}

func TestArchiveOlderThan(t *testing.T) {
	s := newTestStore(t)
	feedID := addTestFeed(t, s, "https://example.com/feed.xml", "Example")

	old := time.Now().UTC().AddDate(0, 0, -60)
	recent := time.Now().UTC().AddDate(0, 0, -1)

	oldRead, err := s.AddArticle(&core.Article{FeedID: feedID, URL: "https://example.com/old-read", Title: "OldRead", PublishedAt: &old})
	if err != nil {
		t.Fatalf("AddArticle failed: %v", err)
	}
	oldUnread, err := s.AddArticle(&core.Article{FeedID: feedID, URL: "https://example.com/old-unread", Title: "OldUnread", PublishedAt: &old})
	if err != nil {
		t.Fatalf("AddArticle failed: %v", err)
	}
	oldBookmarked, err := s.AddArticle(&core.Article{FeedID: feedID, URL: "https://example.com/old-bm", Title: "OldBM", PublishedAt: &old})
	if err != nil {
		t.Fatalf("AddArticle failed: %v", err)
	}
	fresh, err := s.AddArticle(&core.Article{FeedID: feedID, URL: "https://example.com/fresh", Title: "Fresh", PublishedAt: &recent})
	if err != nil {
		t.Fatalf("AddArticle failed: %v", err)
	}

	if err := s.MarkRead(1, oldRead, true); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if err := s.MarkRead(1, oldBookmarked, true); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if _, err := s.ToggleBookmark(1, oldBookmarked); err != nil {
		t.Fatalf("ToggleBookmark failed: %v", err)
	}

	deleted, err := s.ArchiveOlderThan(30, true, true)
	if err != nil {
		t.Fatalf("ArchiveOlderThan failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted article, got %d", deleted)
	}

	for _, tc := range []struct {
		id   int64
		want bool
		name string
	}{
		{oldRead, false, "old read"},
		{oldUnread, true, "old unread"},
		{oldBookmarked, true, "old bookmarked"},
		{fresh, true, "fresh"},
	} {
		a, err := s.GetArticle(tc.id)
		if err != nil {
			t.Fatalf("GetArticle failed: %v", err)
		}
		if (a != nil) != tc.want {
			t.Errorf("%s article: survived=%v, want %v", tc.name, a != nil, tc.want)
		}
	}
}

func TestSettings(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetSetting(core.SettingAutoSummarize, "false")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if v != "false" {
		t.Errorf("unset key should return fallback, got %q", v)
	}

	if err := s.SetSetting(core.SettingAutoSummarize, "true"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := s.SetSetting(core.SettingAutoSummarize, "false"); err != nil {
		t.Fatalf("SetSetting overwrite failed: %v", err)
	}
	v, err = s.GetSetting(core.SettingAutoSummarize, "true")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if v != "false" {
		t.Errorf("expected overwritten value, got %q", v)
	}
}

func TestGmailConfig(t *testing.T) {
	s := newTestStore(t)

	cfg, err := s.GetGmailConfig()
	if err != nil {
		t.Fatalf("GetGmailConfig failed: %v", err)
	}
	if cfg != nil {
		t.Fatal("expected nil config before save")
	}

	if err := s.SaveGmailConfig(&core.GmailConfig{Email: "me@example.com", Enabled: true}); err != nil {
		t.Fatalf("SaveGmailConfig failed: %v", err)
	}
	cfg, err = s.GetGmailConfig()
	if err != nil {
		t.Fatalf("GetGmailConfig failed: %v", err)
	}
	if cfg.Label != "Newsletters" || cfg.PollIntervalMinutes != 30 {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	if err := s.UpdateGmailLastUID(42); err != nil {
		t.Fatalf("UpdateGmailLastUID failed: %v", err)
	}
	cfg, err = s.GetGmailConfig()
	if err != nil {
		t.Fatalf("GetGmailConfig failed: %v", err)
	}
	if cfg.LastUID != 42 {
		t.Errorf("expected last uid 42, got %d", cfg.LastUID)
	}
}

func TestTopicHistory(t *testing.T) {
	s := newTestStore(t)

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)
	entries := []core.TopicHistoryEntry{
		{Label: "AI Infrastructure", ArticleIDs: []int64{1, 2, 3}, PeriodStart: start, PeriodEnd: end},
		{Label: "ai  infrastructure", ArticleIDs: []int64{4}, PeriodStart: start, PeriodEnd: end},
		{Label: "Databases", ArticleIDs: []int64{5}, PeriodStart: start, PeriodEnd: end},
	}
	if err := s.SaveTopicRun(entries); err != nil {
		t.Fatalf("SaveTopicRun failed: %v", err)
	}

	trends, err := s.GetTopicTrends(start)
	if err != nil {
		t.Fatalf("GetTopicTrends failed: %v", err)
	}
	if len(trends) != 2 {
		t.Fatalf("normalized labels should collapse to 2 trends, got %d", len(trends))
	}
	if trends[0].Occurrences != 2 || trends[0].ArticleCount != 4 {
		t.Errorf("top trend should aggregate both runs, got %+v", trends[0])
	}
}

func TestUpdateFeedFetchStatus(t *testing.T) {
	s := newTestStore(t)
	feedID := addTestFeed(t, s, "https://example.com/feed.xml", "Example")

	if err := s.UpdateFeedFetchStatus(feedID, "connection refused"); err != nil {
		t.Fatalf("UpdateFeedFetchStatus failed: %v", err)
	}
	f, err := s.GetFeed(feedID)
	if err != nil {
		t.Fatalf("GetFeed failed: %v", err)
	}
	if f.FetchError != "connection refused" {
		t.Errorf("fetch error not recorded: %q", f.FetchError)
	}
	if f.LastFetched != nil {
		t.Error("failed fetch should not stamp last_fetched")
	}

	if err := s.UpdateFeedFetchStatus(feedID, ""); err != nil {
		t.Fatalf("UpdateFeedFetchStatus failed: %v", err)
	}
	f, err = s.GetFeed(feedID)
	if err != nil {
		t.Fatalf("GetFeed failed: %v", err)
	}
	if f.FetchError != "" {
		t.Errorf("successful fetch should clear error, got %q", f.FetchError)
	}
	if f.LastFetched == nil {
		t.Error("successful fetch should stamp last_fetched")
	}
}

func TestGetFeedByURL(t *testing.T) {
	s := newTestStore(t)
	addTestFeed(t, s, "https://example.com/feed", "Example")

	feed, err := s.GetFeedByURL("https://example.com/feed")
	if err != nil {
		t.Fatalf("GetFeedByURL failed: %v", err)
	}
	if feed == nil || feed.Name != "Example" {
		t.Fatalf("expected the Example feed, got %+v", feed)
	}

	feed, err = s.GetFeedByURL("https://example.com/other")
	if err != nil {
		t.Fatalf("GetFeedByURL failed: %v", err)
	}
	if feed != nil {
		t.Fatalf("expected nil for unknown URL, got %+v", feed)
	}
}

func TestUpdateArticleSourceURL(t *testing.T) {
	s := newTestStore(t)
	feedID := addTestFeed(t, s, "https://example.com/feed", "Example")
	id := addTestArticle(t, s, feedID, "https://news.ycombinator.com/item?id=1", "Post", "body")

	if err := s.UpdateArticleSourceURL(id, "https://example.com/post"); err != nil {
		t.Fatalf("UpdateArticleSourceURL failed: %v", err)
	}
	a, err := s.GetArticle(id)
	if err != nil {
		t.Fatalf("GetArticle failed: %v", err)
	}
	if a.SourceURL != "https://example.com/post" {
		t.Errorf("SourceURL = %q, want the publisher URL", a.SourceURL)
	}
}

func TestArticlesGrouped(t *testing.T) {
	s := newTestStore(t)
	feedA := addTestFeed(t, s, "https://a.example/feed", "Alpha")
	feedB := addTestFeed(t, s, "https://b.example/feed", "Beta")

	day1 := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC)
	add := func(feedID int64, url string, published time.Time) {
		t.Helper()
		if _, err := s.AddArticle(&core.Article{FeedID: feedID, URL: url, Title: url, PublishedAt: &published}); err != nil {
			t.Fatalf("AddArticle failed: %v", err)
		}
	}
	add(feedA, "https://a.example/1", day1)
	add(feedA, "https://a.example/2", day2)
	add(feedB, "https://b.example/1", day2)

	byDate, err := s.ArticlesGroupedByDate(0, 10)
	if err != nil {
		t.Fatalf("ArticlesGroupedByDate failed: %v", err)
	}
	if len(byDate) != 2 {
		t.Fatalf("expected 2 date groups, got %d", len(byDate))
	}
	if byDate[0].Key != "2026-08-21" || len(byDate[0].Articles) != 2 {
		t.Errorf("newest day first: got key %q with %d articles", byDate[0].Key, len(byDate[0].Articles))
	}

	byFeed, err := s.ArticlesGroupedByFeed(0, 10)
	if err != nil {
		t.Fatalf("ArticlesGroupedByFeed failed: %v", err)
	}
	counts := map[string]int{}
	for _, g := range byFeed {
		counts[g.Key] = len(g.Articles)
	}
	if counts["Alpha"] != 2 || counts["Beta"] != 1 {
		t.Errorf("feed groups = %v, want Alpha:2 Beta:1", counts)
	}
}

func TestGetReadStats(t *testing.T) {
	s := newTestStore(t)
	feedID := addTestFeed(t, s, "https://example.com/feed", "Example")
	a1 := addTestArticle(t, s, feedID, "https://example.com/1", "One", "body")
	a2 := addTestArticle(t, s, feedID, "https://example.com/2", "Two", "body")
	addTestArticle(t, s, feedID, "https://example.com/3", "Three", "body")

	if err := s.MarkRead(0, a1, true); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if err := s.MarkRead(0, a2, true); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if _, err := s.ToggleBookmark(0, a1); err != nil {
		t.Fatalf("ToggleBookmark failed: %v", err)
	}

	stats, err := s.GetReadStats(0)
	if err != nil {
		t.Fatalf("GetReadStats failed: %v", err)
	}
	if stats.TotalRead != 2 {
		t.Errorf("TotalRead = %d, want 2", stats.TotalRead)
	}
	if stats.TotalBookmarked != 1 {
		t.Errorf("TotalBookmarked = %d, want 1", stats.TotalBookmarked)
	}
	if stats.ReadToday != 2 {
		t.Errorf("ReadToday = %d, want 2", stats.ReadToday)
	}
}

func TestDeleteGmailConfig(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveGmailConfig(&core.GmailConfig{Email: "me@example.com", Enabled: true}); err != nil {
		t.Fatalf("SaveGmailConfig failed: %v", err)
	}
	if err := s.DeleteGmailConfig(); err != nil {
		t.Fatalf("DeleteGmailConfig failed: %v", err)
	}
	cfg, err := s.GetGmailConfig()
	if err != nil {
		t.Fatalf("GetGmailConfig failed: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config after delete, got %+v", cfg)
	}
}
