package notify

import (
	"testing"

	"skim/internal/core"
)

type mockStore struct {
	rules    []core.NotificationRule
	notified map[int64]bool
	recorded []recordedCall
}

type recordedCall struct {
	articleID int64
	ruleID    *int64
}

func newMockStore(rules ...core.NotificationRule) *mockStore {
	return &mockStore{rules: rules, notified: map[int64]bool{}}
}

func (m *mockStore) ListNotificationRules(enabledOnly bool) ([]core.NotificationRule, error) {
	if !enabledOnly {
		return m.rules, nil
	}
	var enabled []core.NotificationRule
	for _, r := range m.rules {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	return enabled, nil
}

func (m *mockStore) WasNotified(articleID int64) (bool, error) {
	return m.notified[articleID], nil
}

func (m *mockStore) RecordNotification(articleID int64, ruleID *int64) error {
	m.notified[articleID] = true
	m.recorded = append(m.recorded, recordedCall{articleID, ruleID})
	return nil
}

func feedID(id int64) *int64 { return &id }

func rule(id int64, name string) core.NotificationRule {
	return core.NotificationRule{ID: id, Name: name, Priority: core.PriorityNormal, Enabled: true}
}

func TestEvaluate_KeywordAgainstTitleSummaryContent(t *testing.T) {
	r := rule(1, "k8s watch")
	r.Keyword = "kubernetes"
	engine := New(newMockStore(r))

	tests := []struct {
		name    string
		article core.Article
		matched bool
	}{
		{"title", core.Article{ID: 1, Title: "Kubernetes 1.34 released"}, true},
		{"summary", core.Article{ID: 2, Title: "Release notes", SummaryShort: "New KUBERNETES features"}, true},
		{"content", core.Article{ID: 3, Title: "Weekly", Content: "... kubernetes cluster ..."}, true},
		{"no match", core.Article{ID: 4, Title: "Postgres tips", Content: "indexes"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := engine.Evaluate(&tt.article)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if (len(matches) > 0) != tt.matched {
				t.Errorf("matched = %v, want %v", len(matches) > 0, tt.matched)
			}
			if tt.matched && matches[0].Reason != "Keyword match: 'kubernetes'" {
				t.Errorf("unexpected reason: %q", matches[0].Reason)
			}
		})
	}
}

func TestEvaluate_AuthorRule(t *testing.T) {
	r := rule(1, "favorite author")
	r.Author = "jane"
	engine := New(newMockStore(r))

	matches, err := engine.Evaluate(&core.Article{ID: 1, Author: "Jane Reporter"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Reason != "Author match: 'jane'" {
		t.Errorf("unexpected matches: %+v", matches)
	}
}

func TestEvaluate_KeywordAndAuthorRequiresBoth(t *testing.T) {
	r := rule(1, "jane on kubernetes")
	r.Keyword = "kubernetes"
	r.Author = "jane"
	engine := New(newMockStore(r))

	tests := []struct {
		name    string
		article core.Article
		matched bool
	}{
		{"both hit", core.Article{ID: 1, Title: "Kubernetes 1.34", Author: "Jane Reporter"}, true},
		{"keyword only", core.Article{ID: 2, Title: "Kubernetes 1.34", Author: "Bob Writer"}, false},
		{"author only", core.Article{ID: 3, Title: "Postgres tips", Author: "Jane Reporter"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := engine.Evaluate(&tt.article)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if (len(matches) > 0) != tt.matched {
				t.Errorf("matched = %v, want %v", len(matches) > 0, tt.matched)
			}
			if tt.matched && matches[0].Reason != "Keyword match: 'kubernetes'" {
				t.Errorf("combined rule should report the keyword, got %q", matches[0].Reason)
			}
		})
	}
}

func TestEvaluate_FeedOnlyRule(t *testing.T) {
	r := rule(1, "watch feed 7")
	r.FeedID = feedID(7)
	engine := New(newMockStore(r))

	matches, err := engine.Evaluate(&core.Article{ID: 1, FeedID: 7, Title: "anything"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Reason != "Feed notification" {
		t.Errorf("unexpected matches: %+v", matches)
	}

	// Different feed: the rule does not apply.
	matches, err = engine.Evaluate(&core.Article{ID: 2, FeedID: 8, Title: "anything"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("feed filter should exclude other feeds: %+v", matches)
	}
}

func TestEvaluate_FeedScopedKeyword(t *testing.T) {
	r := rule(1, "go posts in feed 7")
	r.FeedID = feedID(7)
	r.Keyword = "golang"
	engine := New(newMockStore(r))

	matches, err := engine.Evaluate(&core.Article{ID: 1, FeedID: 7, Title: "Golang generics"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected keyword match within feed, got %+v", matches)
	}

	matches, err = engine.Evaluate(&core.Article{ID: 2, FeedID: 7, Title: "Rust news"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("keyword must still match within the feed: %+v", matches)
	}
}

func TestEvaluate_PrioritySort(t *testing.T) {
	low := rule(1, "low")
	low.Keyword = "release"
	low.Priority = core.PriorityLow
	high := rule(2, "high")
	high.Keyword = "release"
	high.Priority = core.PriorityHigh
	normal := rule(3, "normal")
	normal.Keyword = "release"

	engine := New(newMockStore(low, high, normal))
	matches, err := engine.Evaluate(&core.Article{ID: 1, Title: "Go release"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].Rule.ID != 2 || matches[1].Rule.ID != 3 || matches[2].Rule.ID != 1 {
		t.Errorf("matches not priority-sorted: %v, %v, %v",
			matches[0].Rule.Name, matches[1].Rule.Name, matches[2].Rule.Name)
	}
}

func TestEvaluate_DisabledRuleSkipped(t *testing.T) {
	r := rule(1, "disabled")
	r.Keyword = "go"
	r.Enabled = false
	engine := New(newMockStore(r))

	matches, err := engine.Evaluate(&core.Article{ID: 1, Title: "go news"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("disabled rules must not match: %+v", matches)
	}
}

func TestEvaluate_AtMostOncePerArticle(t *testing.T) {
	r := rule(1, "watch")
	r.Keyword = "go"
	store := newMockStore(r)
	engine := New(store)

	article := &core.Article{ID: 1, Title: "go news"}
	matches, err := engine.Evaluate(article)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if err := engine.Record(article.ID, matches); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	again, err := engine.Evaluate(article)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("already-notified article must produce no matches: %+v", again)
	}
}

func TestRecord_HighestPriorityOnly(t *testing.T) {
	high := rule(2, "high")
	high.Keyword = "release"
	high.Priority = core.PriorityHigh
	low := rule(1, "low")
	low.Keyword = "release"
	low.Priority = core.PriorityLow

	store := newMockStore(high, low)
	engine := New(store)

	article := &core.Article{ID: 9, Title: "Go release"}
	matches, err := engine.Evaluate(article)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if err := engine.Record(article.ID, matches); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if len(store.recorded) != 1 {
		t.Fatalf("expected a single history entry, got %d", len(store.recorded))
	}
	if store.recorded[0].ruleID == nil || *store.recorded[0].ruleID != 2 {
		t.Errorf("history should cite the highest-priority rule: %+v", store.recorded[0])
	}

	// No matches: nothing recorded.
	if err := engine.Record(10, nil); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if len(store.recorded) != 1 {
		t.Error("empty match list must not record history")
	}
}
