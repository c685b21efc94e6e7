// Package notify evaluates new articles against user notification rules.
// An article is notified at most once; the history entry records the
// highest-priority matching rule.
package notify

import (
	"fmt"
	"sort"
	"strings"

	"skim/internal/core"
)

// Store is the subset of the article store the engine needs.
type Store interface {
	ListNotificationRules(enabledOnly bool) ([]core.NotificationRule, error)
	WasNotified(articleID int64) (bool, error)
	RecordNotification(articleID int64, ruleID *int64) error
}

// Match is one rule that matched an article.
type Match struct {
	Rule     core.NotificationRule `json:"rule"`
	Article  *core.Article         `json:"article"`
	Reason   string                `json:"reason"`
	Priority core.Priority         `json:"priority"`
}

// Engine evaluates rules and records history.
type Engine struct {
	store Store
}

// New creates a notification engine.
func New(store Store) *Engine {
	return &Engine{store: store}
}

// Evaluate returns the rules matching the article, sorted by priority. An
// article that has ever been notified produces no matches.
func (e *Engine) Evaluate(article *core.Article) ([]Match, error) {
	notified, err := e.store.WasNotified(article.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check notification history: %w", err)
	}
	if notified {
		return nil, nil
	}

	rules, err := e.store.ListNotificationRules(true)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification rules: %w", err)
	}

	var matches []Match
	for _, rule := range rules {
		if rule.FeedID != nil && *rule.FeedID != article.FeedID {
			continue
		}
		if !rule.HasFilter() {
			continue
		}
		if reason, ok := matchRule(rule, article); ok {
			matches = append(matches, Match{
				Rule:     rule,
				Article:  article,
				Reason:   reason,
				Priority: rule.Priority,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Priority.Rank() < matches[j].Priority.Rank()
	})
	return matches, nil
}

// Record writes a single history entry for the highest-priority match.
func (e *Engine) Record(articleID int64, matches []Match) error {
	if len(matches) == 0 {
		return nil
	}
	ruleID := matches[0].Rule.ID
	if err := e.store.RecordNotification(articleID, &ruleID); err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

// matchRule applies one rule to the article and reports the match reason.
// Every filter set on the rule must match (feed scoping is checked by the
// caller); a rule with both keyword and author only fires when both hit,
// and the reason reports the keyword.
func matchRule(rule core.NotificationRule, article *core.Article) (string, bool) {
	if rule.Keyword != "" {
		keyword := strings.ToLower(rule.Keyword)
		found := false
		for _, haystack := range []string{article.Title, article.SummaryShort, article.Content} {
			if strings.Contains(strings.ToLower(haystack), keyword) {
				found = true
				break
			}
		}
		if !found {
			return "", false
		}
	}
	if rule.Author != "" && !strings.Contains(strings.ToLower(article.Author), strings.ToLower(rule.Author)) {
		return "", false
	}

	switch {
	case rule.Keyword != "":
		return fmt.Sprintf("Keyword match: '%s'", rule.Keyword), true
	case rule.Author != "":
		return fmt.Sprintf("Author match: '%s'", rule.Author), true
	case rule.FeedID != nil:
		return "Feed notification", true
	}
	return "", false
}
