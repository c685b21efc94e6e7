package gmail

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"skim/internal/core"
)

func TestCleanHTML(t *testing.T) {
	html := `<html><body>
		<img src="https://track.example/pixel.gif" width="1" height="1">
		<span class="preview-text">You won't see this preheader</span>
		<script>track();</script>
		<div>   </div>
		<table><tr><td>
			<p>The actual newsletter content stays.</p>
			<img src="https://img.example/hero.png" width="600" height="300">
		</td></tr></table>
		<div class="footer">
			<a href="https://list.example/unsubscribe?u=1">Unsubscribe</a>
		</div>
	</body></html>`

	out := CleanHTML(html)
	if strings.Contains(out, "pixel.gif") {
		t.Error("tracking pixel should be removed")
	}
	if strings.Contains(out, "preheader") {
		t.Error("preview span should be removed")
	}
	if strings.Contains(out, "track();") {
		t.Error("scripts should be removed")
	}
	if strings.Contains(out, "Unsubscribe") {
		t.Error("unsubscribe footer should be removed")
	}
	if strings.Contains(out, "<table") {
		t.Error("single-cell table wrapper should be unwrapped")
	}
	if !strings.Contains(out, "The actual newsletter content stays.") {
		t.Errorf("content should survive cleanup: %q", out)
	}
	if !strings.Contains(out, "hero.png") {
		t.Error("real images should survive cleanup")
	}
}

func TestDeriveName(t *testing.T) {
	tests := []struct {
		name    string
		listID  string
		xMailer string
		html    string
		want    string
	}{
		{"list-id quoted", `"The Weekly Gopher" <weekly.gopher.example.com>`, "", "", "The Weekly Gopher"},
		{"list-id bare", `gophers <list.example.com>`, "", "", "gophers"},
		{"x-mailer substack", "", "Substack v1.2", "", "Substack"},
		{"html publication name", "", "", `<div class="publication-name">Deep Dives</div>`, "Deep Dives"},
		{"html h1 fallback", "", "", `<h1>Morning Brief</h1>`, "Morning Brief"},
		{"nothing", "", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveName(tt.listID, tt.xMailer, tt.html); got != tt.want {
				t.Errorf("DeriveName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeriveUnsubscribeURL(t *testing.T) {
	header := `<mailto:unsub@list.example>, <https://list.example/unsub?u=1>`
	if got := DeriveUnsubscribeURL(header, ""); got != "https://list.example/unsub?u=1" {
		t.Errorf("http variant should win over mailto, got %q", got)
	}

	mailtoOnly := `<mailto:unsub@list.example>`
	if got := DeriveUnsubscribeURL(mailtoOnly, ""); got != "mailto:unsub@list.example" {
		t.Errorf("mailto should be returned when alone, got %q", got)
	}

	html := `<a href="https://x.example/a">read online</a>
		<a href="https://x.example/goodbye">Unsubscribe here</a>`
	if got := DeriveUnsubscribeURL("", html); got != "https://x.example/goodbye" {
		t.Errorf("HTML unsubscribe link should be found, got %q", got)
	}

	if got := DeriveUnsubscribeURL("", "<p>no links</p>"); got != "" {
		t.Errorf("no unsubscribe anywhere should yield empty, got %q", got)
	}
}

func TestSyntheticURL(t *testing.T) {
	date := time.Date(2026, 8, 17, 9, 30, 0, 0, time.UTC)
	got := SyntheticURL("News@Example.COM", date)
	want := "newsletter://gmail/news@example.com_20260817093000"
	if got != want {
		t.Errorf("SyntheticURL = %q, want %q", got, want)
	}
}

func TestXOAUTH2Client(t *testing.T) {
	client := newXOAUTH2Client("user@example.com", "token-abc")
	mech, ir, err := client.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if mech != "XOAUTH2" {
		t.Errorf("mechanism = %q", mech)
	}
	want := "user=user@example.com\x01auth=Bearer token-abc\x01\x01"
	if string(ir) != want {
		t.Errorf("initial response = %q, want %q", ir, want)
	}

	// First (error) challenge gets an empty response, a second one fails.
	if resp, err := client.Next([]byte(`{"status":"400"}`)); err != nil || len(resp) != 0 {
		t.Errorf("first challenge: resp=%q err=%v", resp, err)
	}
	if _, err := client.Next(nil); err == nil {
		t.Error("second challenge should error")
	}
}

func TestEnsureToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("bad form: %v", err)
		}
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "refresh-1" {
			t.Errorf("unexpected form: %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "fresh-token", "expires_in": 3600, "token_type": "Bearer"}`))
	}))
	defer server.Close()

	poller := NewPoller("client-id", "client-secret")
	poller.tokenURL = server.URL

	cfg := &core.GmailConfig{
		Email:          "user@example.com",
		AccessToken:    "stale-token",
		RefreshToken:   "refresh-1",
		TokenExpiresAt: time.Now().Add(time.Minute), // Inside the 5 min window
	}
	changed, err := poller.EnsureToken(context.Background(), cfg)
	if err != nil {
		t.Fatalf("EnsureToken failed: %v", err)
	}
	if !changed {
		t.Error("refresh should report changed tokens")
	}
	if cfg.AccessToken != "fresh-token" {
		t.Errorf("access token not updated: %q", cfg.AccessToken)
	}
	if time.Until(cfg.TokenExpiresAt) < 50*time.Minute {
		t.Errorf("expiry not extended: %v", cfg.TokenExpiresAt)
	}
}

func TestEnsureToken_FreshTokenSkipsRefresh(t *testing.T) {
	poller := NewPoller("client-id", "client-secret")
	poller.tokenURL = "http://invalid.test" // Must not be contacted

	cfg := &core.GmailConfig{
		AccessToken:    "valid-token",
		TokenExpiresAt: time.Now().Add(time.Hour),
	}
	changed, err := poller.EnsureToken(context.Background(), cfg)
	if err != nil {
		t.Fatalf("EnsureToken failed: %v", err)
	}
	if changed {
		t.Error("fresh token should not be refreshed")
	}
}

func TestParseMessage(t *testing.T) {
	raw := strings.Join([]string{
		"From: The Weekly Gopher <news@weeklygopher.example>",
		"To: reader@example.com",
		"Subject: Issue 42",
		"Date: Mon, 17 Aug 2026 09:30:00 +0000",
		`List-Id: "The Weekly Gopher" <weekly.gopher.example>`,
		"List-Unsubscribe: <https://weeklygopher.example/unsub?u=9>",
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<html><body><p>This week in Go.</p></body></html>",
	}, "\r\n")

	n, err := parseMessage([]byte(raw))
	if err != nil {
		t.Fatalf("parseMessage failed: %v", err)
	}
	if n.Subject != "Issue 42" {
		t.Errorf("subject = %q", n.Subject)
	}
	if n.SenderEmail != "news@weeklygopher.example" {
		t.Errorf("sender = %q", n.SenderEmail)
	}
	if !strings.Contains(n.Content, "This week in Go.") {
		t.Errorf("content = %q", n.Content)
	}
	if n.NewsletterName != "The Weekly Gopher" {
		t.Errorf("newsletter name = %q", n.NewsletterName)
	}
	if n.UnsubscribeURL != "https://weeklygopher.example/unsub?u=9" {
		t.Errorf("unsubscribe = %q", n.UnsubscribeURL)
	}
	if n.SyntheticURL != "newsletter://gmail/news@weeklygopher.example_20260817093000" {
		t.Errorf("synthetic URL = %q", n.SyntheticURL)
	}
}
