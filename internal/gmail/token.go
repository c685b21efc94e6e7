package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"skim/internal/core"
)

const (
	googleTokenURL     = "https://oauth2.googleapis.com/token"
	tokenRefreshWindow = 5 * time.Minute
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// EnsureToken refreshes the access token when it expires within five
// minutes. It mutates cfg in place and reports whether new tokens should be
// persisted.
func (p *Poller) EnsureToken(ctx context.Context, cfg *core.GmailConfig) (bool, error) {
	if time.Until(cfg.TokenExpiresAt) > tokenRefreshWindow {
		return false, nil
	}
	if cfg.RefreshToken == "" {
		return false, fmt.Errorf("access token expired and no refresh token available")
	}

	form := url.Values{
		"client_id":     {p.clientID},
		"client_secret": {p.clientSecret},
		"refresh_token": {cfg.RefreshToken},
		"grant_type":    {"refresh_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("token refresh failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return false, fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return false, fmt.Errorf("token endpoint returned no access token")
	}

	cfg.AccessToken = token.AccessToken
	cfg.TokenExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return true, nil
}
