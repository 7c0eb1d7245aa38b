package dropbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Access tokens live about four hours; refresh this far before expiry so
// an in-flight request never straddles the boundary.
const tokenExpiryMargin = 5 * time.Minute

// TokenManager exchanges a long-lived refresh token for short-lived
// access tokens and caches the current one until shortly before expiry.
// Safe for concurrent use.
type TokenManager struct {
	appKey       string
	appSecret    string
	refreshToken string
	client       *http.Client
	tokenURL     string

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewTokenManager builds a manager for the given app credentials.
func NewTokenManager(appKey, appSecret, refreshToken string, client *http.Client) *TokenManager {
	return &TokenManager{
		appKey:       appKey,
		appSecret:    appSecret,
		refreshToken: refreshToken,
		client:       client,
		tokenURL:     defaultAPIBase + "/oauth2/token",
	}
}

// Token returns a valid access token, refreshing it when the cached one
// is missing or inside the expiry margin.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.accessToken != "" && time.Now().Before(m.expiresAt.Add(-tokenExpiryMargin)) {
		return m.accessToken, nil
	}
	return m.refresh(ctx)
}

// refresh posts the refresh token grant. Callers hold m.mu.
func (m *TokenManager) refresh(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {m.refreshToken},
		"client_id":     {m.appKey},
		"client_secret": {m.appSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("token refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token refresh: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("token refresh response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token refresh: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("token refresh response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token refresh: response carried no access token")
	}

	m.accessToken = payload.AccessToken
	m.expiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return m.accessToken, nil
}
