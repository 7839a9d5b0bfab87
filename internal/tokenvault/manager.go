package tokenvault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNotConnected means no refresh token is on file for the tenant.
	// Connectors surface this as a skipped/error sync-log row, never a crash.
	ErrNotConnected = errors.New("tokenvault: integration not connected")

	ErrInvalidArgument = errors.New("tokenvault: invalid argument")
)

// refreshSkew is how close to expiry a token must be before it gets
// refreshed ahead of use.
const refreshSkew = 300 * time.Second

// Manager implements the OAuth token lifecycle shared by all CRM connectors.
//
// Concurrency note: duplicate refreshes from overlapping calls are not
// serialized. Providers treat a duplicate refresh as idempotent; if the old
// refresh token gets invalidated, the failed call surfaces as a connector
// error on its own sync log.
type Manager struct {
	repo   Repository
	client *http.Client
	clock  func() time.Time
}

func NewManager(repo Repository) *Manager {
	return &Manager{
		repo:   repo,
		client: &http.Client{Timeout: 15 * time.Second},
		clock:  time.Now,
	}
}

// EnsureValidToken returns a usable access token for (tenant, provider),
// refreshing first when now >= expiry - 300s. A token further from expiry is
// returned verbatim with no network call.
func (m *Manager) EnsureValidToken(ctx context.Context, tenantID string, cfg ProviderConfig) (Token, error) {
	if tenantID == "" || cfg.Name == "" {
		return Token{}, ErrInvalidArgument
	}

	tok, err := m.repo.Get(ctx, tenantID, cfg.Name)
	if err != nil {
		return Token{}, err
	}
	if tok.RefreshToken == "" {
		return Token{}, ErrNotConnected
	}

	now := m.clock().UTC()
	if tok.ExpiresAt.Sub(now) > refreshSkew {
		return tok, nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", tok.RefreshToken)
	form.Set("client_id", cfg.ClientID)
	form.Set("client_secret", cfg.ClientSecret)

	resp, err := m.postTokenEndpoint(ctx, cfg, form)
	if err != nil {
		return Token{}, fmt.Errorf("tokenvault: %s refresh failed: %w", cfg.Name, err)
	}

	tok.AccessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		tok.RefreshToken = resp.RefreshToken
	}
	if resp.InstanceURL != "" {
		tok.InstanceURL = resp.InstanceURL
	}
	tok.ExpiresAt = now.Add(time.Duration(resp.expirySeconds()) * time.Second)
	tok.UpdatedAt = now

	if err := m.repo.Upsert(ctx, tok); err != nil {
		return Token{}, err
	}
	return tok, nil
}

// ExchangeCode trades an authorization code for tokens and persists them.
func (m *Manager) ExchangeCode(ctx context.Context, tenantID string, cfg ProviderConfig, code string) (Token, error) {
	if tenantID == "" || cfg.Name == "" || code == "" {
		return Token{}, ErrInvalidArgument
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", cfg.ClientID)
	form.Set("client_secret", cfg.ClientSecret)
	form.Set("redirect_uri", cfg.RedirectURL)

	resp, err := m.postTokenEndpoint(ctx, cfg, form)
	if err != nil {
		return Token{}, fmt.Errorf("tokenvault: %s code exchange failed: %w", cfg.Name, err)
	}

	now := m.clock().UTC()
	tok := Token{
		TenantID:     tenantID,
		Provider:     cfg.Name,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		InstanceURL:  resp.InstanceURL,
		ExpiresAt:    now.Add(time.Duration(resp.expirySeconds()) * time.Second),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.repo.Upsert(ctx, tok); err != nil {
		return Token{}, err
	}
	return tok, nil
}

// AuthorizeURL builds the provider consent-screen redirect with tenant-scoped state.
func (m *Manager) AuthorizeURL(cfg ProviderConfig, state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", cfg.ClientID)
	q.Set("redirect_uri", cfg.RedirectURL)
	q.Set("state", state)
	if len(cfg.Scopes) > 0 {
		q.Set("scope", strings.Join(cfg.Scopes, " "))
	}
	return cfg.AuthURL + "?" + q.Encode()
}

// Status reports whether a tenant has a connected, non-expired credential.
func (m *Manager) Status(ctx context.Context, tenantID, provider string) (connected bool, expiresAt time.Time, err error) {
	tok, err := m.repo.Get(ctx, tenantID, provider)
	if errors.Is(err, ErrNotConnected) {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, err
	}
	return tok.RefreshToken != "", tok.ExpiresAt, nil
}

// Disconnect removes the stored credential. This is the only token delete path.
func (m *Manager) Disconnect(ctx context.Context, tenantID, provider string) error {
	if tenantID == "" || provider == "" {
		return ErrInvalidArgument
	}
	return m.repo.Delete(ctx, tenantID, provider)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	InstanceURL  string `json:"instance_url"`
	TokenType    string `json:"token_type"`
}

func (t tokenResponse) expirySeconds() int {
	if t.ExpiresIn > 0 {
		return t.ExpiresIn
	}
	// Providers that omit expires_in get a conservative one hour.
	return 3600
}

func (m *Manager) postTokenEndpoint(ctx context.Context, cfg ProviderConfig, form url.Values) (tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := m.client.Do(req)
	if err != nil {
		return tokenResponse{}, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return tokenResponse{}, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return tokenResponse{}, fmt.Errorf("token endpoint returned %d: %s", res.StatusCode, truncate(string(body), 256))
	}

	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return tokenResponse{}, fmt.Errorf("token endpoint returned invalid JSON: %w", err)
	}
	if out.AccessToken == "" {
		return tokenResponse{}, errors.New("token endpoint returned no access_token")
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
