package tokenvault

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

// Repository is the persistence contract for OAuth tokens.
type Repository interface {
	Get(ctx context.Context, tenantID, provider string) (Token, error)
	Upsert(ctx context.Context, t Token) error
	Delete(ctx context.Context, tenantID, provider string) error
}

type SQLRepo struct {
	db *sql.DB
}

func NewSQLRepo(db *sql.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) Get(ctx context.Context, tenantID, provider string) (Token, error) {
	var t Token
	err := r.db.QueryRowContext(ctx, `
		SELECT tenant_id, provider, access_token, refresh_token, expires_at, instance_url, created_at, updated_at
		FROM oauth_tokens WHERE tenant_id = $1 AND provider = $2`,
		tenantID, provider,
	).Scan(&t.TenantID, &t.Provider, &t.AccessToken, &t.RefreshToken, &t.ExpiresAt, &t.InstanceURL, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Token{}, ErrNotConnected
	}
	return t, err
}

func (r *SQLRepo) Upsert(ctx context.Context, t Token) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO oauth_tokens (tenant_id, provider, access_token, refresh_token, expires_at, instance_url, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())
		ON CONFLICT (tenant_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = CASE WHEN EXCLUDED.refresh_token <> '' THEN EXCLUDED.refresh_token ELSE oauth_tokens.refresh_token END,
			expires_at = EXCLUDED.expires_at,
			instance_url = CASE WHEN EXCLUDED.instance_url <> '' THEN EXCLUDED.instance_url ELSE oauth_tokens.instance_url END,
			updated_at = NOW()`,
		t.TenantID, t.Provider, t.AccessToken, t.RefreshToken, t.ExpiresAt, t.InstanceURL,
	)
	return err
}

func (r *SQLRepo) Delete(ctx context.Context, tenantID, provider string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM oauth_tokens WHERE tenant_id = $1 AND provider = $2`,
		tenantID, provider)
	return err
}

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu     sync.Mutex
	tokens map[string]Token
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{tokens: map[string]Token{}} }

func key(tenantID, provider string) string { return tenantID + "|" + provider }

func (r *MemoryRepo) Get(ctx context.Context, tenantID, provider string) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[key(tenantID, provider)]
	if !ok {
		return Token{}, ErrNotConnected
	}
	return t, nil
}

func (r *MemoryRepo) Upsert(ctx context.Context, t Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(t.TenantID, t.Provider)
	if prev, ok := r.tokens[k]; ok {
		if t.RefreshToken == "" {
			t.RefreshToken = prev.RefreshToken
		}
		if t.InstanceURL == "" {
			t.InstanceURL = prev.InstanceURL
		}
		t.CreatedAt = prev.CreatedAt
	}
	r.tokens[k] = t
	return nil
}

func (r *MemoryRepo) Delete(ctx context.Context, tenantID, provider string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, key(tenantID, provider))
	return nil
}
