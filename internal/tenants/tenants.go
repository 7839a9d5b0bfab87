package tenants

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("tenants: not found")

// Settings holds the per-tenant switches the ingestion pipeline consults.
// Tenant/workspace CRUD itself lives outside this service; only reads are
// needed here.
type Settings struct {
	TenantID      string   `json:"tenant_id"`
	LLMAPIKey     string   `json:"-"`
	EnabledAddons []string `json:"enabled_addons"`
}

// Repository resolves ingress webhook ids to tenants and loads settings.
type Repository interface {
	ResolveIngress(ctx context.Context, webhookID string) (tenantID string, err error)
	GetSettings(ctx context.Context, tenantID string) (Settings, error)
}

type SQLRepo struct {
	db *sql.DB
}

func NewSQLRepo(db *sql.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) ResolveIngress(ctx context.Context, webhookID string) (string, error) {
	if webhookID == "" {
		return "", ErrNotFound
	}
	var tenantID string
	err := r.db.QueryRowContext(ctx,
		`SELECT tenant_id FROM ingress_endpoints WHERE webhook_id = $1`, webhookID,
	).Scan(&tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return tenantID, err
}

func (r *SQLRepo) GetSettings(ctx context.Context, tenantID string) (Settings, error) {
	var s Settings
	var addons []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT tenant_id, llm_api_key, enabled_addons FROM tenant_settings WHERE tenant_id = $1`,
		tenantID,
	).Scan(&s.TenantID, &s.LLMAPIKey, &addons)
	if errors.Is(err, sql.ErrNoRows) {
		// Absent settings row means defaults: no LLM key, no addons.
		return Settings{TenantID: tenantID}, nil
	}
	if err != nil {
		return Settings{}, err
	}
	if len(addons) > 0 {
		if err := json.Unmarshal(addons, &s.EnabledAddons); err != nil {
			return Settings{}, err
		}
	}
	return s, nil
}

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu       sync.Mutex
	Ingress  map[string]string // webhook_id -> tenant_id
	Settings map[string]Settings
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{Ingress: map[string]string{}, Settings: map[string]Settings{}}
}

func (r *MemoryRepo) ResolveIngress(ctx context.Context, webhookID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.Ingress[webhookID]
	if !ok {
		return "", ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepo) GetSettings(ctx context.Context, tenantID string) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.Settings[tenantID]; ok {
		return s, nil
	}
	return Settings{TenantID: tenantID}, nil
}
