package outbound

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"sync"
)

var (
	ErrNotFound        = errors.New("outbound: not found")
	ErrInvalidArgument = errors.New("outbound: invalid argument")
)

// Repository persists webhook registrations and delivery logs.
type Repository interface {
	Create(ctx context.Context, w Webhook) error
	Get(ctx context.Context, tenantID, id string) (Webhook, error)
	List(ctx context.Context, tenantID string) ([]Webhook, error)
	Update(ctx context.Context, w Webhook) error
	Delete(ctx context.Context, tenantID, id string) error

	// ListSubscribed returns enabled destinations subscribed to the event.
	ListSubscribed(ctx context.Context, tenantID, event string) ([]Webhook, error)

	AppendLog(ctx context.Context, l DeliveryLog) error
	ListLogs(ctx context.Context, tenantID, webhookID string, limit, offset int) ([]DeliveryLog, error)
}

type SQLRepo struct {
	db *sql.DB
}

func NewSQLRepo(db *sql.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) Create(ctx context.Context, w Webhook) error {
	if w.ID == "" || w.TenantID == "" || w.URL == "" {
		return ErrInvalidArgument
	}
	events, err := json.Marshal(w.Events)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO outbound_webhooks (id, tenant_id, url, events, enabled, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6)`,
		w.ID, w.TenantID, w.URL, events, w.Enabled, w.CreatedAt,
	)
	return err
}

func scanWebhook(row interface{ Scan(...any) error }) (Webhook, error) {
	var w Webhook
	var events []byte
	err := row.Scan(&w.ID, &w.TenantID, &w.URL, &events, &w.Enabled, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return Webhook{}, err
	}
	if len(events) > 0 {
		if err := json.Unmarshal(events, &w.Events); err != nil {
			return Webhook{}, err
		}
	}
	return w, nil
}

func (r *SQLRepo) Get(ctx context.Context, tenantID, id string) (Webhook, error) {
	if tenantID == "" || id == "" {
		return Webhook{}, ErrInvalidArgument
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, url, events, enabled, created_at, updated_at
		FROM outbound_webhooks WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	w, err := scanWebhook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Webhook{}, ErrNotFound
	}
	return w, err
}

func (r *SQLRepo) List(ctx context.Context, tenantID string) ([]Webhook, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, url, events, enabled, created_at, updated_at
		FROM outbound_webhooks WHERE tenant_id = $1 ORDER BY created_at`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *SQLRepo) Update(ctx context.Context, w Webhook) error {
	if w.ID == "" || w.TenantID == "" || w.URL == "" {
		return ErrInvalidArgument
	}
	events, err := json.Marshal(w.Events)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE outbound_webhooks SET url = $3, events = $4, enabled = $5, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`,
		w.TenantID, w.ID, w.URL, events, w.Enabled,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepo) Delete(ctx context.Context, tenantID, id string) error {
	if tenantID == "" || id == "" {
		return ErrInvalidArgument
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM outbound_webhooks WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepo) ListSubscribed(ctx context.Context, tenantID, event string) ([]Webhook, error) {
	all, err := r.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var out []Webhook
	for _, w := range all {
		if w.Enabled && w.Subscribed(event) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r *SQLRepo) AppendLog(ctx context.Context, l DeliveryLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outbound_webhook_logs (id, tenant_id, webhook_id, event, call_id, http_status, response, error_text, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		l.ID, l.TenantID, l.WebhookID, l.Event, l.CallID, l.HTTPStatus, l.Response, l.ErrorText, l.CreatedAt,
	)
	return err
}

func (r *SQLRepo) ListLogs(ctx context.Context, tenantID, webhookID string, limit, offset int) ([]DeliveryLog, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, webhook_id, event, call_id, http_status, response, error_text, created_at
		FROM outbound_webhook_logs
		WHERE tenant_id = $1 AND ($2 = '' OR webhook_id = $2)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		tenantID, webhookID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeliveryLog
	for rows.Next() {
		var l DeliveryLog
		if err := rows.Scan(&l.ID, &l.TenantID, &l.WebhookID, &l.Event, &l.CallID, &l.HTTPStatus, &l.Response, &l.ErrorText, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu       sync.Mutex
	webhooks map[string]Webhook
	logs     []DeliveryLog
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{webhooks: map[string]Webhook{}} }

func (r *MemoryRepo) Create(ctx context.Context, w Webhook) error {
	if w.ID == "" || w.TenantID == "" || w.URL == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.webhooks[w.ID] = w
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, tenantID, id string) (Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.webhooks[id]
	if !ok || w.TenantID != tenantID {
		return Webhook{}, ErrNotFound
	}
	return w, nil
}

func (r *MemoryRepo) List(ctx context.Context, tenantID string) ([]Webhook, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Webhook
	for _, w := range r.webhooks {
		if w.TenantID == tenantID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) Update(ctx context.Context, w Webhook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.webhooks[w.ID]
	if !ok || prev.TenantID != w.TenantID {
		return ErrNotFound
	}
	w.CreatedAt = prev.CreatedAt
	r.webhooks[w.ID] = w
	return nil
}

func (r *MemoryRepo) Delete(ctx context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.webhooks[id]
	if !ok || w.TenantID != tenantID {
		return ErrNotFound
	}
	delete(r.webhooks, id)
	return nil
}

func (r *MemoryRepo) ListSubscribed(ctx context.Context, tenantID, event string) ([]Webhook, error) {
	all, err := r.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var out []Webhook
	for _, w := range all {
		if w.Enabled && w.Subscribed(event) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r *MemoryRepo) AppendLog(ctx context.Context, l DeliveryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, l)
	return nil
}

func (r *MemoryRepo) ListLogs(ctx context.Context, tenantID, webhookID string, limit, offset int) ([]DeliveryLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []DeliveryLog
	for _, l := range r.logs {
		if l.TenantID != tenantID {
			continue
		}
		if webhookID != "" && l.WebhookID != webhookID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// Logs returns every recorded delivery attempt. Test helper.
func (r *MemoryRepo) Logs() []DeliveryLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DeliveryLog(nil), r.logs...)
}
