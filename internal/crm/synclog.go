package crm

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// SyncStatus is the outcome of one connector sync attempt.
type SyncStatus string

const (
	SyncSuccess SyncStatus = "success"
	// SyncSkipped means the phone lookup found nothing; distinct from error.
	SyncSkipped SyncStatus = "skipped"
	SyncError   SyncStatus = "error"
)

// SyncLog is one append-only row per sync attempt, success or failure.
// There is no silent drop.
type SyncLog struct {
	ID          string     `json:"id" db:"id"`
	TenantID    string     `json:"tenant_id" db:"tenant_id"`
	CallID      string     `json:"call_id" db:"call_id"`
	CRMRecordID string     `json:"crm_record_id,omitempty" db:"crm_record_id"`
	Status      SyncStatus `json:"status" db:"status"`
	ErrorText   string     `json:"error_text,omitempty" db:"error_text"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// SyncLogStore persists sync attempts, one table per connector.
type SyncLogStore interface {
	Append(ctx context.Context, provider string, l SyncLog) error
	List(ctx context.Context, provider, tenantID string, status SyncStatus, limit, offset int) ([]SyncLog, error)
}

// syncLogTables whitelists the per-connector tables; provider names never
// reach SQL directly.
var syncLogTables = map[string]string{
	ProviderSalesforce: "salesforce_sync_logs",
	ProviderHubSpot:    "hubspot_sync_logs",
	ProviderPipedrive:  "pipedrive_sync_logs",
}

type SQLSyncLogStore struct {
	db *sql.DB
}

func NewSQLSyncLogStore(db *sql.DB) *SQLSyncLogStore { return &SQLSyncLogStore{db: db} }

func (s *SQLSyncLogStore) Append(ctx context.Context, provider string, l SyncLog) error {
	table, ok := syncLogTables[provider]
	if !ok {
		return fmt.Errorf("crm: unknown provider %q", provider)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, tenant_id, call_id, crm_record_id, status, error_text, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`, table),
		l.ID, l.TenantID, l.CallID, l.CRMRecordID, l.Status, l.ErrorText, l.CreatedAt,
	)
	return err
}

func (s *SQLSyncLogStore) List(ctx context.Context, provider, tenantID string, status SyncStatus, limit, offset int) ([]SyncLog, error) {
	table, ok := syncLogTables[provider]
	if !ok {
		return nil, fmt.Errorf("crm: unknown provider %q", provider)
	}
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT id, tenant_id, call_id, crm_record_id, status, error_text, created_at
		FROM %s WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`, table)

	rows, err := s.db.QueryContext(ctx, query, tenantID, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SyncLog
	for rows.Next() {
		var l SyncLog
		if err := rows.Scan(&l.ID, &l.TenantID, &l.CallID, &l.CRMRecordID, &l.Status, &l.ErrorText, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// MemorySyncLogStore collects sync logs per provider for tests.
type MemorySyncLogStore struct {
	mu   sync.Mutex
	logs map[string][]SyncLog
}

func NewMemorySyncLogStore() *MemorySyncLogStore {
	return &MemorySyncLogStore{logs: map[string][]SyncLog{}}
}

func (s *MemorySyncLogStore) Append(ctx context.Context, provider string, l SyncLog) error {
	if _, ok := syncLogTables[provider]; !ok {
		return fmt.Errorf("crm: unknown provider %q", provider)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[provider] = append(s.logs[provider], l)
	return nil
}

func (s *MemorySyncLogStore) List(ctx context.Context, provider, tenantID string, status SyncStatus, limit, offset int) ([]SyncLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SyncLog
	for _, l := range s.logs[provider] {
		if l.TenantID != tenantID {
			continue
		}
		if status != "" && l.Status != status {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// All returns every row appended for a provider. Test helper.
func (s *MemorySyncLogStore) All(provider string) []SyncLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SyncLog(nil), s.logs[provider]...)
}
