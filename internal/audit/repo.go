package audit

import (
	"context"
	"database/sql"
	"sync"
)

// SQLRepo appends audit events to Postgres.
type SQLRepo struct {
	db *sql.DB
}

func NewSQLRepo(db *sql.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ingestion_audit_log (id, tenant_id, event_type, outcome, error_text, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.TenantID, e.EventType, e.Outcome, e.ErrorText, e.CreatedAt,
	)
	return err
}

// MemoryRepo collects audit events in memory for tests.
type MemoryRepo struct {
	mu     sync.Mutex
	Events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, e)
	return nil
}

// ByOutcome returns recorded events with the given outcome. Test helper.
func (r *MemoryRepo) ByOutcome(o Outcome) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.Events {
		if e.Outcome == o {
			out = append(out, e)
		}
	}
	return out
}
