package crm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"voicehub-platform/internal/calls"
	"voicehub-platform/internal/tokenvault"

	"github.com/google/uuid"
)

// TokenSource yields a usable access token for (tenant, provider).
// *tokenvault.Manager is the production implementation.
type TokenSource interface {
	EnsureValidToken(ctx context.Context, tenantID string, cfg tokenvault.ProviderConfig) (tokenvault.Token, error)
}

// Syncer fans a completed call out to every configured connector.
//
// Isolation contract: each connector syncs independently; one failing never
// prevents or rolls back another, and every attempt writes exactly one
// sync-log row.
type Syncer struct {
	vault      TokenSource
	connectors []Connector
	logs       SyncLogStore
	clock      func() time.Time
}

func NewSyncer(vault TokenSource, logs SyncLogStore, connectors ...Connector) *Syncer {
	return &Syncer{vault: vault, connectors: connectors, logs: logs, clock: time.Now}
}

// Connectors exposes the configured connector set (for route wiring).
func (s *Syncer) Connectors() []Connector { return s.connectors }

// SyncCall runs every connector against the record. Called from a
// background task; errors are fully absorbed into sync-log rows.
func (s *Syncer) SyncCall(ctx context.Context, rec calls.CallRecord) {
	for _, conn := range s.connectors {
		l := s.syncOne(ctx, conn, rec)
		if err := s.logs.Append(ctx, conn.Provider(), l); err != nil {
			// The log row is the delivery guarantee; losing it is worth a loud log line.
			slog.ErrorContext(ctx, "sync log append failed",
				"provider", conn.Provider(), "tenant_id", rec.TenantID, "call_id", rec.ID, "err", err)
		}
	}
}

func (s *Syncer) syncOne(ctx context.Context, conn Connector, rec calls.CallRecord) (l SyncLog) {
	l = SyncLog{
		ID:        uuid.NewString(),
		TenantID:  rec.TenantID,
		CallID:    rec.ID,
		CreatedAt: s.clock().UTC(),
	}
	// A panicking connector must still produce its log row and must not
	// starve the connectors after it.
	defer func() {
		if r := recover(); r != nil {
			l.Status = SyncError
			l.ErrorText = fmt.Sprintf("connector panic: %v", r)
			slog.ErrorContext(ctx, "crm connector panicked",
				"provider", conn.Provider(), "tenant_id", rec.TenantID, "call_id", rec.ID, "panic", r)
		}
	}()

	tok, err := s.vault.EnsureValidToken(ctx, rec.TenantID, conn.Config())
	if errors.Is(err, tokenvault.ErrNotConnected) {
		l.Status = SyncSkipped
		l.ErrorText = "integration not connected"
		return l
	}
	if err != nil {
		l.Status = SyncError
		l.ErrorText = err.Error()
		return l
	}

	ref, found, err := conn.SearchByPhone(ctx, tok, rec.CustomerNumber)
	if err != nil {
		l.Status = SyncError
		l.ErrorText = err.Error()
		return l
	}
	if !found {
		pc, ok := conn.(ProspectCreator)
		if !ok {
			l.Status = SyncSkipped
			l.ErrorText = "no record matched phone " + NationalNumber(rec.CustomerNumber)
			return l
		}
		ref, err = pc.CreateProspect(ctx, tok, rec.CustomerNumber, rec.CustomerName)
		if err != nil {
			l.Status = SyncError
			l.ErrorText = err.Error()
			return l
		}
	}
	l.CRMRecordID = ref.ID

	_, err = conn.CreateActivity(ctx, tok, ref, ActivitySummary{
		CallID:          rec.ID,
		CustomerNumber:  rec.CustomerNumber,
		CustomerName:    rec.CustomerName,
		Summary:         rec.Summary,
		EndedReason:     rec.EndedReason,
		DurationSeconds: rec.DurationSeconds,
		OccurredAt:      pickOccurredAt(rec, s.clock),
	})
	if err != nil {
		l.Status = SyncError
		l.ErrorText = err.Error()
		return l
	}

	l.Status = SyncSuccess
	return l
}

func pickOccurredAt(rec calls.CallRecord, clock func() time.Time) time.Time {
	if rec.EndedAt != nil {
		return *rec.EndedAt
	}
	if rec.StartedAt != nil {
		return *rec.StartedAt
	}
	if !rec.CreatedAt.IsZero() {
		return rec.CreatedAt
	}
	return clock().UTC()
}
