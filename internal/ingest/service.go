// Package ingest accepts call-lifecycle events from the voice platform,
// maintains in-flight call state, persists terminal call records, and
// fans completed calls out to every downstream destination.
//
// The contract with the platform is acknowledgment-first: once an event
// parses and its synchronous write lands, the response goes out and
// every downstream failure stays behind it.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"voicehub-platform/internal/audit"
	"voicehub-platform/internal/cache"
	"voicehub-platform/internal/calls"
	"voicehub-platform/internal/lookup"
	"voicehub-platform/internal/outbound"
	"voicehub-platform/internal/tasks"
)

// WebhookDispatcher is the slice of the outbound dispatcher ingestion
// uses for fan-out jobs.
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, tenantID string, p outbound.Payload)
}

// CallSyncer pushes a completed call into every connected CRM.
type CallSyncer interface {
	SyncCall(ctx context.Context, rec calls.CallRecord)
}

// Enricher runs the post-call analysis pipeline.
type Enricher interface {
	EnrichCall(ctx context.Context, tenantID, callID string) error
}

type Service struct {
	records  calls.Repository
	audit    *audit.Service
	cache    cache.Store
	lookup   *lookup.Client
	runner   *tasks.Runner
	webhooks WebhookDispatcher
	syncer   CallSyncer
	enricher Enricher
	log      *slog.Logger
	clock    func() time.Time
}

func NewService(
	records calls.Repository,
	auditSvc *audit.Service,
	store cache.Store,
	lookupClient *lookup.Client,
	runner *tasks.Runner,
	webhooks WebhookDispatcher,
	syncer CallSyncer,
	enricher Enricher,
	log *slog.Logger,
) *Service {
	return &Service{
		records:  records,
		audit:    auditSvc,
		cache:    store,
		lookup:   lookupClient,
		runner:   runner,
		webhooks: webhooks,
		syncer:   syncer,
		enricher: enricher,
		log:      log,
		clock:    time.Now,
	}
}

// HandleEvent processes one parsed event for a tenant. A non-nil error
// means the synchronous write failed and the caller must NOT
// acknowledge; everything else is acknowledged, including intentional
// drops.
func (s *Service) HandleEvent(ctx context.Context, tenantID string, env Envelope, raw []byte) error {
	m := env.Message
	switch m.EventType() {
	case TypeStatusUpdate:
		return s.handleStatus(ctx, tenantID, m)
	case TypeEndOfCallReport:
		return s.handleTerminal(ctx, tenantID, m, raw)
	default:
		s.auditOutcome(ctx, tenantID, m.EventType(), audit.OutcomeDropped, "unknown event type")
		return nil
	}
}

func (s *Service) handleStatus(ctx context.Context, tenantID string, m Message) error {
	if m.Call.ID == "" {
		s.auditOutcome(ctx, tenantID, TypeStatusUpdate, audit.OutcomeDropped, "status update without call id")
		return nil
	}

	switch m.Status {
	case StatusEnded:
		if err := s.records.DeleteActiveCall(ctx, tenantID, m.Call.ID); err != nil && err != calls.ErrNotFound {
			s.auditOutcome(ctx, tenantID, TypeStatusUpdate, audit.OutcomeFailed, err.Error())
			return fmt.Errorf("delete active call: %w", err)
		}
		s.invalidate(ctx, tenantID)
		s.auditOutcome(ctx, tenantID, TypeStatusUpdate, audit.OutcomeAccepted, "")
		return nil

	case StatusRinging, StatusInProgress, StatusForwarding:
		number := m.CustomerNumber()
		info := s.lookup.Resolve(ctx, number)

		now := s.clock().UTC()
		ac := calls.ActiveCall{
			TenantID:       tenantID,
			ProviderCallID: m.Call.ID,
			CustomerNumber: number,
			CallerName:     info.Name,
			Carrier:        info.Carrier,
			LineType:       info.LineType,
			Status:         activeStatus(m.Status),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.records.UpsertActiveCall(ctx, ac); err != nil {
			s.auditOutcome(ctx, tenantID, TypeStatusUpdate, audit.OutcomeFailed, err.Error())
			return fmt.Errorf("upsert active call: %w", err)
		}
		s.invalidate(ctx, tenantID)
		s.auditOutcome(ctx, tenantID, TypeStatusUpdate, audit.OutcomeAccepted, "")

		if m.Status == StatusRinging {
			payload := outbound.Payload{
				Event:          outbound.EventCallStarted,
				CallID:         m.Call.ID,
				CustomerNumber: number,
			}
			s.runner.Submit(context.WithoutCancel(ctx), "webhook-fanout", tenantID, func(jobCtx context.Context) error {
				s.webhooks.Dispatch(jobCtx, tenantID, payload)
				return nil
			})
		}
		return nil

	default:
		s.auditOutcome(ctx, tenantID, TypeStatusUpdate, audit.OutcomeDropped, "unknown status "+m.Status)
		return nil
	}
}

func (s *Service) handleTerminal(ctx context.Context, tenantID string, m Message, raw []byte) error {
	number := m.CustomerNumber()
	if number == "" {
		// Internal or test traffic. Acknowledge and move on.
		s.auditOutcome(ctx, tenantID, TypeEndOfCallReport, audit.OutcomeDropped, "no customer number")
		return nil
	}

	now := s.clock().UTC()
	rec := calls.CallRecord{
		ID:              uuid.NewString(),
		ProviderCallID:  m.Call.ID,
		TenantID:        tenantID,
		LineNumber:      m.LineNumber(),
		CustomerNumber:  number,
		RecordingURL:    m.Artifact.RecordingURL,
		EndedReason:     m.EndedReason,
		Summary:         m.Analysis.Summary,
		Transcript:      m.Artifact.Transcript,
		StructuredData:  m.Analysis.StructuredData,
		RawPayload:      json.RawMessage(raw),
		DurationSeconds: m.Duration(),
		StartedAt:       m.StartedAt,
		EndedAt:         m.EndedAt,
		CreatedAt:       now,
	}

	inserted, err := s.records.InsertCallRecord(ctx, rec)
	if err != nil {
		s.auditOutcome(ctx, tenantID, TypeEndOfCallReport, audit.OutcomeFailed, err.Error())
		return fmt.Errorf("insert call record: %w", err)
	}
	if !inserted {
		// Replay of an already ingested call. Acknowledge without
		// re-running fan-out.
		s.auditOutcome(ctx, tenantID, TypeEndOfCallReport, audit.OutcomeDropped, "duplicate provider call id "+m.Call.ID)
		return nil
	}

	// Leftover state if the ended status update never arrived.
	if err := s.records.DeleteActiveCall(ctx, tenantID, m.Call.ID); err != nil && err != calls.ErrNotFound {
		s.log.Warn("active call cleanup failed", "tenant_id", tenantID, "provider_call_id", m.Call.ID, "error", err)
	}

	s.auditOutcome(ctx, tenantID, TypeEndOfCallReport, audit.OutcomeAccepted, "")

	// Invalidation must land before any background job can repopulate
	// the cache with pre-insert data.
	s.invalidate(ctx, tenantID)

	s.enqueueFanOut(ctx, tenantID, rec, m)
	return nil
}

// enqueueFanOut schedules the post-acknowledgment work. Each job is
// independent; the job context deliberately outlives the request.
func (s *Service) enqueueFanOut(ctx context.Context, tenantID string, rec calls.CallRecord, m Message) {
	jobCtx := context.WithoutCancel(ctx)

	payload := outbound.Payload{
		Event:           outbound.EventCallEnded,
		CallID:          rec.ID,
		CustomerNumber:  rec.CustomerNumber,
		DurationSeconds: rec.DurationSeconds,
		EndedReason:     rec.EndedReason,
		Summary:         rec.Summary,
		StructuredData:  rec.StructuredData,
		Messages:        turns(m.Artifact.Messages),
		RecordingURL:    rec.RecordingURL,
	}
	s.runner.Submit(jobCtx, "webhook-fanout", tenantID, func(c context.Context) error {
		s.webhooks.Dispatch(c, tenantID, payload)
		return nil
	})

	s.runner.Submit(jobCtx, "crm-sync", tenantID, func(c context.Context) error {
		s.syncer.SyncCall(c, rec)
		return nil
	})

	s.runner.Submit(jobCtx, "enrichment", tenantID, func(c context.Context) error {
		return s.enricher.EnrichCall(c, tenantID, rec.ID)
	})
}

func (s *Service) invalidate(ctx context.Context, tenantID string) {
	if err := s.cache.InvalidateTenant(ctx, tenantID); err != nil {
		s.log.Warn("tenant cache invalidation failed", "tenant_id", tenantID, "error", err)
	}
}

func (s *Service) auditOutcome(ctx context.Context, tenantID, eventType string, outcome audit.Outcome, errText string) {
	err := s.audit.Append(ctx, audit.Event{
		TenantID:  tenantID,
		EventType: eventType,
		Outcome:   outcome,
		ErrorText: errText,
	})
	if err != nil {
		s.log.Warn("audit write failed", "tenant_id", tenantID, "event_type", eventType, "error", err)
	}
}

func activeStatus(status string) calls.ActiveCallStatus {
	switch status {
	case StatusInProgress:
		return calls.ActiveCallInProgress
	case StatusForwarding:
		return calls.ActiveCallForwarding
	default:
		return calls.ActiveCallRinging
	}
}

func turns(in []Turn) []outbound.Turn {
	if len(in) == 0 {
		return nil
	}
	out := make([]outbound.Turn, len(in))
	for i, t := range in {
		out[i] = outbound.Turn{Role: t.Role, Message: t.Message}
	}
	return out
}
