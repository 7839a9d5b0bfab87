package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"voicehub-platform/internal/audit"
	"voicehub-platform/internal/cache"
	"voicehub-platform/internal/calls"
	"voicehub-platform/internal/config"
	"voicehub-platform/internal/lookup"
	"voicehub-platform/internal/outbound"
	"voicehub-platform/internal/tasks"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	payloads []outbound.Payload
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, tenantID string, p outbound.Payload) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads = append(d.payloads, p)
}

func (d *fakeDispatcher) all() []outbound.Payload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]outbound.Payload(nil), d.payloads...)
}

type fakeSyncer struct {
	mu    sync.Mutex
	calls []calls.CallRecord
	panic bool
}

func (f *fakeSyncer) SyncCall(ctx context.Context, rec calls.CallRecord) {
	if f.panic {
		panic("connector exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rec)
}

type fakeEnricher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (f *fakeEnricher) EnrichCall(ctx context.Context, tenantID, callID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, callID)
	return f.err
}

type fixture struct {
	svc      *Service
	records  *calls.MemoryRepo
	auditLog *audit.MemoryRepo
	store    *cache.MemoryStore
	runner   *tasks.Runner
	disp     *fakeDispatcher
	syncer   *fakeSyncer
	enricher *fakeEnricher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		records:  calls.NewMemoryRepo(),
		auditLog: audit.NewMemoryRepo(),
		store:    cache.NewMemoryStore(),
		runner:   tasks.NewRunner(log),
		disp:     &fakeDispatcher{},
		syncer:   &fakeSyncer{},
		enricher: &fakeEnricher{},
	}
	f.svc = NewService(
		f.records,
		audit.NewService(f.auditLog),
		f.store,
		lookup.NewClient(config.LookupConfig{}, log), // disabled
		f.runner,
		f.disp,
		f.syncer,
		f.enricher,
		log,
	)
	return f
}

func terminalMessage() Message {
	started := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	ended := started.Add(95 * time.Second)
	return Message{
		Type:        TypeEndOfCallReport,
		Call:        CallInfo{ID: "prov-1"},
		Customer:    &Party{Number: "+15551234567"},
		PhoneNumber: &Party{Number: "+15559990000"},
		EndedReason: "customer-ended-call",
		StartedAt:   &started,
		EndedAt:     &ended,
		Artifact: Artifact{
			Transcript:   "I want a haircut",
			RecordingURL: "https://rec.example/1.wav",
			Messages:     []Turn{{Role: "user", Message: "hi"}},
		},
		Analysis: Analysis{Summary: "booking call"},
	}
}

func TestTerminalReportPersistsAndFansOut(t *testing.T) {
	f := newFixture(t)

	err := f.svc.HandleEvent(context.Background(), "t1", Envelope{Message: terminalMessage()}, []byte(`{}`))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	f.runner.Wait()

	recs, err := f.records.ListCallRecords(context.Background(), "t1", 10, 0)
	if err != nil || len(recs) != 1 {
		t.Fatalf("records = %v, err = %v", recs, err)
	}
	rec := recs[0]
	if rec.DurationSeconds != 95 {
		t.Fatalf("duration from timestamps = %d, want 95", rec.DurationSeconds)
	}
	if rec.CustomerNumber != "+15551234567" || rec.LineNumber != "+15559990000" {
		t.Fatalf("numbers wrong: %+v", rec)
	}

	// All three fan-out jobs ran.
	ps := f.disp.all()
	if len(ps) != 1 || ps[0].Event != outbound.EventCallEnded {
		t.Fatalf("fan-out payloads = %+v", ps)
	}
	if len(ps[0].Messages) != 1 || ps[0].Messages[0].Role != "user" {
		t.Fatalf("conversation turns missing: %+v", ps[0].Messages)
	}
	if len(f.syncer.calls) != 1 || f.syncer.calls[0].ID != rec.ID {
		t.Fatalf("crm sync not scheduled: %+v", f.syncer.calls)
	}
	if len(f.enricher.ids) != 1 || f.enricher.ids[0] != rec.ID {
		t.Fatalf("enrichment not scheduled: %+v", f.enricher.ids)
	}

	if got := f.auditLog.ByOutcome(audit.OutcomeAccepted); len(got) != 1 {
		t.Fatalf("accepted audit rows = %d", len(got))
	}
}

func TestTerminalReportExplicitDurationWins(t *testing.T) {
	f := newFixture(t)
	m := terminalMessage()
	m.DurationSeconds = 42

	if err := f.svc.HandleEvent(context.Background(), "t1", Envelope{Message: m}, []byte(`{}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	recs, _ := f.records.ListCallRecords(context.Background(), "t1", 10, 0)
	if recs[0].DurationSeconds != 42 {
		t.Fatalf("duration = %d, want explicit 42", recs[0].DurationSeconds)
	}
}

func TestTerminalReportWithoutNumberIsDropped(t *testing.T) {
	f := newFixture(t)
	m := terminalMessage()
	m.Customer = nil

	if err := f.svc.HandleEvent(context.Background(), "t1", Envelope{Message: m}, []byte(`{}`)); err != nil {
		t.Fatalf("drop must still acknowledge: %v", err)
	}
	f.runner.Wait()

	if recs, _ := f.records.ListCallRecords(context.Background(), "t1", 10, 0); len(recs) != 0 {
		t.Fatalf("no record expected, got %d", len(recs))
	}
	if len(f.disp.all()) != 0 || len(f.syncer.calls) != 0 || len(f.enricher.ids) != 0 {
		t.Fatal("dropped events must not fan out")
	}
	if got := f.auditLog.ByOutcome(audit.OutcomeDropped); len(got) != 1 {
		t.Fatalf("dropped audit rows = %d", len(got))
	}
}

func TestTerminalReportReplayIsDeduplicated(t *testing.T) {
	f := newFixture(t)
	env := Envelope{Message: terminalMessage()}

	if err := f.svc.HandleEvent(context.Background(), "t1", env, []byte(`{}`)); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := f.svc.HandleEvent(context.Background(), "t1", env, []byte(`{}`)); err != nil {
		t.Fatalf("replay must acknowledge: %v", err)
	}
	f.runner.Wait()

	if recs, _ := f.records.ListCallRecords(context.Background(), "t1", 10, 0); len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	if n := len(f.enricher.ids); n != 1 {
		t.Fatalf("replay must not re-run fan-out, enrich runs = %d", n)
	}
}

func TestBackgroundFailuresDoNotAffectAck(t *testing.T) {
	f := newFixture(t)
	f.syncer.panic = true
	f.enricher.err = errors.New("llm down")

	err := f.svc.HandleEvent(context.Background(), "t1", Envelope{Message: terminalMessage()}, []byte(`{}`))
	if err != nil {
		t.Fatalf("background failures must not surface: %v", err)
	}
	f.runner.Wait()

	// Webhook fan-out is unaffected by its failing siblings.
	if len(f.disp.all()) != 1 {
		t.Fatalf("dispatch runs = %d, want 1", len(f.disp.all()))
	}
}

func TestStatusUpdateLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ringing := Message{
		Type:     TypeStatusUpdate,
		Status:   StatusRinging,
		Call:     CallInfo{ID: "prov-9"},
		Customer: &Party{Number: "+15551234567"},
	}
	if err := f.svc.HandleEvent(ctx, "t1", Envelope{Message: ringing}, nil); err != nil {
		t.Fatalf("ringing: %v", err)
	}
	f.runner.Wait()

	active, _ := f.records.ListActiveCalls(ctx, "t1")
	if len(active) != 1 || active[0].Status != calls.ActiveCallRinging {
		t.Fatalf("active = %+v", active)
	}
	ps := f.disp.all()
	if len(ps) != 1 || ps[0].Event != outbound.EventCallStarted {
		t.Fatalf("ringing must fan out call.started, got %+v", ps)
	}

	inProgress := ringing
	inProgress.Status = StatusInProgress
	if err := f.svc.HandleEvent(ctx, "t1", Envelope{Message: inProgress}, nil); err != nil {
		t.Fatalf("in-progress: %v", err)
	}
	f.runner.Wait()

	active, _ = f.records.ListActiveCalls(ctx, "t1")
	if len(active) != 1 || active[0].Status != calls.ActiveCallInProgress {
		t.Fatalf("active after in-progress = %+v", active)
	}
	if len(f.disp.all()) != 1 {
		t.Fatal("only ringing fans out call.started")
	}

	ended := ringing
	ended.Status = StatusEnded
	if err := f.svc.HandleEvent(ctx, "t1", Envelope{Message: ended}, nil); err != nil {
		t.Fatalf("ended: %v", err)
	}
	if active, _ = f.records.ListActiveCalls(ctx, "t1"); len(active) != 0 {
		t.Fatalf("active after ended = %+v", active)
	}
}

func TestCacheInvalidatedBeforeFanOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	key := cache.Key(cache.NamespaceCallList, "t1", "page1")
	if err := f.store.Set(ctx, key, []byte("stale"), time.Minute); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	if err := f.svc.HandleEvent(ctx, "t1", Envelope{Message: terminalMessage()}, []byte(`{}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	// Before waiting on background work, the stale entry is already gone.
	if _, hit, _ := f.store.Get(ctx, key); hit {
		t.Fatal("stale cache entry survived the synchronous path")
	}
	f.runner.Wait()
}

func TestEventTypeDefaultsToTerminalReport(t *testing.T) {
	f := newFixture(t)
	m := terminalMessage()
	m.Type = ""

	if err := f.svc.HandleEvent(context.Background(), "t1", Envelope{Message: m}, []byte(`{}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if recs, _ := f.records.ListCallRecords(context.Background(), "t1", 10, 0); len(recs) != 1 {
		t.Fatalf("untyped event must be treated as terminal, records = %d", len(recs))
	}
}

func TestRawPayloadStored(t *testing.T) {
	f := newFixture(t)
	raw := []byte(`{"message":{"custom":"stuff"}}`)

	if err := f.svc.HandleEvent(context.Background(), "t1", Envelope{Message: terminalMessage()}, raw); err != nil {
		t.Fatalf("handle: %v", err)
	}
	recs, _ := f.records.ListCallRecords(context.Background(), "t1", 10, 0)
	var stored map[string]any
	if err := json.Unmarshal(recs[0].RawPayload, &stored); err != nil {
		t.Fatalf("raw payload not kept verbatim: %v", err)
	}
}
