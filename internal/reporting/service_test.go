package reporting

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"voicehub-platform/internal/cache"
	"voicehub-platform/internal/calls"
)

func newTestService(t *testing.T) (*Service, *calls.MemoryRepo, *cache.MemoryStore) {
	t.Helper()
	records := calls.NewMemoryRepo()
	store := cache.NewMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(records, store, log), records, store
}

func seed(t *testing.T, records *calls.MemoryRepo, providerID string) calls.CallRecord {
	t.Helper()
	rec := calls.CallRecord{
		ID:             "rec-" + providerID,
		ProviderCallID: providerID,
		TenantID:       "t1",
		CustomerNumber: "+15551234567",
		Summary:        "summary " + providerID,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := records.InsertCallRecord(context.Background(), rec); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return rec
}

func TestListCallsReadThrough(t *testing.T) {
	svc, records, store := newTestService(t)
	ctx := context.Background()
	seed(t, records, "p1")

	page, err := svc.ListCalls(ctx, "t1", 25, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Calls) != 1 {
		t.Fatalf("calls = %d", len(page.Calls))
	}

	// A record inserted after the first read stays invisible until the
	// cache entry goes away; invalidation makes it visible.
	seed(t, records, "p2")
	page, _ = svc.ListCalls(ctx, "t1", 25, 0)
	if len(page.Calls) != 1 {
		t.Fatalf("expected cached page, got %d calls", len(page.Calls))
	}

	if err := store.InvalidateTenant(ctx, "t1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	page, _ = svc.ListCalls(ctx, "t1", 25, 0)
	if len(page.Calls) != 2 {
		t.Fatalf("expected fresh page after invalidation, got %d calls", len(page.Calls))
	}
}

func TestGetCallCachesDetail(t *testing.T) {
	svc, records, store := newTestService(t)
	ctx := context.Background()
	rec := seed(t, records, "p1")

	got, err := svc.GetCall(ctx, "t1", rec.ID)
	if err != nil || got.Summary != rec.Summary {
		t.Fatalf("got %+v, err %v", got, err)
	}
	key := cache.Key(cache.NamespaceCallDetail, "t1", rec.ID)
	if _, hit, _ := store.Get(ctx, key); !hit {
		t.Fatal("detail not cached")
	}

	if _, err := svc.GetCall(ctx, "t1", "missing"); err != calls.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetCallTenantIsolation(t *testing.T) {
	svc, records, _ := newTestService(t)
	rec := seed(t, records, "p1")

	if _, err := svc.GetCall(context.Background(), "other-tenant", rec.ID); err != calls.ErrNotFound {
		t.Fatalf("cross-tenant read must miss, err = %v", err)
	}
}

func TestDashboard(t *testing.T) {
	svc, records, _ := newTestService(t)
	ctx := context.Background()

	if err := records.UpsertActiveCall(ctx, calls.ActiveCall{
		TenantID: "t1", ProviderCallID: "p1", CustomerNumber: "+15551234567",
		Status: calls.ActiveCallRinging, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("active: %v", err)
	}
	now := time.Now()
	_ = records.UpsertKeyword(ctx, "t1", "haircut", 3, 1, now)
	_ = records.UpsertKeyword(ctx, "t1", "haircut", 2, -1, now)

	d, err := svc.GetDashboard(ctx, "t1")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.ActiveCalls != 1 {
		t.Fatalf("active = %d", d.ActiveCalls)
	}
	if len(d.TopKeywords) != 1 || d.TopKeywords[0].Mentions != 5 {
		t.Fatalf("keywords = %+v", d.TopKeywords)
	}
	if avg := d.TopKeywords[0].AverageSentiment; avg != 0 {
		t.Fatalf("average sentiment = %v, want 0", avg)
	}
}
