package calls

import (
	"context"
	"testing"
	"time"
)

func TestUpsertActiveCall_TimestampContract(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	created := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	err := repo.UpsertActiveCall(ctx, ActiveCall{
		TenantID:       "t1",
		ProviderCallID: "call-1",
		CustomerNumber: "+15551234567",
		Status:         ActiveCallRinging,
		CreatedAt:      created,
		UpdatedAt:      created,
	})
	if err != nil {
		t.Fatal(err)
	}

	// A later status update keeps the original created_at and moves updated_at.
	updated := created.Add(30 * time.Second)
	err = repo.UpsertActiveCall(ctx, ActiveCall{
		TenantID:       "t1",
		ProviderCallID: "call-1",
		CustomerNumber: "+15551234567",
		Status:         ActiveCallInProgress,
		CreatedAt:      updated,
		UpdatedAt:      updated,
	})
	if err != nil {
		t.Fatal(err)
	}

	active, err := repo.ListActiveCalls(ctx, "t1")
	if err != nil || len(active) != 1 {
		t.Fatalf("active = %v, err = %v", active, err)
	}
	ac := active[0]
	if !ac.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v, want original %v", ac.CreatedAt, created)
	}
	if !ac.UpdatedAt.Equal(updated) {
		t.Fatalf("updated_at = %v, want %v", ac.UpdatedAt, updated)
	}
	if ac.Status != ActiveCallInProgress {
		t.Fatalf("status = %q", ac.Status)
	}
}

func TestUpsertActiveCall_DefaultsZeroTimestamps(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	err := repo.UpsertActiveCall(ctx, ActiveCall{
		TenantID:       "t1",
		ProviderCallID: "call-1",
		CustomerNumber: "+15551234567",
		Status:         ActiveCallRinging,
	})
	if err != nil {
		t.Fatal(err)
	}

	active, _ := repo.ListActiveCalls(ctx, "t1")
	if len(active) != 1 {
		t.Fatalf("active = %v", active)
	}
	if active[0].CreatedAt.IsZero() || active[0].UpdatedAt.IsZero() {
		t.Fatalf("timestamps not defaulted: %+v", active[0])
	}

	// A row written moments ago must survive a stale sweep; only rows
	// older than the cutoff go.
	n, err := repo.DeleteStaleActiveCalls(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("stale sweep removed %d fresh rows", n)
	}
	if active, _ := repo.ListActiveCalls(ctx, "t1"); len(active) != 1 {
		t.Fatal("fresh active call swept")
	}
}
