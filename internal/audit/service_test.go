package audit

import (
	"context"
	"testing"
	"time"
)

func TestService_Append_FillsDefaults(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	now := time.Unix(1700000000, 0).UTC()
	svc.clock = func() time.Time { return now }

	err := svc.Append(context.Background(), Event{
		TenantID:  "t1",
		EventType: "end-of-call-report",
		Outcome:   OutcomeAccepted,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(repo.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(repo.Events))
	}
	e := repo.Events[0]
	if e.ID == "" {
		t.Fatalf("expected generated id")
	}
	if !e.CreatedAt.Equal(now) {
		t.Fatalf("expected clock timestamp, got %v", e.CreatedAt)
	}
}

func TestService_Append_RejectsInvalid(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{Outcome: OutcomeFailed}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent for missing event type, got %v", err)
	}
	if err := svc.Append(context.Background(), Event{EventType: "status-update"}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent for missing outcome, got %v", err)
	}
}
