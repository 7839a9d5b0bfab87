package audit

import "time"

// Event is one ingestion outcome row.
//
// Outcomes:
// - accepted: event parsed and handled
// - dropped: event acknowledged but intentionally ignored (e.g. terminal
//   report without a caller number)
// - failed: malformed payload or synchronous persistence failure
type Event struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	EventType string    `json:"event_type" db:"event_type"`
	Outcome   Outcome   `json:"outcome" db:"outcome"`
	ErrorText string    `json:"error_text,omitempty" db:"error_text"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeDropped  Outcome = "dropped"
	OutcomeFailed   Outcome = "failed"
)
