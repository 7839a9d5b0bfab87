package calls

import (
	"encoding/json"
	"time"
)

// CallRecord is the persisted record of one completed call.
//
// Multi-tenant invariant: TenantID is required on every row.
//
// Created once per end-of-call report; enrichment later mutates the derived
// fields in place (disjoint column set). Rows are never deleted.
//
// Invariant: a record is only created when CustomerNumber is present.
// Terminal events without one are internal/test traffic and are dropped.
type CallRecord struct {
	ID             string `json:"id" db:"id"`
	ProviderCallID string `json:"provider_call_id" db:"provider_call_id"`
	TenantID       string `json:"tenant_id" db:"tenant_id"`

	// LineNumber is the receiving line; CustomerNumber is the caller.
	LineNumber     string `json:"line_number" db:"line_number"`
	CustomerNumber string `json:"customer_number" db:"customer_number"`

	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`
	EndedReason  string `json:"ended_reason,omitempty" db:"ended_reason"`
	Summary      string `json:"summary,omitempty" db:"summary"`
	Transcript   string `json:"transcript,omitempty" db:"transcript"`

	// StructuredData holds fields the voice platform extracted itself.
	// These take precedence over LLM-inferred values during enrichment.
	StructuredData json.RawMessage `json:"structured_data,omitempty" db:"structured_data"`
	RawPayload     json.RawMessage `json:"-" db:"raw_payload"`

	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	// Derived fields written by the enrichment pipeline.
	Intent           string `json:"intent,omitempty" db:"intent"`
	Sentiment        string `json:"sentiment,omitempty" db:"sentiment"`
	Outcome          string `json:"outcome,omitempty" db:"outcome"`
	AppointmentDate  string `json:"appointment_date,omitempty" db:"appointment_date"`
	AppointmentTime  string `json:"appointment_time,omitempty" db:"appointment_time"`
	AppointmentType  string `json:"appointment_type,omitempty" db:"appointment_type"`
	AppointmentNotes string `json:"appointment_notes,omitempty" db:"appointment_notes"`
	CustomerName     string `json:"customer_name,omitempty" db:"customer_name"`
	CustomerEmail    string `json:"customer_email,omitempty" db:"customer_email"`

	AnalysisCompleted bool `json:"analysis_completed" db:"analysis_completed"`

	StartedAt *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// EnrichmentUpdate is the disjoint column set the enrichment pipeline writes.
type EnrichmentUpdate struct {
	Intent           string
	Sentiment        string
	Outcome          string
	AppointmentDate  string
	AppointmentTime  string
	AppointmentType  string
	AppointmentNotes string
	CustomerName     string
	CustomerEmail    string
}

// ActiveCall is the ephemeral row for a call that has started but not ended.
// Upserted on status events, deleted on call end or by the stale sweep.
type ActiveCall struct {
	TenantID       string `json:"tenant_id" db:"tenant_id"`
	ProviderCallID string `json:"provider_call_id" db:"provider_call_id"`

	CustomerNumber string `json:"customer_number" db:"customer_number"`
	CallerName     string `json:"caller_name,omitempty" db:"caller_name"`
	Carrier        string `json:"carrier,omitempty" db:"carrier"`
	LineType       string `json:"line_type,omitempty" db:"line_type"`

	Status ActiveCallStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type ActiveCallStatus string

const (
	ActiveCallRinging    ActiveCallStatus = "ringing"
	ActiveCallInProgress ActiveCallStatus = "in_progress"
	ActiveCallForwarding ActiveCallStatus = "forwarding"
)

// KeywordCounter aggregates transcript keywords per tenant with a running
// sentiment average across the calls that mentioned the keyword.
type KeywordCounter struct {
	TenantID string `json:"tenant_id" db:"tenant_id"`
	Keyword  string `json:"keyword" db:"keyword"`

	Mentions int `json:"mentions" db:"mentions"`

	// SentimentTotal / SentimentSamples give the running average without
	// rounding drift on every upsert.
	SentimentTotal   float64 `json:"-" db:"sentiment_total"`
	SentimentSamples int     `json:"-" db:"sentiment_samples"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SentimentAverage returns the running average, 0 when no samples exist.
func (k KeywordCounter) SentimentAverage() float64 {
	if k.SentimentSamples == 0 {
		return 0
	}
	return k.SentimentTotal / float64(k.SentimentSamples)
}
