package ingest

import (
	"encoding/json"
	"time"
)

// Event types sent by the voice platform.
const (
	TypeStatusUpdate    = "status-update"
	TypeEndOfCallReport = "end-of-call-report"
)

// Call statuses carried on status updates.
const (
	StatusRinging    = "ringing"
	StatusInProgress = "in-progress"
	StatusForwarding = "forwarding"
	StatusEnded      = "ended"
)

// Envelope is the provider's webhook body. Everything of interest is
// nested under "message".
type Envelope struct {
	Message Message `json:"message"`
}

type Message struct {
	// Type defaults to end-of-call-report when absent; older platform
	// versions omit it on terminal events.
	Type   string `json:"type"`
	Status string `json:"status"`

	Call        CallInfo `json:"call"`
	Customer    *Party   `json:"customer"`
	PhoneNumber *Party   `json:"phoneNumber"`

	EndedReason     string     `json:"endedReason"`
	DurationSeconds float64    `json:"durationSeconds"`
	StartedAt       *time.Time `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt"`

	Artifact Artifact `json:"artifact"`
	Analysis Analysis `json:"analysis"`
}

type CallInfo struct {
	ID       string `json:"id"`
	Customer *Party `json:"customer"`
}

type Party struct {
	Number string `json:"number"`
}

type Artifact struct {
	Transcript   string `json:"transcript"`
	RecordingURL string `json:"recordingUrl"`
	Messages     []Turn `json:"messages"`
}

type Turn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

type Analysis struct {
	Summary        string          `json:"summary"`
	StructuredData json.RawMessage `json:"structuredData"`
}

// EventType normalizes the tag.
func (m Message) EventType() string {
	if m.Type == "" {
		return TypeEndOfCallReport
	}
	return m.Type
}

// CustomerNumber prefers the top-level customer; the nested call-level
// one rides on some status updates instead.
func (m Message) CustomerNumber() string {
	if m.Customer != nil && m.Customer.Number != "" {
		return m.Customer.Number
	}
	if m.Call.Customer != nil {
		return m.Call.Customer.Number
	}
	return ""
}

// LineNumber is the receiving line, when the platform includes it.
func (m Message) LineNumber() string {
	if m.PhoneNumber != nil {
		return m.PhoneNumber.Number
	}
	return ""
}

// Duration resolves call length in seconds: the explicit field wins,
// then the start/end timestamp delta, else zero.
func (m Message) Duration() int {
	if m.DurationSeconds > 0 {
		return int(m.DurationSeconds)
	}
	if m.StartedAt != nil && m.EndedAt != nil && m.EndedAt.After(*m.StartedAt) {
		return int(m.EndedAt.Sub(*m.StartedAt).Seconds())
	}
	return 0
}
