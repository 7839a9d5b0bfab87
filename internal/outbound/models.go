package outbound

import "time"

// Event names destinations can subscribe to.
//
// EventAppointmentScheduled is the scheduling trigger: endpoints subscribed
// to it form the scheduling-dispatch set fired by enrichment.
const (
	EventCallStarted          = "call.started"
	EventCallEnded            = "call.ended"
	EventAppointmentScheduled = "appointment.scheduled"
)

// KnownEvents validates subscription input.
func KnownEvent(e string) bool {
	switch e {
	case EventCallStarted, EventCallEnded, EventAppointmentScheduled:
		return true
	default:
		return false
	}
}

// Webhook is a tenant-registered destination URL with its subscribed events.
type Webhook struct {
	ID       string   `json:"id" db:"id"`
	TenantID string   `json:"tenant_id" db:"tenant_id"`
	URL      string   `json:"url" db:"url"`
	Events   []string `json:"events" db:"events"`
	Enabled  bool     `json:"enabled" db:"enabled"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Subscribed reports whether the destination wants the event.
func (w Webhook) Subscribed(event string) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// DeliveryLog is one append-only row per dispatch attempt, success or
// failure. There is no silent drop and no automatic retry.
type DeliveryLog struct {
	ID        string `json:"id" db:"id"`
	TenantID  string `json:"tenant_id" db:"tenant_id"`
	WebhookID string `json:"webhook_id" db:"webhook_id"`
	Event     string `json:"event" db:"event"`
	CallID    string `json:"call_id,omitempty" db:"call_id"`

	// HTTPStatus is 0 on transport errors.
	HTTPStatus int    `json:"http_status" db:"http_status"`
	Response   string `json:"response,omitempty" db:"response"`
	ErrorText  string `json:"error_text,omitempty" db:"error_text"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
