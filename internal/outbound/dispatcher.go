package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// maxLoggedResponse bounds what a destination can push into our log table.
const maxLoggedResponse = 512

// Turn is one conversation exchange included in terminal payloads.
type Turn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Payload is the normalized body POSTed to destinations.
// Terminal events carry the full call summary; call.started only the basics.
type Payload struct {
	Event          string    `json:"event"`
	Timestamp      time.Time `json:"timestamp"`
	CallID         string    `json:"call_id"`
	CustomerNumber string    `json:"customer_number"`

	DurationSeconds int             `json:"duration_seconds,omitempty"`
	EndedReason     string          `json:"ended_reason,omitempty"`
	Summary         string          `json:"summary,omitempty"`
	StructuredData  json.RawMessage `json:"structured_data,omitempty"`
	Messages        []Turn          `json:"messages,omitempty"`
	RecordingURL    string          `json:"recording_url,omitempty"`

	Appointment *AppointmentInfo `json:"appointment,omitempty"`
}

// AppointmentInfo rides on appointment.scheduled payloads.
type AppointmentInfo struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Type  string `json:"type,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// Dispatcher delivers payloads to every subscribed destination.
//
// Delivery is at-least-once with no automatic retry: each attempt appends
// exactly one log row and a failed destination never affects the others.
type Dispatcher struct {
	repo   Repository
	client *http.Client
	clock  func() time.Time
}

func NewDispatcher(repo Repository) *Dispatcher {
	return &Dispatcher{
		repo:   repo,
		client: &http.Client{Timeout: 10 * time.Second},
		clock:  time.Now,
	}
}

// Dispatch fans the payload out to the tenant's destinations subscribed to
// p.Event. Runs inside a background task; all failures end up in log rows.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID string, p Payload) {
	hooks, err := d.repo.ListSubscribed(ctx, tenantID, p.Event)
	if err != nil {
		slog.ErrorContext(ctx, "webhook destination lookup failed",
			"tenant_id", tenantID, "event", p.Event, "err", err)
		return
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = d.clock().UTC()
	}

	body, err := json.Marshal(p)
	if err != nil {
		slog.ErrorContext(ctx, "webhook payload marshal failed",
			"tenant_id", tenantID, "event", p.Event, "err", err)
		return
	}

	for _, hook := range hooks {
		l := d.deliver(ctx, hook, p, body)
		if err := d.repo.AppendLog(ctx, l); err != nil {
			slog.ErrorContext(ctx, "webhook log append failed",
				"tenant_id", tenantID, "webhook_id", hook.ID, "err", err)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, hook Webhook, p Payload, body []byte) DeliveryLog {
	l := DeliveryLog{
		ID:        uuid.NewString(),
		TenantID:  hook.TenantID,
		WebhookID: hook.ID,
		Event:     p.Event,
		CallID:    p.CallID,
		CreatedAt: d.clock().UTC(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		l.ErrorText = err.Error()
		return l
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "voicehub-webhooks/1.0")

	res, err := d.client.Do(req)
	if err != nil {
		l.ErrorText = err.Error()
		return l
	}
	defer res.Body.Close()

	l.HTTPStatus = res.StatusCode
	respBody, _ := io.ReadAll(io.LimitReader(res.Body, maxLoggedResponse))
	l.Response = string(respBody)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		l.ErrorText = "destination returned non-2xx"
	}
	return l
}
