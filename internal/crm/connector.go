package crm

import (
	"context"
	"errors"
	"time"

	"voicehub-platform/internal/tokenvault"
)

var (
	ErrNoMatch         = errors.New("crm: no matching record")
	ErrInvalidArgument = errors.New("crm: invalid argument")
)

// Provider names. These are also the token-vault provider keys and the
// sync-log table discriminators.
const (
	ProviderSalesforce = "salesforce"
	ProviderHubSpot    = "hubspot"
	ProviderPipedrive  = "pipedrive"
)

// RecordRef identifies a CRM record a call activity can attach to.
type RecordRef struct {
	ID   string `json:"id"`
	Type string `json:"type"` // provider object type: Contact, Lead, person, ...
}

// ActivitySummary is the call payload logged against a CRM record.
type ActivitySummary struct {
	CallID          string
	CustomerNumber  string
	CustomerName    string
	Summary         string
	EndedReason     string
	DurationSeconds int
	OccurredAt      time.Time
}

// Appointment carries the fields connectors with calendar objects accept.
type Appointment struct {
	Date  string
	Time  string
	Type  string
	Notes string
}

// Connector is the shared capability contract all providers implement.
// The orchestrator never inspects provider identity beyond Provider();
// provider-specific behavior lives entirely inside each implementation.
type Connector interface {
	Provider() string
	Config() tokenvault.ProviderConfig

	// SearchByPhone resolves a caller to a CRM record, trying multiple
	// phone representations. found=false with a nil error is a clean
	// no-match, logged as skipped.
	SearchByPhone(ctx context.Context, tok tokenvault.Token, phone string) (ref RecordRef, found bool, err error)

	// CreateActivity logs the call against the record.
	CreateActivity(ctx context.Context, tok tokenvault.Token, ref RecordRef, call ActivitySummary) (activityID string, err error)
}

// ProspectCreator is implemented by connectors whose object model
// distinguishes prospects from contacts: instead of skipping an unmatched
// caller, they create a minimal prospect record and log against it.
type ProspectCreator interface {
	CreateProspect(ctx context.Context, tok tokenvault.Token, phone, name string) (RecordRef, error)
}

// AppointmentCreator is the optional calendar capability.
type AppointmentCreator interface {
	CreateAppointment(ctx context.Context, tok tokenvault.Token, ref RecordRef, appt Appointment) (string, error)
}
