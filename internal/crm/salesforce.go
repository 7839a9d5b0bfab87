package crm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"voicehub-platform/internal/tokenvault"
)

const salesforceAPIVersion = "v59.0"

// Salesforce searches Contacts and Leads via parameterized search seeded
// with a 6-digit substring, then post-filters candidates on the last-10
// national number. Its object model distinguishes prospects (Leads) from
// Contacts, so an unmatched caller becomes a new Lead instead of a skip.
type Salesforce struct {
	cfg    tokenvault.ProviderConfig
	client *http.Client

	// BaseURL overrides the token's instance URL; tests point it at a
	// local server.
	BaseURL string
}

func NewSalesforce(cfg tokenvault.ProviderConfig) *Salesforce {
	return &Salesforce{cfg: cfg, client: &http.Client{Timeout: 15 * time.Second}}
}

func (s *Salesforce) Provider() string                  { return ProviderSalesforce }
func (s *Salesforce) Config() tokenvault.ProviderConfig { return s.cfg }

func (s *Salesforce) base(tok tokenvault.Token) string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return tok.InstanceURL
}

type sfSearchResponse struct {
	SearchRecords []sfRecord `json:"searchRecords"`
}

type sfRecord struct {
	ID          string `json:"Id"`
	Phone       string `json:"Phone"`
	MobilePhone string `json:"MobilePhone"`
	Attributes  struct {
		Type string `json:"type"`
	} `json:"attributes"`
}

func (s *Salesforce) SearchByPhone(ctx context.Context, tok tokenvault.Token, phone string) (RecordRef, bool, error) {
	seed := SearchSeed(phone)
	if seed == "" {
		return RecordRef{}, false, nil
	}

	q := url.Values{}
	q.Set("q", seed)
	q.Set("sobject", "Contact")
	q.Add("sobject", "Lead")
	q.Set("Contact.fields", "Id,Phone,MobilePhone")
	q.Set("Lead.fields", "Id,Phone,MobilePhone")

	u := fmt.Sprintf("%s/services/data/%s/parameterizedSearch/?%s", s.base(tok), salesforceAPIVersion, q.Encode())

	var res sfSearchResponse
	if err := doJSON(ctx, s.client, http.MethodGet, u, tok.AccessToken, nil, &res); err != nil {
		return RecordRef{}, false, err
	}

	// The seed is deliberately loose; only last-10 agreement counts.
	for _, rec := range res.SearchRecords {
		if SameNationalNumber(rec.Phone, phone) || SameNationalNumber(rec.MobilePhone, phone) {
			return RecordRef{ID: rec.ID, Type: rec.Attributes.Type}, true, nil
		}
	}
	return RecordRef{}, false, nil
}

func (s *Salesforce) CreateProspect(ctx context.Context, tok tokenvault.Token, phone, name string) (RecordRef, error) {
	if name == "" {
		name = "Unknown Caller"
	}
	body := map[string]string{
		"LastName": name,
		"Company":  "Unknown",
		"Phone":    phone,
	}
	u := fmt.Sprintf("%s/services/data/%s/sobjects/Lead", s.base(tok), salesforceAPIVersion)

	var out struct {
		ID string `json:"id"`
	}
	if err := doJSON(ctx, s.client, http.MethodPost, u, tok.AccessToken, body, &out); err != nil {
		return RecordRef{}, err
	}
	return RecordRef{ID: out.ID, Type: "Lead"}, nil
}

func (s *Salesforce) CreateActivity(ctx context.Context, tok tokenvault.Token, ref RecordRef, call ActivitySummary) (string, error) {
	if ref.ID == "" {
		return "", ErrInvalidArgument
	}
	body := map[string]any{
		"Subject":      "Inbound call " + call.CustomerNumber,
		"Description":  call.Summary,
		"Status":       "Completed",
		"TaskSubtype":  "Call",
		"WhoId":        ref.ID,
		"ActivityDate": call.OccurredAt.Format("2006-01-02"),
	}
	if call.DurationSeconds > 0 {
		body["CallDurationInSeconds"] = call.DurationSeconds
	}
	u := fmt.Sprintf("%s/services/data/%s/sobjects/Task", s.base(tok), salesforceAPIVersion)

	var out struct {
		ID string `json:"id"`
	}
	if err := doJSON(ctx, s.client, http.MethodPost, u, tok.AccessToken, body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (s *Salesforce) CreateAppointment(ctx context.Context, tok tokenvault.Token, ref RecordRef, appt Appointment) (string, error) {
	if ref.ID == "" {
		return "", ErrInvalidArgument
	}
	body := map[string]any{
		"Subject":     "Appointment: " + appt.Type,
		"Description": appt.Notes,
		"WhoId":       ref.ID,
	}
	if appt.Date != "" {
		body["ActivityDate"] = appt.Date
	}
	u := fmt.Sprintf("%s/services/data/%s/sobjects/Event", s.base(tok), salesforceAPIVersion)

	var out struct {
		ID string `json:"id"`
	}
	if err := doJSON(ctx, s.client, http.MethodPost, u, tok.AccessToken, body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}
