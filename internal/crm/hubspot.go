package crm

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"voicehub-platform/internal/tokenvault"
)

// HubSpot resolves callers with the contacts search API using a
// CONTAINS_TOKEN filter against the last-10 digits, trying each candidate
// representation in turn since phone properties are stored unnormalized.
type HubSpot struct {
	cfg    tokenvault.ProviderConfig
	client *http.Client

	BaseURL string
}

func NewHubSpot(cfg tokenvault.ProviderConfig) *HubSpot {
	return &HubSpot{
		cfg:     cfg,
		client:  &http.Client{Timeout: 15 * time.Second},
		BaseURL: "https://api.hubapi.com",
	}
}

func (h *HubSpot) Provider() string                  { return ProviderHubSpot }
func (h *HubSpot) Config() tokenvault.ProviderConfig { return h.cfg }

type hsSearchRequest struct {
	FilterGroups []hsFilterGroup `json:"filterGroups"`
	Properties   []string        `json:"properties"`
	Limit        int             `json:"limit"`
}

type hsFilterGroup struct {
	Filters []hsFilter `json:"filters"`
}

type hsFilter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type hsSearchResponse struct {
	Results []struct {
		ID         string `json:"id"`
		Properties struct {
			Phone       string `json:"phone"`
			MobilePhone string `json:"mobilephone"`
		} `json:"properties"`
	} `json:"results"`
}

func (h *HubSpot) SearchByPhone(ctx context.Context, tok tokenvault.Token, phone string) (RecordRef, bool, error) {
	for _, cand := range CandidateFormats(phone) {
		req := hsSearchRequest{
			// OR across property filters: separate groups.
			FilterGroups: []hsFilterGroup{
				{Filters: []hsFilter{{PropertyName: "phone", Operator: "CONTAINS_TOKEN", Value: cand}}},
				{Filters: []hsFilter{{PropertyName: "mobilephone", Operator: "CONTAINS_TOKEN", Value: cand}}},
			},
			Properties: []string{"phone", "mobilephone"},
			Limit:      10,
		}

		var res hsSearchResponse
		err := doJSON(ctx, h.client, http.MethodPost, h.BaseURL+"/crm/v3/objects/contacts/search", tok.AccessToken, req, &res)
		if err != nil {
			return RecordRef{}, false, err
		}
		for _, r := range res.Results {
			if SameNationalNumber(r.Properties.Phone, phone) || SameNationalNumber(r.Properties.MobilePhone, phone) {
				return RecordRef{ID: r.ID, Type: "contact"}, true, nil
			}
		}
	}
	return RecordRef{}, false, nil
}

func (h *HubSpot) CreateActivity(ctx context.Context, tok tokenvault.Token, ref RecordRef, call ActivitySummary) (string, error) {
	if ref.ID == "" {
		return "", ErrInvalidArgument
	}
	body := map[string]any{
		"properties": map[string]any{
			"hs_call_title":     "Inbound call " + call.CustomerNumber,
			"hs_call_body":      call.Summary,
			"hs_call_direction": "INBOUND",
			"hs_call_status":    "COMPLETED",
			"hs_call_duration":  strconv.Itoa(call.DurationSeconds * 1000), // milliseconds
			"hs_timestamp":      call.OccurredAt.UTC().Format(time.RFC3339),
		},
		"associations": []map[string]any{
			{
				"to": map[string]string{"id": ref.ID},
				"types": []map[string]any{
					// 194: call-to-contact association
					{"associationCategory": "HUBSPOT_DEFINED", "associationTypeId": 194},
				},
			},
		},
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := doJSON(ctx, h.client, http.MethodPost, h.BaseURL+"/crm/v3/objects/calls", tok.AccessToken, body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (h *HubSpot) CreateAppointment(ctx context.Context, tok tokenvault.Token, ref RecordRef, appt Appointment) (string, error) {
	if ref.ID == "" {
		return "", ErrInvalidArgument
	}
	body := map[string]any{
		"properties": map[string]any{
			"hs_meeting_title": fmt.Sprintf("Appointment: %s", appt.Type),
			"hs_meeting_body":  fmt.Sprintf("%s %s: %s", appt.Date, appt.Time, appt.Notes),
			"hs_timestamp":     time.Now().UTC().Format(time.RFC3339),
		},
		"associations": []map[string]any{
			{
				"to": map[string]string{"id": ref.ID},
				"types": []map[string]any{
					{"associationCategory": "HUBSPOT_DEFINED", "associationTypeId": 200},
				},
			},
		},
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := doJSON(ctx, h.client, http.MethodPost, h.BaseURL+"/crm/v3/objects/meetings", tok.AccessToken, body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}
