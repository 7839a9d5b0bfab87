package crm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"voicehub-platform/internal/tokenvault"
)

// Pipedrive resolves callers through the persons free-text search seeded
// with a 6-digit substring, post-filtering every phone field on the last-10
// national number.
type Pipedrive struct {
	cfg    tokenvault.ProviderConfig
	client *http.Client

	BaseURL string
}

func NewPipedrive(cfg tokenvault.ProviderConfig) *Pipedrive {
	return &Pipedrive{
		cfg:     cfg,
		client:  &http.Client{Timeout: 15 * time.Second},
		BaseURL: "https://api.pipedrive.com",
	}
}

func (p *Pipedrive) Provider() string                  { return ProviderPipedrive }
func (p *Pipedrive) Config() tokenvault.ProviderConfig { return p.cfg }

type pdSearchResponse struct {
	Data struct {
		Items []struct {
			Item struct {
				ID     int    `json:"id"`
				Name   string `json:"name"`
				Phones []struct {
					Value string `json:"value"`
				} `json:"phones"`
			} `json:"item"`
		} `json:"items"`
	} `json:"data"`
}

func (p *Pipedrive) SearchByPhone(ctx context.Context, tok tokenvault.Token, phone string) (RecordRef, bool, error) {
	seed := SearchSeed(phone)
	if seed == "" {
		return RecordRef{}, false, nil
	}

	q := url.Values{}
	q.Set("term", seed)
	q.Set("fields", "phone")
	u := p.BaseURL + "/v1/persons/search?" + q.Encode()

	var res pdSearchResponse
	if err := doJSON(ctx, p.client, http.MethodGet, u, tok.AccessToken, nil, &res); err != nil {
		return RecordRef{}, false, err
	}

	for _, it := range res.Data.Items {
		for _, ph := range it.Item.Phones {
			if SameNationalNumber(ph.Value, phone) {
				return RecordRef{ID: fmt.Sprintf("%d", it.Item.ID), Type: "person"}, true, nil
			}
		}
	}
	return RecordRef{}, false, nil
}

func (p *Pipedrive) CreateActivity(ctx context.Context, tok tokenvault.Token, ref RecordRef, call ActivitySummary) (string, error) {
	if ref.ID == "" {
		return "", ErrInvalidArgument
	}
	body := map[string]any{
		"subject":   "Inbound call " + call.CustomerNumber,
		"type":      "call",
		"note":      call.Summary,
		"person_id": ref.ID,
		"done":      1,
		"due_date":  call.OccurredAt.Format("2006-01-02"),
	}

	var out struct {
		Data struct {
			ID int `json:"id"`
		} `json:"data"`
	}
	if err := doJSON(ctx, p.client, http.MethodPost, p.BaseURL+"/v1/activities", tok.AccessToken, body, &out); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", out.Data.ID), nil
}
