package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voicehub-platform/internal/tokenvault"
)

func sfTestToken() tokenvault.Token {
	return tokenvault.Token{TenantID: "t1", Provider: ProviderSalesforce, AccessToken: "sf-token"}
}

func TestSalesforceSearchByPhone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/parameterizedSearch/") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "123456" {
			t.Errorf("seed = %q, want 123456", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sf-token" {
			t.Errorf("auth = %q", got)
		}
		// Two candidates survive the loose seed; only one agrees on the
		// last-10 national number.
		_, _ = w.Write([]byte(`{"searchRecords":[
			{"Id":"003A","Phone":"(999) 123-4560","attributes":{"type":"Contact"}},
			{"Id":"00QB","MobilePhone":"+1 555-123-4567","attributes":{"type":"Lead"}}
		]}`))
	}))
	defer srv.Close()

	sf := NewSalesforce(tokenvault.ProviderConfig{Name: ProviderSalesforce})
	sf.BaseURL = srv.URL

	ref, found, err := sf.SearchByPhone(context.Background(), sfTestToken(), "+15551234567")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !found || ref.ID != "00QB" || ref.Type != "Lead" {
		t.Fatalf("ref = %+v, found = %v", ref, found)
	}
}

func TestSalesforceSearchNoAgreementIsNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"searchRecords":[{"Id":"003A","Phone":"(999) 123-4560","attributes":{"type":"Contact"}}]}`))
	}))
	defer srv.Close()

	sf := NewSalesforce(tokenvault.ProviderConfig{Name: ProviderSalesforce})
	sf.BaseURL = srv.URL

	_, found, err := sf.SearchByPhone(context.Background(), sfTestToken(), "+15551234567")
	if err != nil || found {
		t.Fatalf("found = %v, err = %v", found, err)
	}
}

func TestSalesforceCreateProspect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sobjects/Lead") {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["LastName"] != "Unknown Caller" || body["Company"] != "Unknown" {
			t.Errorf("body = %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"00Q123"}`))
	}))
	defer srv.Close()

	sf := NewSalesforce(tokenvault.ProviderConfig{Name: ProviderSalesforce})
	sf.BaseURL = srv.URL

	ref, err := sf.CreateProspect(context.Background(), sfTestToken(), "+15551234567", "")
	if err != nil {
		t.Fatalf("create prospect: %v", err)
	}
	if ref.ID != "00Q123" || ref.Type != "Lead" {
		t.Fatalf("ref = %+v", ref)
	}
}

func TestSalesforceCreateActivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sobjects/Task") {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["WhoId"] != "003A" || body["TaskSubtype"] != "Call" {
			t.Errorf("body = %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"00T9"}`))
	}))
	defer srv.Close()

	sf := NewSalesforce(tokenvault.ProviderConfig{Name: ProviderSalesforce})
	sf.BaseURL = srv.URL

	id, err := sf.CreateActivity(context.Background(), sfTestToken(), RecordRef{ID: "003A", Type: "Contact"}, ActivitySummary{
		CustomerNumber: "+15551234567", Summary: "pricing question", DurationSeconds: 60,
	})
	if err != nil || id != "00T9" {
		t.Fatalf("id = %q, err = %v", id, err)
	}
}

func TestSalesforceActivityRequiresRecord(t *testing.T) {
	sf := NewSalesforce(tokenvault.ProviderConfig{Name: ProviderSalesforce})
	if _, err := sf.CreateActivity(context.Background(), sfTestToken(), RecordRef{}, ActivitySummary{}); err != ErrInvalidArgument {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}
