package lookup

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"voicehub-platform/internal/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(
		config.LookupConfig{BaseURL: baseURL, APIKey: "k"},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("number"); got != "+15551234567" {
			t.Errorf("number = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("auth = %q", got)
		}
		_, _ = w.Write([]byte(`{"caller_name":"Ada Lovelace","carrier":{"name":"Verizon","type":"mobile"}}`))
	}))
	defer srv.Close()

	info := newTestClient(srv.URL).Resolve(context.Background(), "+15551234567")
	if info.Name != "Ada Lovelace" || info.Carrier != "Verizon" || info.LineType != "mobile" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestResolveFailureIsSilent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTeapot)
	}))
	defer srv.Close()

	if info := newTestClient(srv.URL).Resolve(context.Background(), "+15551234567"); info != (CallerInfo{}) {
		t.Fatalf("expected zero value on failure, got %+v", info)
	}
}

func TestResolveDisabled(t *testing.T) {
	c := newTestClient("")
	if c.Enabled() {
		t.Fatal("client with empty base url should be disabled")
	}
	if info := c.Resolve(context.Background(), "+15551234567"); info != (CallerInfo{}) {
		t.Fatalf("expected zero value, got %+v", info)
	}
}
