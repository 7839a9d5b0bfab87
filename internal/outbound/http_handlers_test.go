package outbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"voicehub-platform/internal/auth"
)

// newWebhookRouter registers the CRUD routes the way cmd/api does, with a
// stub middleware standing in for JWT auth.
func newWebhookRouter(repo *MemoryRepo, tenantID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), "u1", tenantID))
	})

	h := Handlers{Repo: repo}
	g := r.Group("/v1/webhooks")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.PUT("/:webhook_id", h.Update)
	g.DELETE("/:webhook_id", h.Delete)
	g.GET("/:webhook_id/logs", h.ListLogs)
	return r
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookCRUDRoutes(t *testing.T) {
	repo := NewMemoryRepo()
	r := newWebhookRouter(repo, "t1")

	w := doJSON(r, http.MethodPost, "/v1/webhooks", `{"url":"https://example.com/sink","events":["call.ended"]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created Webhook
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.ID == "" {
		t.Fatalf("created = %+v, err = %v", created, err)
	}

	// Update through the routed path: the handler must see the id param.
	w = doJSON(r, http.MethodPut, "/v1/webhooks/"+created.ID, `{"url":"https://example.com/sink2","events":["call.ended"],"enabled":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	got, err := repo.Get(context.Background(), "t1", created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.URL != "https://example.com/sink2" || got.Enabled {
		t.Fatalf("updated webhook = %+v", got)
	}

	// Unknown id stays 404; known id deletes with 204.
	if w = doJSON(r, http.MethodDelete, "/v1/webhooks/nope", ""); w.Code != http.StatusNotFound {
		t.Fatalf("delete unknown status = %d", w.Code)
	}
	if w = doJSON(r, http.MethodDelete, "/v1/webhooks/"+created.ID, ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, body = %s", w.Code, w.Body.String())
	}
	if _, err := repo.Get(context.Background(), "t1", created.ID); err != ErrNotFound {
		t.Fatalf("get after delete err = %v", err)
	}
}

func TestWebhookLogsRouteFiltersByWebhook(t *testing.T) {
	repo := NewMemoryRepo()
	hookA := Webhook{ID: "wh-a", TenantID: "t1", URL: "https://a.example", Events: []string{EventCallEnded}, Enabled: true}
	hookB := Webhook{ID: "wh-b", TenantID: "t1", URL: "https://b.example", Events: []string{EventCallEnded}, Enabled: true}
	if err := repo.Create(context.Background(), hookA); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(context.Background(), hookB); err != nil {
		t.Fatal(err)
	}
	for _, l := range []DeliveryLog{
		{ID: "l1", TenantID: "t1", WebhookID: "wh-a", Event: EventCallEnded, CallID: "c1", HTTPStatus: 200},
		{ID: "l2", TenantID: "t1", WebhookID: "wh-b", Event: EventCallEnded, CallID: "c1", HTTPStatus: 500},
	} {
		if err := repo.AppendLog(context.Background(), l); err != nil {
			t.Fatal(err)
		}
	}

	r := newWebhookRouter(repo, "t1")
	w := doJSON(r, http.MethodGet, "/v1/webhooks/wh-a/logs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("logs status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Logs []DeliveryLog `json:"logs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Logs) != 1 || resp.Logs[0].WebhookID != "wh-a" {
		t.Fatalf("logs = %+v, want only wh-a entries", resp.Logs)
	}
}

func TestWebhookUpdateUnknownIDIs404(t *testing.T) {
	r := newWebhookRouter(NewMemoryRepo(), "t1")
	w := doJSON(r, http.MethodPut, "/v1/webhooks/missing", `{"url":"https://example.com","events":["call.ended"]}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}
