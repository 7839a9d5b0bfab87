package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"voicehub-platform/internal/audit"
	"voicehub-platform/internal/calls"
	"voicehub-platform/internal/tenants"
	"voicehub-platform/pkg/logger"
)

// maxEventBody caps what the platform may post. Transcripts run long
// but never megabytes long.
const maxEventBody = 4 << 20

// Handler is the public webhook endpoint. There is no bearer auth on
// this path; the unguessable webhook id in the URL is the credential,
// and it also scopes the event to a tenant.
type Handler struct {
	Tenants tenants.Repository
	Service *Service
	Audit   *audit.Service
}

// Receive handles POST /webhooks/voice/:webhook_id.
func (h Handler) Receive(c *gin.Context) {
	log := logger.FromGin(c)

	tenantID, err := h.Tenants.ResolveIngress(c.Request.Context(), c.Param("webhook_id"))
	if err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown webhook id"})
			return
		}
		log.Error("ingress resolution failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBody))
	if err != nil {
		h.auditFailure(c.Request.Context(), tenantID, "read body: "+err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.auditFailure(c.Request.Context(), tenantID, "malformed payload: "+err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	if err := h.Service.HandleEvent(c.Request.Context(), tenantID, env, raw); err != nil {
		if errors.Is(err, calls.ErrInvalidArgument) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
			return
		}
		log.Error("event handling failed", "tenant_id", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (h Handler) auditFailure(ctx context.Context, tenantID, reason string) {
	_ = h.Audit.Append(ctx, audit.Event{
		TenantID:  tenantID,
		EventType: "unparsed",
		Outcome:   audit.OutcomeFailed,
		ErrorText: reason,
	})
}
