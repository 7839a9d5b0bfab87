package outbound

import (
	"errors"
	"net/http"
	"strconv"

	"voicehub-platform/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers serves the outbound-webhook CRUD and delivery-log reads.
type Handlers struct {
	Repo Repository
}

type webhookRequest struct {
	URL     string   `json:"url"`
	Events  []string `json:"events"`
	Enabled *bool    `json:"enabled"`
}

func (r webhookRequest) validate() error {
	if r.URL == "" {
		return errors.New("url is required")
	}
	if len(r.Events) == 0 {
		return errors.New("events is required")
	}
	for _, e := range r.Events {
		if !KnownEvent(e) {
			return errors.New("unknown event: " + e)
		}
	}
	return nil
}

func tenantOrAbort(c *gin.Context) (string, bool) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant required"})
		return "", false
	}
	return tenantID, true
}

func (h Handlers) Create(c *gin.Context) {
	tenantID, ok := tenantOrAbort(c)
	if !ok {
		return
	}
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := req.validate(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	w := Webhook{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		URL:      req.URL,
		Events:   req.Events,
		Enabled:  enabled,
	}
	if err := h.Repo.Create(c.Request.Context(), w); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (h Handlers) List(c *gin.Context) {
	tenantID, ok := tenantOrAbort(c)
	if !ok {
		return
	}
	hooks, err := h.Repo.List(c.Request.Context(), tenantID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	if hooks == nil {
		hooks = []Webhook{}
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": hooks})
}

func (h Handlers) Update(c *gin.Context) {
	tenantID, ok := tenantOrAbort(c)
	if !ok {
		return
	}
	id := c.Param("webhook_id")
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := req.validate(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	w := Webhook{ID: id, TenantID: tenantID, URL: req.URL, Events: req.Events, Enabled: enabled}
	err := h.Repo.Update(c.Request.Context(), w)
	if errors.Is(err, ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h Handlers) Delete(c *gin.Context) {
	tenantID, ok := tenantOrAbort(c)
	if !ok {
		return
	}
	id := c.Param("webhook_id")
	err := h.Repo.Delete(c.Request.Context(), tenantID, id)
	if errors.Is(err, ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) ListLogs(c *gin.Context) {
	tenantID, ok := tenantOrAbort(c)
	if !ok {
		return
	}
	webhookID := c.Param("webhook_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	logs, err := h.Repo.ListLogs(c.Request.Context(), tenantID, webhookID, limit, offset)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "log lookup failed"})
		return
	}
	if logs == nil {
		logs = []DeliveryLog{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
