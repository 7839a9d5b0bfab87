package reporting

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"voicehub-platform/internal/auth"
	"voicehub-platform/internal/calls"
	"voicehub-platform/pkg/logger"
)

type Handlers struct {
	Service *Service
}

func tenantOrAbort(c *gin.Context) (string, bool) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant required"})
		return "", false
	}
	return tenantID, true
}

// ListCalls handles GET /v1/calls?limit=&offset=.
func (h Handlers) ListCalls(c *gin.Context) {
	tenantID, ok := tenantOrAbort(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	page, err := h.Service.ListCalls(c.Request.Context(), tenantID, limit, offset)
	if err != nil {
		logger.FromGin(c).Error("call list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetCall handles GET /v1/calls/:id.
func (h Handlers) GetCall(c *gin.Context) {
	tenantID, ok := tenantOrAbort(c)
	if !ok {
		return
	}
	rec, err := h.Service.GetCall(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		logger.FromGin(c).Error("call detail failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ActiveCalls handles GET /v1/active-calls.
func (h Handlers) ActiveCalls(c *gin.Context) {
	tenantID, ok := tenantOrAbort(c)
	if !ok {
		return
	}
	active, err := h.Service.ActiveCalls(c.Request.Context(), tenantID)
	if err != nil {
		logger.FromGin(c).Error("active call list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active_calls": active})
}

// Dashboard handles GET /v1/dashboard.
func (h Handlers) Dashboard(c *gin.Context) {
	tenantID, ok := tenantOrAbort(c)
	if !ok {
		return
	}
	d, err := h.Service.GetDashboard(c.Request.Context(), tenantID)
	if err != nil {
		logger.FromGin(c).Error("dashboard failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, d)
}
