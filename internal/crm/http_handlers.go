package crm

import (
	"net/http"
	"strconv"
	"strings"

	"voicehub-platform/internal/auth"
	"voicehub-platform/internal/tokenvault"
	"voicehub-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ConnectHandlers serves the CRM OAuth connect flows and sync-log reads.
// Keep these thin: parse/validate input, call the vault, return JSON.
type ConnectHandlers struct {
	Vault        *tokenvault.Manager
	Logs         SyncLogStore
	Providers    map[string]tokenvault.ProviderConfig
	DashboardURL string
}

func (h ConnectHandlers) provider(c *gin.Context) (tokenvault.ProviderConfig, bool) {
	name := c.Param("provider")
	cfg, ok := h.Providers[name]
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return tokenvault.ProviderConfig{}, false
	}
	return cfg, true
}

// Initiate redirects the dashboard user to the provider consent screen.
// State carries the tenant so the public callback can attribute the code.
func (h ConnectHandlers) Initiate(c *gin.Context) {
	cfg, ok := h.provider(c)
	if !ok {
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant required"})
		return
	}

	state := tenantID + ":" + uuid.NewString()
	c.Redirect(http.StatusFound, h.Vault.AuthorizeURL(cfg, state))
}

// Callback exchanges the authorization code and lands back on the dashboard
// with a connected/error flag. This endpoint is public: the provider
// redirects the user's browser here.
func (h ConnectHandlers) Callback(c *gin.Context) {
	log := logger.FromGin(c)

	cfg, ok := h.provider(c)
	if !ok {
		return
	}

	code := c.Query("code")
	state := c.Query("state")
	tenantID, _, found := strings.Cut(state, ":")
	if code == "" || !found || tenantID == "" {
		c.Redirect(http.StatusFound, h.DashboardURL+"?error="+cfg.Name)
		return
	}

	if _, err := h.Vault.ExchangeCode(c.Request.Context(), tenantID, cfg, code); err != nil {
		log.Warn("oauth code exchange failed", "provider", cfg.Name, "tenant_id", tenantID, "err", err)
		c.Redirect(http.StatusFound, h.DashboardURL+"?error="+cfg.Name)
		return
	}
	c.Redirect(http.StatusFound, h.DashboardURL+"?connected="+cfg.Name)
}

func (h ConnectHandlers) Status(c *gin.Context) {
	cfg, ok := h.provider(c)
	if !ok {
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant required"})
		return
	}

	connected, expiresAt, err := h.Vault.Status(c.Request.Context(), tenantID, cfg.Name)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status lookup failed"})
		return
	}
	out := gin.H{"provider": cfg.Name, "connected": connected}
	if connected {
		out["expires_at"] = expiresAt
	}
	c.JSON(http.StatusOK, out)
}

func (h ConnectHandlers) Disconnect(c *gin.Context) {
	cfg, ok := h.provider(c)
	if !ok {
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant required"})
		return
	}

	if err := h.Vault.Disconnect(c.Request.Context(), tenantID, cfg.Name); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "disconnect failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": cfg.Name, "connected": false})
}

func (h ConnectHandlers) ListSyncLogs(c *gin.Context) {
	cfg, ok := h.provider(c)
	if !ok {
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant required"})
		return
	}

	status := SyncStatus(c.Query("status"))
	switch status {
	case "", SyncSuccess, SyncSkipped, SyncError:
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	logs, err := h.Logs.List(c.Request.Context(), cfg.Name, tenantID, status, limit, offset)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "sync log lookup failed"})
		return
	}
	if logs == nil {
		logs = []SyncLog{}
	}
	c.JSON(http.StatusOK, gin.H{"provider": cfg.Name, "logs": logs})
}
