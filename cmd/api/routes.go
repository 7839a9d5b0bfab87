package main

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"voicehub-platform/internal/crm"
	"voicehub-platform/internal/ingest"
	"voicehub-platform/internal/maintenance"
	"voicehub-platform/internal/outbound"
	"voicehub-platform/internal/reporting"
	"voicehub-platform/pkg/utils"
)

type routeDeps struct {
	authMW      gin.HandlerFunc
	db          *sql.DB
	ingest      ingest.Handler
	connect     crm.ConnectHandlers
	webhooks    outbound.Handlers
	reporting   reporting.Handlers
	maintenance maintenance.Handler
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Voice-platform events. The webhook id in the path scopes the
	// event to a tenant; there is no bearer auth on this route.
	r.POST("/webhooks/voice/:webhook_id", d.ingest.Receive)

	// OAuth providers redirect the user's browser here.
	r.GET("/integrations/:provider/callback", d.connect.Callback)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(d.authMW)
	{
		integrations := v1.Group("/integrations/:provider")
		{
			integrations.GET("/connect", d.connect.Initiate)
			integrations.GET("/status", d.connect.Status)
			integrations.DELETE("", d.connect.Disconnect)
			integrations.GET("/sync-logs", d.connect.ListSyncLogs)
		}

		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("", d.webhooks.Create)
			webhooks.GET("", d.webhooks.List)
			webhooks.PUT("/:webhook_id", d.webhooks.Update)
			webhooks.DELETE("/:webhook_id", d.webhooks.Delete)
			webhooks.GET("/:webhook_id/logs", d.webhooks.ListLogs)
		}

		v1.GET("/calls", d.reporting.ListCalls)
		v1.GET("/calls/:id", d.reporting.GetCall)
		v1.GET("/active-calls", d.reporting.ActiveCalls)
		v1.GET("/dashboard", d.reporting.Dashboard)

		v1.POST("/maintenance/cleanup", d.maintenance.Cleanup)
	}
}
