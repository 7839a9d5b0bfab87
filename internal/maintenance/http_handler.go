package maintenance

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Sweeper *Sweeper
}

// Cleanup handles POST /v1/maintenance/cleanup: an explicit, authed
// trigger for the same sweep the ticker runs.
func (h Handler) Cleanup(c *gin.Context) {
	removed := h.Sweeper.SweepOnce(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
