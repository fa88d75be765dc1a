package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/telemetry"
)

// RegisterDebugRoutes wires development-only endpoints: an audit round trip
// and a snapshot of live connection counts.
func RegisterDebugRoutes(router gin.IRoutes, emitter *telemetry.AuditEmitter, connections func() map[string]int, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok", "request_id": requestIDFromContext(c)})
	})

	router.GET("/debug/connections", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"connections": connections()})
	})
}
