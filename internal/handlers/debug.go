package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cgu-connect/internal/telemetry"
)

// DebugOptions configures the debug-only endpoints.
type DebugOptions struct {
	Enabled bool
	Audit   *telemetry.AuditEmitter
	// BrokerMode reports the event publisher mode and, when degraded, why.
	BrokerMode func() (mode, reason string)
}

// RegisterDebugRoutes wires /debug endpoints when enabled.
func RegisterDebugRoutes(router gin.IRoutes, opts DebugOptions) {
	if !opts.Enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if opts.Audit == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		opts.Audit.Emit(c.Request.Context(), telemetry.AuditEntry{
			Action:    telemetry.ActionAuditTest,
			Text:      "audit test",
			RequestID: requestIDFromContext(c),
			UserID:    userIDFromContext(c, 0),
		})
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/broker", func(c *gin.Context) {
		if opts.BrokerMode == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "broker not configured"})
			return
		}
		mode, reason := opts.BrokerMode()
		c.JSON(http.StatusOK, gin.H{"mode": mode, "reason": reason})
	})
}
