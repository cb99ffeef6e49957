package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cgu-connect/internal/middleware"
)

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

// userIDFromContext prefers the X-User-ID identity and falls back to the
// user the request acts as.
func userIDFromContext(c *gin.Context, actingUser int64) *int64 {
	if caller, ok := middleware.CallerID(c); ok {
		return &caller
	}
	if actingUser > 0 {
		return &actingUser
	}
	return nil
}
