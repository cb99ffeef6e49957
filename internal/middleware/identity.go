package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// RequestIDKey is the gin context key holding the request id.
	RequestIDKey = "request_id"
	// UserIDKey is the gin context key holding the caller's user id (int64).
	UserIDKey = "userID"

	requestIDHeader = "X-Request-ID"
	userIDHeader    = "X-User-ID"
)

// RequestID reuses the incoming X-Request-ID or generates one, echoes it on
// the response and attaches a request-scoped logger to the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDKey, requestID)
		c.Header(requestIDHeader, requestID)

		logger := log.With().Str("request_id", requestID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Next()
	}
}

// Identity parses the optional X-User-ID header. A malformed value is
// rejected; an absent one leaves the request anonymous.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(userIDHeader)
		if header == "" {
			c.Next()
			return
		}
		userID, err := strconv.ParseInt(header, 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid X-User-ID header"})
			return
		}
		c.Set(UserIDKey, userID)

		logger := log.Ctx(c.Request.Context()).With().Int64("user_id", userID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Next()
	}
}

// CallerID returns the identity set by Identity.
func CallerID(c *gin.Context) (int64, bool) {
	val, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	userID, ok := val.(int64)
	return userID, ok && userID > 0
}

// ActingAs reports whether the request may act as userID: anonymous callers
// may, identified callers only as themselves.
func ActingAs(c *gin.Context, userID int64) bool {
	caller, ok := CallerID(c)
	return !ok || caller == userID
}
