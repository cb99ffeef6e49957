package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"cgu-connect/internal/messaging"
	"cgu-connect/internal/middleware"
)

// respondError maps messaging errors onto HTTP statuses. Store failures are
// logged and hidden from the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, messaging.ErrInvalidParticipant),
		errors.Is(err, messaging.ErrInvalidMessageKind),
		errors.Is(err, messaging.ErrEmptyContent),
		errors.Is(err, messaging.ErrMediaRequired),
		errors.Is(err, messaging.ErrInvalidUser):
		return http.StatusBadRequest
	case errors.Is(err, messaging.ErrNotAParticipant),
		errors.Is(err, messaging.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, messaging.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, messaging.ErrDuplicateConversation),
		errors.Is(err, messaging.ErrUserExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// idParam parses a positive id path parameter, answering 400 otherwise.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// idQuery is idParam for a required query parameter.
func idQuery(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// actingAs answers 403 when the X-User-ID identity is not userID.
func actingAs(c *gin.Context, userID int64) bool {
	if middleware.ActingAs(c, userID) {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "identity does not match user"})
	return false
}
