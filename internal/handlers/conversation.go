package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"cgu-connect/internal/middleware"
	"cgu-connect/internal/models"
)

type conversationService interface {
	GetOrCreateConversation(ctx context.Context, participantA, participantB int64) (models.Conversation, error)
	ListConversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error)
}

// ConversationHandler serves the conversation endpoints.
type ConversationHandler struct {
	svc conversationService
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(svc conversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// CreateConversation returns the conversation between the two participants,
// creating it on first use.
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var req struct {
		Participant1ID int64 `json:"participant1_id" binding:"required"`
		Participant2ID int64 `json:"participant2_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !middleware.ActingAs(c, req.Participant1ID) && !middleware.ActingAs(c, req.Participant2ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "identity is not a participant"})
		return
	}

	conv, err := h.svc.GetOrCreateConversation(c.Request.Context(), req.Participant1ID, req.Participant2ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// ListConversations returns the user's conversations, newest activity first.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID, ok := idParam(c, "userId")
	if !ok || !actingAs(c, userID) {
		return
	}

	summaries, err := h.svc.ListConversations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}
