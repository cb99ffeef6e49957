package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cgu-connect/internal/messaging"
	"cgu-connect/internal/models"
	"cgu-connect/internal/telemetry"
)

type messageService interface {
	SendMessage(ctx context.Context, in messaging.SendMessageInput) (models.Message, error)
	ListMessages(ctx context.Context, conversationID, userID int64, limit, offset int) ([]models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, userID int64) (int64, error)
	GetUnreadCount(ctx context.Context, userID, conversationID int64) (int, error)
	GetGlobalUnreadCount(ctx context.Context, userID int64) (int, error)
	UnsendMessage(ctx context.Context, messageID, userID int64) (models.Message, error)
}

// MessageHandler serves message writing and read-state endpoints.
type MessageHandler struct {
	svc   messageService
	audit *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler. audit may be nil.
func NewMessageHandler(svc messageService, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{svc: svc, audit: audit}
}

type sendMessageRequest struct {
	ConversationID int64   `json:"conversation_id" binding:"required"`
	SenderID       int64   `json:"sender_id" binding:"required"`
	Content        string  `json:"content"`
	MessageType    string  `json:"message_type"`
	MediaURL       *string `json:"media_url"`
}

// SendMessage appends a message to a conversation.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !actingAs(c, req.SenderID) {
		return
	}

	msg, err := h.svc.SendMessage(c.Request.Context(), messaging.SendMessageInput{
		ConversationID: req.ConversationID,
		SenderID:       req.SenderID,
		Content:        req.Content,
		Kind:           models.MessageKind(req.MessageType),
		MediaURL:       req.MediaURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// ListMessages returns a chronological page of the conversation.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	conversationID, ok := idParam(c, "conversationId")
	if !ok {
		return
	}
	userID, ok := idQuery(c, "user_id")
	if !ok || !actingAs(c, userID) {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	msgs, err := h.svc.ListMessages(c.Request.Context(), conversationID, userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// MarkRead marks the other participant's messages as read for userId.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	conversationID, ok := idParam(c, "conversationId")
	if !ok {
		return
	}
	userID, ok := idParam(c, "userId")
	if !ok || !actingAs(c, userID) {
		return
	}

	updated, err := h.svc.MarkConversationRead(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// GlobalUnread returns the unread count across all of the user's conversations.
func (h *MessageHandler) GlobalUnread(c *gin.Context) {
	userID, ok := idParam(c, "userId")
	if !ok || !actingAs(c, userID) {
		return
	}

	count, err := h.svc.GetGlobalUnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// ConversationUnread returns the unread count of one conversation.
func (h *MessageHandler) ConversationUnread(c *gin.Context) {
	conversationID, ok := idParam(c, "conversationId")
	if !ok {
		return
	}
	userID, ok := idParam(c, "userId")
	if !ok || !actingAs(c, userID) {
		return
	}

	count, err := h.svc.GetUnreadCount(c.Request.Context(), userID, conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": conversationID, "unread_count": count})
}

// Unsend tombstones a message of the caller. The message id is
// authoritative; the conversation segment only scopes the route.
func (h *MessageHandler) Unsend(c *gin.Context) {
	if _, ok := idParam(c, "conversationId"); !ok {
		return
	}
	messageID, ok := idParam(c, "messageId")
	if !ok {
		return
	}
	userID, ok := idQuery(c, "user_id")
	if !ok || !actingAs(c, userID) {
		return
	}

	msg, err := h.svc.UnsendMessage(c.Request.Context(), messageID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit.Emit(c.Request.Context(), telemetry.AuditEntry{
		Action:    telemetry.ActionMessageUnsent,
		Text:      fmt.Sprintf("message %d unsent", msg.ID),
		RequestID: requestIDFromContext(c),
		UserID:    userIDFromContext(c, userID),
	})
	c.JSON(http.StatusOK, msg)
}
