package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"cgu-connect/internal/middleware"
	"cgu-connect/internal/models"
	"cgu-connect/internal/observability"
	"cgu-connect/internal/repositories"
)

type conversationLookup interface {
	Get(ctx context.Context, conversationID int64) (models.Conversation, error)
}

// ConversationWebSocketHandler upgrades participants of a conversation to a
// push channel. Clients only receive; writes go through the REST API.
type ConversationWebSocketHandler struct {
	hub           *Hub
	conversations conversationLookup
	upgrader      websocket.Upgrader
}

// NewConversationWebSocketHandler constructs a ConversationWebSocketHandler.
// An empty allowedOrigins list accepts every origin.
func NewConversationWebSocketHandler(hub *Hub, conversations conversationLookup, allowedOrigins []string) *ConversationWebSocketHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &ConversationWebSocketHandler{
		hub:           hub,
		conversations: conversations,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if len(allowed) == 0 || origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// Handle upgrades the connection and registers the client.
func (h *ConversationWebSocketHandler) Handle(c *gin.Context) {
	conversationID, ok := parseID(c.Param("conversationId"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	ctx, span := otel.Tracer("cgu-connect/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := requestUserID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	conv, err := h.conversations.Get(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}
	if !conv.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := observability.ClientInfoFromRequest(c.Request)
	info := ConnInfo{
		ConnID:         newConnID(),
		ConversationID: conversationID,
		UserID:         userID,
		DeviceID:       client.DeviceID,
		IP:             client.IP,
		RequestID:      client.RequestID,
		TraceID:        span.SpanContext().TraceID().String(),
		ConnectedAt:    time.Now(),
	}
	if info.RequestID == "" {
		info.RequestID = c.GetString("request_id")
	}
	h.hub.AddClient(conversationID, conn, info)
	observability.IncWSActive()
	h.hub.publishLifecycle("ws_connect", info, "")

	go h.readLoop(conn, info)
}

// readLoop drains the connection until it closes so control frames are handled.
func (h *ConversationWebSocketHandler) readLoop(conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		if h.hub.RemoveClient(info.ConversationID, conn) {
			observability.DecWSActive()
		}
		h.hub.publishLifecycle("ws_disconnect", info, closeReason)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.hub.publishLifecycle("ws_error", info, closeReason)
			}
			return
		}
	}
}

// requestUserID reads the acting user from the identity middleware or the
// user_id query parameter; browsers cannot set headers on websocket requests.
func requestUserID(c *gin.Context) (int64, bool) {
	if id, ok := middleware.CallerID(c); ok {
		return id, true
	}
	return parseID(c.Query("user_id"))
}
