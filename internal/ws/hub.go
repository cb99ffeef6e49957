package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"cgu-connect/internal/models"
	"cgu-connect/internal/observability"
)

const writeTimeout = 5 * time.Second

// EventPublisher receives connection lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

const wsRoutingKey = "ws_events.conversations"

type client struct {
	conn *websocket.Conn
	info ConnInfo
	// gorilla connections support one concurrent writer
	writeMu sync.Mutex
}

// Hub maintains the websocket rooms of conversations on this instance.
type Hub struct {
	rooms     map[int64]map[*websocket.Conn]*client
	mu        sync.RWMutex
	publisher EventPublisher
}

// NewHub creates an empty hub. publisher may be nil.
func NewHub(publisher EventPublisher) *Hub {
	return &Hub{
		rooms:     make(map[int64]map[*websocket.Conn]*client),
		publisher: publisher,
	}
}

// AddClient registers a websocket connection to a conversation room.
func (h *Hub) AddClient(conversationID int64, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[*websocket.Conn]*client)
	}
	h.rooms[conversationID][conn] = &client{conn: conn, info: info}
}

// RemoveClient removes a websocket connection and reports whether it was registered.
func (h *Hub) RemoveClient(conversationID int64, conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.rooms[conversationID]
	if !ok {
		return false
	}
	if _, ok := conns[conn]; !ok {
		return false
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.rooms, conversationID)
	}
	return true
}

// ClientCount returns the number of connections in a conversation room.
func (h *Hub) ClientCount(conversationID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// NotifyConversation broadcasts event to every local client of its conversation.
func (h *Hub) NotifyConversation(ctx context.Context, event models.ConversationEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("marshal conversation event")
		return
	}
	h.broadcast(event.ConversationID, payload)
}

func (h *Hub) broadcast(conversationID int64, payload []byte) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.rooms[conversationID]))
	for _, c := range h.rooms[conversationID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(payload); err != nil {
			log.Warn().Err(err).Int64("conversation_id", conversationID).Str("conn_id", c.info.ConnID).Msg("websocket write error")
			c.conn.Close()
			if h.RemoveClient(conversationID, c.conn) {
				observability.DecWSActive()
			}
			h.publishLifecycle("ws_error", c.info, err.Error())
		}
	}
}

func (c *client) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *Hub) publishLifecycle(event string, info ConnInfo, reason string) {
	observability.IncWSEvent(event)
	if h.publisher == nil {
		return
	}
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"conversation_id": info.ConversationID,
			"event":           event,
			"conn_id":         info.ConnID,
			"duration_ms":     time.Since(info.ConnectedAt).Milliseconds(),
			"reason":          reason,
		},
		"identity": map[string]interface{}{
			"user_id":    info.UserID,
			"device_id":  info.DeviceID,
			"ip":         info.IP,
			"request_id": info.RequestID,
			"trace_id":   info.TraceID,
		},
	}
	if err := h.publisher.Publish(context.Background(), wsRoutingKey, map[string]interface{}{
		"event_type": "ws_events",
		"event_name": event,
		"payload":    payload,
	}); err != nil {
		observability.IncAMQPPublishError()
	}
}
