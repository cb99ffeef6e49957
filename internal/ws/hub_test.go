package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cgu-connect/internal/middleware"
	"cgu-connect/internal/mocks"
	"cgu-connect/internal/models"
	"cgu-connect/internal/repositories"
)

func TestHubAddAndRemoveClient(t *testing.T) {
	hub := NewHub(nil)

	hub.AddClient(1, nil, ConnInfo{ConnID: "a"})
	if len(hub.rooms) != 1 {
		t.Fatalf("expected conversation room to be created")
	}
	assert.Equal(t, 1, hub.ClientCount(1))

	assert.True(t, hub.RemoveClient(1, nil))
	if len(hub.rooms) != 0 {
		t.Fatalf("expected conversation room to be removed")
	}
	assert.False(t, hub.RemoveClient(1, nil))
}

func TestNotifyConversationWithoutClients(t *testing.T) {
	hub := NewHub(nil)
	require.NotPanics(t, func() {
		hub.NotifyConversation(context.Background(), models.ConversationEvent{Type: models.EventRead, ConversationID: 9})
	})
}

func setupWSServer(t *testing.T, hub *Hub, conversations *mocks.ConversationRepositoryMock) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Identity())
	handler := NewConversationWebSocketHandler(hub, conversations, nil)
	r.GET("/ws/conversations/:conversationId", handler.Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestConversationWebSocketReceivesEvents(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, wsRoutingKey, mock.Anything).Return(nil)
	hub := NewHub(publisher)
	conversations := new(mocks.ConversationRepositoryMock)
	conversations.On("Get", mock.Anything, int64(10)).Return(models.Conversation{ID: 10, Participant1ID: 1, Participant2ID: 2}, nil)
	srv := setupWSServer(t, hub, conversations)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/conversations/10?user_id=2"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount(10) == 1 }, time.Second, 10*time.Millisecond)

	msg := models.Message{ID: 100, ConversationID: 10, SenderID: 1, Content: "hello", Kind: models.KindText}
	hub.NotifyConversation(context.Background(), models.ConversationEvent{Type: models.EventMessage, ConversationID: 10, Message: &msg})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var event models.ConversationEvent
	require.NoError(t, json.Unmarshal(raw, &event))
	assert.Equal(t, models.EventMessage, event.Type)
	require.NotNil(t, event.Message)
	assert.Equal(t, "hello", event.Message.Content)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount(10) == 0 }, time.Second, 10*time.Millisecond)
}

func TestConversationWebSocketRejectsOutsider(t *testing.T) {
	hub := NewHub(nil)
	conversations := new(mocks.ConversationRepositoryMock)
	conversations.On("Get", mock.Anything, int64(10)).Return(models.Conversation{ID: 10, Participant1ID: 1, Participant2ID: 2}, nil)
	srv := setupWSServer(t, hub, conversations)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/conversations/10?user_id=3"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestConversationWebSocketUnknownConversation(t *testing.T) {
	hub := NewHub(nil)
	conversations := new(mocks.ConversationRepositoryMock)
	conversations.On("Get", mock.Anything, int64(11)).Return(models.Conversation{}, repositories.ErrConversationNotFound)
	srv := setupWSServer(t, hub, conversations)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/conversations/11?user_id=1"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConversationWebSocketPrefersIdentityHeader(t *testing.T) {
	hub := NewHub(nil)
	conversations := new(mocks.ConversationRepositoryMock)
	conversations.On("Get", mock.Anything, int64(10)).Return(models.Conversation{ID: 10, Participant1ID: 1, Participant2ID: 2}, nil)
	srv := setupWSServer(t, hub, conversations)

	header := http.Header{"X-User-ID": []string{"3"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/conversations/10?user_id=2"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, hub.ClientCount(10))
}
