package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"cgu-connect/internal/messaging"
	"cgu-connect/internal/models"
	"cgu-connect/internal/repositories"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) Create(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) Get(ctx context.Context, userID int64) (models.User, error) {
	args := m.Called(ctx, userID)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) Exists(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *UserRepositoryMock) UpdateProfile(ctx context.Context, userID int64, update models.ProfileUpdate, now time.Time) (models.User, error) {
	args := m.Called(ctx, userID, update, now)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) GetByParticipants(ctx context.Context, low, high int64) (models.Conversation, error) {
	args := m.Called(ctx, low, high)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) Create(ctx context.Context, low, high int64, now time.Time) (models.Conversation, error) {
	args := m.Called(ctx, low, high, now)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) Get(ctx context.Context, conversationID int64) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) UpdateLastMessage(ctx context.Context, conversationID, messageID int64, at time.Time) error {
	args := m.Called(ctx, conversationID, messageID, at)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID int64) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) GetByIDs(ctx context.Context, messageIDs []int64) ([]models.Message, error) {
	args := m.Called(ctx, messageIDs)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Latest(ctx context.Context, conversationID int64) (models.Message, error) {
	args := m.Called(ctx, conversationID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) LatestIDs(ctx context.Context, conversationIDs []int64) (map[int64]int64, error) {
	args := m.Called(ctx, conversationIDs)
	var ids map[int64]int64
	if val := args.Get(0); val != nil {
		ids = val.(map[int64]int64)
	}
	return ids, args.Error(1)
}

func (m *MessageRepositoryMock) ListByConversation(ctx context.Context, conversationID int64, limit, offset int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, limit, offset)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) CountUnread(ctx context.Context, conversationID, userID int64) (int, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) CountUnreadForUser(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCountsForUser(ctx context.Context, userID int64) (map[int64]int, error) {
	args := m.Called(ctx, userID)
	var counts map[int64]int
	if val := args.Get(0); val != nil {
		counts = val.(map[int64]int)
	}
	return counts, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, conversationID, readerID int64, before time.Time) (int64, error) {
	args := m.Called(ctx, conversationID, readerID, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) Unsend(ctx context.Context, messageID, senderID int64, now time.Time) error {
	args := m.Called(ctx, messageID, senderID, now)
	return args.Error(0)
}

// MessagingServiceMock stands in for the messaging service behind the HTTP handlers.
type MessagingServiceMock struct {
	mock.Mock
}

func (m *MessagingServiceMock) GetOrCreateConversation(ctx context.Context, participantA, participantB int64) (models.Conversation, error) {
	args := m.Called(ctx, participantA, participantB)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *MessagingServiceMock) ListConversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

func (m *MessagingServiceMock) SendMessage(ctx context.Context, in messaging.SendMessageInput) (models.Message, error) {
	args := m.Called(ctx, in)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessagingServiceMock) ListMessages(ctx context.Context, conversationID, userID int64, limit, offset int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, userID, limit, offset)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessagingServiceMock) MarkConversationRead(ctx context.Context, conversationID, userID int64) (int64, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessagingServiceMock) GetUnreadCount(ctx context.Context, userID, conversationID int64) (int, error) {
	args := m.Called(ctx, userID, conversationID)
	return args.Int(0), args.Error(1)
}

func (m *MessagingServiceMock) GetGlobalUnreadCount(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MessagingServiceMock) UnsendMessage(ctx context.Context, messageID, userID int64) (models.Message, error) {
	args := m.Called(ctx, messageID, userID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessagingServiceMock) CreateUser(ctx context.Context, in messaging.CreateUserInput) (models.User, error) {
	args := m.Called(ctx, in)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *MessagingServiceMock) GetUser(ctx context.Context, userID int64) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *MessagingServiceMock) UpdateProfile(ctx context.Context, userID int64, update models.ProfileUpdate) (models.User, error) {
	args := m.Called(ctx, userID, update)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) NotifyConversation(ctx context.Context, event models.ConversationEvent) {
	m.Called(ctx, event)
}

var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ messaging.Publisher = (*PublisherMock)(nil)
var _ messaging.Notifier = (*NotifierMock)(nil)
