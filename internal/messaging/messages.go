package messaging

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cgu-connect/internal/models"
	"cgu-connect/internal/observability"
	"cgu-connect/internal/repositories"
)

// SendMessageInput is the payload of SendMessage.
type SendMessageInput struct {
	ConversationID int64
	SenderID       int64
	Content        string
	Kind           models.MessageKind
	MediaURL       *string
}

// SendMessage appends a message and then moves the conversation's
// last-message pointer to it. A failed pointer update does not fail the send.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (models.Message, error) {
	ctx, span := tracer.Start(ctx, "messaging.SendMessage", trace.WithAttributes(
		attribute.Int64("conversation_id", in.ConversationID),
		attribute.Int64("sender_id", in.SenderID),
		attribute.String("message_type", string(in.Kind)),
	))
	defer span.End()

	conv, err := s.participantConversation(ctx, in.ConversationID, in.SenderID)
	if err != nil {
		return models.Message{}, err
	}
	if in.Kind == "" {
		in.Kind = models.KindText
	}
	if !in.Kind.Valid() {
		return models.Message{}, ErrInvalidMessageKind
	}
	if in.MediaURL != nil && strings.TrimSpace(*in.MediaURL) == "" {
		in.MediaURL = nil
	}
	switch in.Kind {
	case models.KindText:
		if strings.TrimSpace(in.Content) == "" {
			return models.Message{}, ErrEmptyContent
		}
	default:
		if in.MediaURL == nil && s.opts.RequireMedia {
			return models.Message{}, ErrMediaRequired
		}
	}

	now := s.opts.Now()
	msg, err := s.messages.Create(ctx, models.Message{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		Kind:           in.Kind,
		MediaURL:       in.MediaURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrUnknownReference) {
			return models.Message{}, notFound("conversation", in.ConversationID)
		}
		return models.Message{}, storeFailure("insert message", err)
	}
	observability.IncMessageSent(string(msg.Kind))

	if err := s.conversations.UpdateLastMessage(ctx, conv.ID, msg.ID, msg.CreatedAt); err != nil {
		observability.IncPointerUpdateFailure()
		log.Ctx(ctx).Warn().Err(err).Int64("conversation_id", conv.ID).Int64("message_id", msg.ID).
			Msg("last message pointer update failed")
	}

	s.notify(ctx, models.ConversationEvent{Type: models.EventMessage, ConversationID: conv.ID, Message: &msg})
	s.publish(ctx, RouteMessageSent, map[string]any{
		"message":      msg,
		"recipient_id": conv.OtherParticipant(in.SenderID),
	})
	return msg, nil
}

// ListMessages returns a page of the conversation in chronological order.
// Offset counts back from the newest message.
func (s *Service) ListMessages(ctx context.Context, conversationID, userID int64, limit, offset int) ([]models.Message, error) {
	ctx, span := tracer.Start(ctx, "messaging.ListMessages", trace.WithAttributes(attribute.Int64("conversation_id", conversationID)))
	defer span.End()

	if _, err := s.participantConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.opts.PageSize
	}
	if limit > s.opts.MaxPageSize {
		limit = s.opts.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	msgs, err := s.messages.ListByConversation(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, storeFailure("list messages", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// UnsendMessage tombstones a message. Only its sender may do so; repeating
// the call is harmless.
func (s *Service) UnsendMessage(ctx context.Context, messageID, userID int64) (models.Message, error) {
	ctx, span := tracer.Start(ctx, "messaging.UnsendMessage", trace.WithAttributes(attribute.Int64("message_id", messageID)))
	defer span.End()

	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, notFound("message", messageID)
		}
		return models.Message{}, storeFailure("load message", err)
	}
	if msg.SenderID != userID {
		return models.Message{}, ErrNotAuthorized
	}
	if msg.Unsent {
		return msg, nil
	}

	now := s.opts.Now()
	if err := s.messages.Unsend(ctx, messageID, userID, now); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, notFound("message", messageID)
		}
		return models.Message{}, storeFailure("unsend message", err)
	}
	msg.Content = ""
	msg.MediaURL = nil
	msg.Unsent = true
	msg.UpdatedAt = now

	s.notify(ctx, models.ConversationEvent{Type: models.EventUnsent, ConversationID: msg.ConversationID, MessageID: msg.ID})
	s.publish(ctx, RouteMessageUnsent, map[string]any{
		"message_id":      msg.ID,
		"conversation_id": msg.ConversationID,
		"sender_id":       msg.SenderID,
	})
	return msg, nil
}

// participantConversation loads a conversation and checks userID belongs to it.
func (s *Service) participantConversation(ctx context.Context, conversationID, userID int64) (models.Conversation, error) {
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return models.Conversation{}, notFound("conversation", conversationID)
		}
		return models.Conversation{}, storeFailure("load conversation", err)
	}
	if !conv.HasParticipant(userID) {
		return models.Conversation{}, ErrNotAParticipant
	}
	return conv, nil
}

func (s *Service) notify(ctx context.Context, event models.ConversationEvent) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyConversation(ctx, event)
}

func (s *Service) publish(ctx context.Context, routingKey string, payload any) {
	if s.publisher == nil {
		return
	}
	envelope := EventEnvelope{
		EventType:  routingKey,
		OccurredAt: s.opts.Now().Format("2006-01-02T15:04:05.999999Z07:00"),
		Payload:    payload,
	}
	if err := s.publisher.Publish(ctx, routingKey, envelope); err != nil {
		observability.IncAMQPPublishError()
		log.Ctx(ctx).Warn().Err(err).Str("routing_key", routingKey).Msg("event publish failed")
	}
}
