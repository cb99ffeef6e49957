package messaging

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cgu-connect/internal/models"
	"cgu-connect/internal/observability"
)

// GetUnreadCount counts messages in the conversation that userID has not
// read and did not send. Unsent messages never count.
func (s *Service) GetUnreadCount(ctx context.Context, userID, conversationID int64) (int, error) {
	ctx, span := tracer.Start(ctx, "messaging.GetUnreadCount", trace.WithAttributes(attribute.Int64("conversation_id", conversationID)))
	defer span.End()

	if _, err := s.participantConversation(ctx, conversationID, userID); err != nil {
		return 0, err
	}
	count, err := s.messages.CountUnread(ctx, conversationID, userID)
	if err != nil {
		return 0, storeFailure("count unread", err)
	}
	return count, nil
}

// GetGlobalUnreadCount sums GetUnreadCount over every conversation of userID.
func (s *Service) GetGlobalUnreadCount(ctx context.Context, userID int64) (int, error) {
	ctx, span := tracer.Start(ctx, "messaging.GetGlobalUnreadCount", trace.WithAttributes(attribute.Int64("user_id", userID)))
	defer span.End()

	count, err := s.messages.CountUnreadForUser(ctx, userID)
	if err != nil {
		return 0, storeFailure("count global unread", err)
	}
	return count, nil
}

// MarkConversationRead marks the other participant's messages as read and
// returns how many changed. Messages written after the call started are left
// for the next poll.
func (s *Service) MarkConversationRead(ctx context.Context, conversationID, userID int64) (int64, error) {
	ctx, span := tracer.Start(ctx, "messaging.MarkConversationRead", trace.WithAttributes(attribute.Int64("conversation_id", conversationID)))
	defer span.End()

	callTime := s.opts.Now()
	conv, err := s.participantConversation(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	updated, err := s.messages.MarkRead(ctx, conv.ID, userID, callTime)
	if err != nil {
		return 0, storeFailure("mark read", err)
	}
	if updated == 0 {
		return 0, nil
	}

	observability.AddMessagesRead(updated)
	s.notify(ctx, models.ConversationEvent{Type: models.EventRead, ConversationID: conv.ID, ReaderID: userID, ReadCount: updated})
	s.publish(ctx, RouteMessagesRead, map[string]any{
		"conversation_id": conv.ID,
		"reader_id":       userID,
		"sender_id":       conv.OtherParticipant(userID),
		"count":           updated,
	})
	return updated, nil
}
