package messaging

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cgu-connect/internal/models"
	"cgu-connect/internal/observability"
	"cgu-connect/internal/repositories"
)

// GetOrCreateConversation returns the single conversation between a and b,
// creating it on first use. Argument order does not matter.
func (s *Service) GetOrCreateConversation(ctx context.Context, participantA, participantB int64) (models.Conversation, error) {
	ctx, span := tracer.Start(ctx, "messaging.GetOrCreateConversation", trace.WithAttributes(
		attribute.Int64("participant_a", participantA),
		attribute.Int64("participant_b", participantB),
	))
	defer span.End()

	if participantA == participantB || participantA <= 0 || participantB <= 0 {
		return models.Conversation{}, ErrInvalidParticipant
	}
	low, high := participantA, participantB
	if low > high {
		low, high = high, low
	}

	conv, err := s.conversations.GetByParticipants(ctx, low, high)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, repositories.ErrConversationNotFound) {
		return models.Conversation{}, storeFailure("lookup conversation", err)
	}

	for _, id := range []int64{low, high} {
		exists, err := s.users.Exists(ctx, id)
		if err != nil {
			return models.Conversation{}, storeFailure("lookup participant", err)
		}
		if !exists {
			return models.Conversation{}, ErrInvalidParticipant
		}
	}

	conv, err = s.conversations.Create(ctx, low, high, s.opts.Now())
	switch {
	case err == nil:
	case errors.Is(err, repositories.ErrDuplicateConversation):
		// lost the creation race; the winner's row is the answer
		conv, err = s.conversations.GetByParticipants(ctx, low, high)
		if err != nil {
			return models.Conversation{}, errors.Join(ErrDuplicateConversation, err)
		}
		return conv, nil
	case errors.Is(err, repositories.ErrUnknownReference):
		return models.Conversation{}, ErrInvalidParticipant
	default:
		return models.Conversation{}, storeFailure("create conversation", err)
	}

	observability.IncConversationCreated()
	log.Ctx(ctx).Info().Int64("conversation_id", conv.ID).Int64("low_id", low).Int64("high_id", high).Msg("conversation created")
	s.publish(ctx, RouteConversationCreated, conv)
	return conv, nil
}

// ListConversations returns userID's conversations annotated with the last
// message and the unread count. A missing or stale last-message pointer is
// repaired from the messages table for the response.
func (s *Service) ListConversations(ctx context.Context, userID int64) ([]models.ConversationSummary, error) {
	ctx, span := tracer.Start(ctx, "messaging.ListConversations", trace.WithAttributes(attribute.Int64("user_id", userID)))
	defer span.End()

	convs, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, storeFailure("list conversations", err)
	}
	summaries := make([]models.ConversationSummary, 0, len(convs))
	if len(convs) == 0 {
		return summaries, nil
	}

	convIDs := make([]int64, 0, len(convs))
	pointerIDs := make([]int64, 0, len(convs))
	for _, conv := range convs {
		convIDs = append(convIDs, conv.ID)
		if conv.LastMessageID != nil {
			pointerIDs = append(pointerIDs, *conv.LastMessageID)
		}
	}

	latestIDs, err := s.messages.LatestIDs(ctx, convIDs)
	if err != nil {
		return nil, storeFailure("load latest message ids", err)
	}
	pointed, err := s.messages.GetByIDs(ctx, pointerIDs)
	if err != nil {
		return nil, storeFailure("load last messages", err)
	}
	byID := make(map[int64]models.Message, len(pointed))
	for _, m := range pointed {
		byID[m.ID] = m
	}
	unread, err := s.messages.UnreadCountsForUser(ctx, userID)
	if err != nil {
		return nil, storeFailure("count unread", err)
	}

	for _, conv := range convs {
		summary := models.ConversationSummary{
			Conversation:       conv,
			OtherParticipantID: conv.OtherParticipant(userID),
			UnreadCount:        unread[conv.ID],
		}
		latestID, hasMessages := latestIDs[conv.ID]
		if hasMessages {
			last, fresh := pointerMessage(conv, byID, latestID)
			if !fresh {
				recovered, err := s.messages.Latest(ctx, conv.ID)
				if err != nil && !errors.Is(err, repositories.ErrMessageNotFound) {
					return nil, storeFailure("load latest message", err)
				}
				if err == nil {
					log.Ctx(ctx).Debug().Int64("conversation_id", conv.ID).Msg("stale last message pointer, using fallback")
					last = &recovered
				}
			}
			summary.LastMessage = last
		}
		summaries = append(summaries, summary)
	}

	// repaired pointers can change the activity order
	sort.SliceStable(summaries, func(i, j int) bool {
		return activity(summaries[i]).After(activity(summaries[j]))
	})
	return summaries, nil
}

// pointerMessage resolves the conversation's pointer and reports whether it
// still designates the newest message.
func pointerMessage(conv models.Conversation, byID map[int64]models.Message, latestID int64) (*models.Message, bool) {
	if conv.LastMessageID == nil {
		return nil, false
	}
	msg, ok := byID[*conv.LastMessageID]
	if !ok || msg.ConversationID != conv.ID || msg.ID != latestID {
		return nil, false
	}
	return &msg, true
}

func activity(s models.ConversationSummary) time.Time {
	if s.LastMessage != nil {
		return s.LastMessage.CreatedAt
	}
	if s.LastMessageAt != nil {
		return *s.LastMessageAt
	}
	return s.CreatedAt
}
