package messaging

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"cgu-connect/internal/models"
	"cgu-connect/internal/repositories"
)

var tracer = otel.Tracer("cgu-connect/messaging")

// Notifier pushes conversation events to connected clients.
type Notifier interface {
	NotifyConversation(ctx context.Context, event models.ConversationEvent)
}

// Publisher emits domain events to the message broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Routing keys of the domain events.
const (
	RouteMessageSent         = "messages.sent"
	RouteMessagesRead        = "messages.read"
	RouteMessageUnsent       = "messages.unsent"
	RouteConversationCreated = "conversations.created"
)

// Options tune validation and paging.
type Options struct {
	RequireMedia bool
	PageSize     int
	MaxPageSize  int
	Now          func() time.Time
}

// Service implements the conversation resolver, message writer and
// read-state tracker on top of the repositories. Every operation takes the
// acting user explicitly.
type Service struct {
	users         repositories.UserRepository
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	notifier      Notifier
	publisher     Publisher
	opts          Options
}

// NewService builds a Service. notifier and publisher may be nil.
func NewService(users repositories.UserRepository, conversations repositories.ConversationRepository, messages repositories.MessageRepository, notifier Notifier, publisher Publisher, opts Options) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.MaxPageSize < opts.PageSize {
		opts.MaxPageSize = opts.PageSize
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
	}
	return &Service{
		users:         users,
		conversations: conversations,
		messages:      messages,
		notifier:      notifier,
		publisher:     publisher,
		opts:          opts,
	}
}

// EventEnvelope is the body of every published domain event.
type EventEnvelope struct {
	EventType  string `json:"event_type"`
	OccurredAt string `json:"occurred_at"`
	Payload    any    `json:"payload"`
}
