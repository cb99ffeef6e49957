// Package telemetry emits audit records for user-visible actions.
package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Publisher is the subset of the broker publisher used for audit records.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"

	auditSchemaVersion = 2
)

// Audit actions.
const (
	ActionUserCreated    = "user.created"
	ActionProfileUpdated = "user.profile_updated"
	ActionMessageUnsent  = "message.unsent"
	ActionAuditTest      = "debug.audit_test"
)

// AuditEntry is one auditable action.
type AuditEntry struct {
	Level     string
	Action    string
	Text      string
	RequestID string
	UserID    *int64
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	TraceID       string       `json:"trace_id,omitempty"`
	UserID        *int64       `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string `json:"level"`
	Action string `json:"action"`
	Text   string `json:"text"`
}

// AuditEmitter publishes audit envelopes on a fixed routing key.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	now         func() time.Time
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		now:         time.Now,
	}
}

// Emit publishes entry. A nil emitter is a no-op and publish failures are
// only logged.
func (e *AuditEmitter) Emit(ctx context.Context, entry AuditEntry) {
	if e == nil || e.publisher == nil {
		return
	}
	if entry.Level == "" {
		entry.Level = LevelInfo
	}

	envelope := AuditEnvelope{
		SchemaVersion: auditSchemaVersion,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     entry.RequestID,
		UserID:        entry.UserID,
		Payload: AuditPayload{
			Level:  entry.Level,
			Action: entry.Action,
			Text:   entry.Text,
		},
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		envelope.TraceID = sc.TraceID().String()
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("action", entry.Action).Msg("audit publish failed")
	}
}
