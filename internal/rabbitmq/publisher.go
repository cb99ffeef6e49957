package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

// Publisher publishes domain and audit events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Publisher modes reported by Mode.
const (
	ModeAMQP = "amqp"
	ModeNoop = "noop"
)

// NewPublisher connects to the broker and declares a durable topic exchange.
// When amqpURL is empty or the broker cannot be reached it returns a
// publisher that only logs, so the service still runs without RabbitMQ.
func NewPublisher(amqpURL, exchange, appID string) Publisher {
	if amqpURL == "" {
		log.Info().Msg("rabbitmq disabled: empty amqp url")
		return &noopPublisher{reason: "empty amqp url"}
	}

	p := &amqpPublisher{exchange: exchange, appID: appID}
	if err := p.connect(amqpURL); err != nil {
		log.Warn().Err(err).Msg("rabbitmq unreachable, using noop publisher")
		return &noopPublisher{reason: err.Error()}
	}
	log.Info().Str("exchange", exchange).Msg("rabbitmq connected")
	return p
}

type amqpPublisher struct {
	exchange string
	appID    string

	// guards conn and ch; an amqp channel takes one publish at a time
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func (p *amqpPublisher) connect(amqpURL string) error {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	p.conn = conn
	if err := p.openChannel(); err != nil {
		_ = conn.Close()
		return err
	}
	return nil
}

func (p *amqpPublisher) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	p.ch = ch
	return nil
}

// Publish sends event as persistent JSON. The caller's trace context travels
// in the message headers.
func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", routingKey, err)
	}
	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(headers))

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		if p.conn.IsClosed() {
			return amqp.ErrClosed
		}
		if err := p.openChannel(); err != nil {
			return err
		}
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		Headers:      headers,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		AppId:        p.appID,
		Type:         routingKey,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if errors.Is(err, amqp.ErrClosed) {
		// reopened on the next publish
		p.ch = nil
	}
	return err
}

func (p *amqpPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	return p.conn.Close()
}

type noopPublisher struct {
	reason string
}

func (n *noopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	log.Ctx(ctx).Debug().Str("routing_key", routingKey).Msg("rabbitmq noop publish")
	return nil
}

func (n *noopPublisher) Close() error {
	return nil
}

// Mode reports how p delivers events and, for the noop publisher, why.
func Mode(p Publisher) (mode, reason string) {
	switch publisher := p.(type) {
	case *amqpPublisher:
		return ModeAMQP, ""
	case *noopPublisher:
		return ModeNoop, publisher.reason
	default:
		return "unknown", ""
	}
}

// headerCarrier adapts AMQP headers to the OpenTelemetry propagator.
type headerCarrier amqp.Table

func (c headerCarrier) Get(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	c[key] = value
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
