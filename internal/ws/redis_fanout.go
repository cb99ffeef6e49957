package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"cgu-connect/internal/models"
)

// RedisFanout relays conversation events through a Redis channel so that
// clients connected to any instance receive them.
type RedisFanout struct {
	client  *redis.Client
	channel string
	hub     *Hub
}

// NewRedisFanout connects to url and verifies the connection.
func NewRedisFanout(ctx context.Context, url, channel string, hub *Hub) (*RedisFanout, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisFanout{client: c, channel: channel, hub: hub}, nil
}

// NotifyConversation publishes event to every instance, this one included.
// If Redis is unavailable the event is still delivered locally.
func (f *RedisFanout) NotifyConversation(ctx context.Context, event models.ConversationEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("marshal conversation event")
		return
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("redis publish failed, delivering locally")
		f.hub.broadcast(event.ConversationID, payload)
	}
}

// Run forwards channel messages to the local hub until ctx is done.
func (f *RedisFanout) Run(ctx context.Context) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis: subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis: subscription closed")
			}
			f.deliver([]byte(msg.Payload))
		}
	}
}

func (f *RedisFanout) deliver(payload []byte) {
	var event models.ConversationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Warn().Err(err).Msg("dropping malformed conversation event")
		return
	}
	f.hub.broadcast(event.ConversationID, payload)
}

// Close releases the Redis client.
func (f *RedisFanout) Close() error {
	return f.client.Close()
}
