package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const relayChannel = "telemon:realtime"

// RedisRelay publishes events on a Redis channel and forwards every message
// received on it to the local hub, so a clinician connected to any instance
// receives events raised on any other.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
	logger zerolog.Logger
}

func NewRedisRelay(client *redis.Client, hub *Hub, logger zerolog.Logger) *RedisRelay {
	return &RedisRelay{client: client, hub: hub, logger: logger}
}

func (r *RedisRelay) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, relayChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Start subscribes to the relay channel and forwards messages to the hub
// until ctx is done. It returns once the subscription is confirmed.
func (r *RedisRelay) Start(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, relayChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					r.logger.Warn().Err(err).Msg("realtime: malformed relay message")
					continue
				}
				r.hub.Broadcast(event)
			}
		}
	}()
	return nil
}
