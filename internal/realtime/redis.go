package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisBridge shares hub events between server processes over a Redis
// pub/sub channel.
type RedisBridge struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *slog.Logger
}

func NewRedisBridge(client *redis.Client, channel string, hub *Hub, logger *slog.Logger) *RedisBridge {
	return &RedisBridge{client: client, channel: channel, hub: hub, logger: logger}
}

// Forward publishes a locally produced event.
func (b *RedisBridge) Forward(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Run delivers events published by other processes to the local hub until
// ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.channel, err)
	}
	b.logger.Info("relaying events over redis", "channel", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				b.logger.Warn("dropping malformed relay event", "error", err)
				continue
			}
			if e.Origin == b.hub.Origin() {
				continue
			}
			b.hub.Deliver(e)
		}
	}
}
