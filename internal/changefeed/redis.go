package changefeed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/go-petr/unipay/internal/domain"
)

// RedisBridge publishes change events to a Redis channel and relays the
// channel into a Hub, so every server instance sees every change.
type RedisBridge struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  zerolog.Logger
	ready   chan struct{}
}

// NewRedisClient configures a Redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// NewRedisBridge returns a bridge between channel and hub.
func NewRedisBridge(client *redis.Client, channel string, hub *Hub, logger zerolog.Logger) *RedisBridge {
	return &RedisBridge{
		client:  client,
		channel: channel,
		hub:     hub,
		logger:  logger,
		ready:   make(chan struct{}),
	}
}

// Publish sends ev to the Redis channel.
func (b *RedisBridge) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Ready is closed once the bridge is subscribed to the channel.
func (b *RedisBridge) Ready() <-chan struct{} {
	return b.ready
}

// Run relays the channel into the hub until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	ps := b.client.Subscribe(ctx, b.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	close(b.ready)

	b.logger.Info().Str("channel", b.channel).Msg("redis change feed subscribed")

	messages := ps.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			ev, err := DecodeEvent([]byte(msg.Payload))
			if err != nil {
				b.logger.Warn().Err(err).Str("payload", msg.Payload).Msg("malformed change event")
				continue
			}

			_ = b.hub.Publish(ctx, ev)
		}
	}
}
