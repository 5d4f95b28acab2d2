// Package backplane distributes notifications across horizontally
// scaled gateway instances over Redis pub/sub.
package backplane

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/teamfinder/internal/notifications/domain"
)

// DefaultChannel is the Redis channel notifications travel on.
const DefaultChannel = "teamfinder:notifications"

// Redis is a domain.Backplane on Redis pub/sub. Redis delivers
// published messages to every subscriber, the publishing instance
// included, so local delivery happens through Run like everyone
// else's.
type Redis struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedis creates a backplane on the given client. An empty channel
// selects DefaultChannel.
func NewRedis(client *redis.Client, channel string, logger *slog.Logger) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, channel: channel, logger: logger}
}

// Publish sends one envelope to every gateway instance.
func (r *Redis) Publish(ctx context.Context, env domain.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish envelope: %w", err)
	}
	return nil
}

// Run subscribes to the channel and forwards every envelope until the
// context is cancelled. Undecodable messages are logged and dropped.
func (r *Redis) Run(ctx context.Context, forward func(domain.Envelope)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer func() { _ = sub.Close() }()

	// Force the subscription before consuming so publishes racing the
	// startup are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env domain.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Warn("dropping malformed backplane message", "error", err)
				continue
			}
			forward(env)
		}
	}
}

// Close releases the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ domain.Backplane = (*Redis)(nil)
