package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/teamfinder/internal/shared/events"
)

// InProcessBus delivers published events synchronously to registered
// handlers. It stands in for the broker in tests, applying the same
// drop policy as the RabbitMQ consumer.
type InProcessBus struct {
	registry *Registry
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewInProcessBus creates a synchronous bus with its own registry.
func NewInProcessBus(logger *slog.Logger) *InProcessBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessBus{
		registry: NewRegistry(logger),
		logger:   logger,
	}
}

// Register adds a handler for its routing keys.
func (b *InProcessBus) Register(handler Handler) {
	b.registry.Register(handler)
}

// Registry exposes the underlying registry.
func (b *InProcessBus) Registry() *Registry {
	return b.registry
}

// Publish decodes and dispatches immediately. Undecodable messages are
// dropped with a log, mirroring the consumer's poison-message policy.
// Retry outcomes are not redelivered in-process; they are logged and
// dropped, since there is no queue to park them on.
func (b *InProcessBus) Publish(ctx context.Context, routingKey string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	event, err := events.Decode(routingKey, body)
	if err != nil {
		b.logger.Error("dropping undecodable in-process message",
			"routing_key", routingKey,
			"error", err,
		)
		return nil
	}

	if res := b.registry.Dispatch(ctx, event); res.ShouldRequeue() {
		b.logger.Error("in-process dispatch failed, message dropped",
			"routing_key", routingKey,
			"error", res.Err,
		)
	}
	return nil
}

// PublishEvent encodes and publishes a domain event.
func (b *InProcessBus) PublishEvent(ctx context.Context, event events.Event) error {
	body, err := events.Encode(event)
	if err != nil {
		return err
	}
	return b.Publish(ctx, event.RoutingKey(), body)
}

// Start blocks until the context is cancelled. Events are dispatched
// synchronously on Publish, so there is no run loop.
func (b *InProcessBus) Start(ctx context.Context) error {
	b.logger.Info("in-process event bus started (synchronous mode)")
	<-ctx.Done()
	return ctx.Err()
}

// Close is a no-op.
func (b *InProcessBus) Close() error { return nil }

var _ Publisher = (*InProcessBus)(nil)
var _ Consumer = (*InProcessBus)(nil)
