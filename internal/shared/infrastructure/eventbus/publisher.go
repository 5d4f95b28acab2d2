// Package eventbus carries teamfinder domain events across service
// boundaries over a durable topic exchange, and dispatches consumed
// messages to registered handlers with at-least-once semantics.
package eventbus

import (
	"context"
	"log/slog"
)

// Publisher sends serialized events to a topic exchange.
type Publisher interface {
	// Publish sends one message under the given routing key.
	Publish(ctx context.Context, routingKey string, body []byte) error

	// Close releases the broker connection.
	Close() error
}

// NewPublisher connects a RabbitMQ publisher for the given exchange.
// When the broker is unreachable the service must stay available for
// its request/response duties, so this degrades to a no-op publisher
// instead of failing startup.
func NewPublisher(url, exchange string, logger *slog.Logger) Publisher {
	if logger == nil {
		logger = slog.Default()
	}

	pub, err := NewRabbitMQPublisher(url, exchange, logger)
	if err != nil {
		logger.Warn("broker unreachable, publishing disabled",
			"exchange", exchange,
			"error", err,
		)
		return NewNoopPublisher(logger)
	}
	return pub
}

// NoopPublisher drops every message. Used in degraded mode and in
// tests that do not care about publishing.
type NoopPublisher struct {
	logger *slog.Logger
}

// NewNoopPublisher creates a publisher that logs and discards.
func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPublisher{logger: logger}
}

// Publish logs the message and discards it.
func (p *NoopPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	p.logger.Debug("noop publish",
		"routing_key", routingKey,
		"size", len(body),
	)
	return nil
}

// Close is a no-op.
func (p *NoopPublisher) Close() error { return nil }
