package eventbus

import (
	"context"

	"github.com/felixgeelhaar/teamfinder/internal/shared/events"
)

// Handler processes decoded domain events for a set of routing keys.
//
// Handlers must be idempotent: under at-least-once delivery the same
// event may arrive more than once, and horizontally scaled consumer
// instances may process different messages of the same queue
// concurrently. Use per-key existence checks, never assume
// single-writer access.
type Handler interface {
	// RoutingKeys returns the routing keys this handler consumes.
	RoutingKeys() []string

	// Handle applies one event and reports the outcome.
	Handle(ctx context.Context, event events.Event) Result
}

// Consumer is a background process bound to one durable queue.
type Consumer interface {
	// Start begins consuming. Blocks until the context is cancelled or
	// the consumer stops.
	Start(ctx context.Context) error

	// Close releases the broker connection.
	Close() error
}
