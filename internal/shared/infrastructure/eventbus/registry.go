package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/teamfinder/internal/shared/events"
)

// Registry maps routing keys to handlers and dispatches decoded
// events to them.
type Registry struct {
	handlers map[string][]Handler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewRegistry creates an empty handler registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Register adds a handler for each of its declared routing keys.
func (r *Registry) Register(handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range handler.RoutingKeys() {
		r.handlers[key] = append(r.handlers[key], handler)
		r.logger.Debug("registered handler", "routing_key", key)
	}
}

// HandlersFor returns the handlers registered for a routing key.
func (r *Registry) HandlersFor(routingKey string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[routingKey]
}

// RoutingKeys returns every routing key with at least one handler.
// The consumer binds its queue to each of these.
func (r *Registry) RoutingKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	return keys
}

// Dispatch sends an event to every handler for its routing key and
// folds their outcomes: any Retry outcome wins (the message will be
// redelivered to all handlers, which is safe because handlers are
// idempotent); otherwise the dispatch is acknowledged.
func (r *Registry) Dispatch(ctx context.Context, event events.Event) Result {
	handlers := r.HandlersFor(event.RoutingKey())
	if len(handlers) == 0 {
		r.logger.Debug("no handlers for routing key",
			"routing_key", event.RoutingKey(),
		)
		return OK()
	}

	combined := OK()
	for _, h := range handlers {
		res := h.Handle(ctx, event)
		switch res.Status {
		case StatusRetry:
			r.logger.Error("handler reported transient failure",
				"routing_key", event.RoutingKey(),
				"error", res.Err,
			)
			combined = res
		case StatusNotFound, StatusConflict:
			r.logger.Warn("handler reported expected absence",
				"routing_key", event.RoutingKey(),
				"status", res.Status.String(),
				"detail", res.Err,
			)
		}
	}
	return combined
}
