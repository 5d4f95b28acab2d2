package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/felixgeelhaar/teamfinder/internal/shared/events"
)

// DefaultMaxRedeliveries bounds requeue-on-failure before a message is
// moved to the dead-letter queue.
const DefaultMaxRedeliveries = 5

// RabbitMQConsumerConfig configures one durable-queue consumer.
type RabbitMQConsumerConfig struct {
	URL      string
	Exchange string
	Queue    string
	// MaxRedeliveries caps redelivery of a failing message before it
	// is parked on "<queue>.dead". Zero means DefaultMaxRedeliveries.
	MaxRedeliveries int
	Logger          *slog.Logger
}

// RabbitMQConsumer binds a durable queue to one exchange and
// dispatches received messages to a handler registry.
//
// If the broker is unreachable at construction the consumer enters a
// disabled state for the process lifetime: Start logs once and returns
// without consuming, leaving the rest of the service operational.
type RabbitMQConsumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	exchange string
	maxRedel int
	registry *Registry
	logger   *slog.Logger
	publish  publishFn

	mu       sync.Mutex
	running  bool
	disabled bool
}

// NewRabbitMQConsumer connects, declares the exchange and queue, and
// binds the queue to every routing key the registry handles. All
// declarations are idempotent.
func NewRabbitMQConsumer(cfg RabbitMQConsumerConfig, registry *Registry) *RabbitMQConsumer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxRedeliveries <= 0 {
		cfg.MaxRedeliveries = DefaultMaxRedeliveries
	}

	c := &RabbitMQConsumer{
		queue:    cfg.Queue,
		exchange: cfg.Exchange,
		maxRedel: cfg.MaxRedeliveries,
		registry: registry,
		logger:   cfg.Logger,
	}

	if err := c.setup(cfg.URL); err != nil {
		cfg.Logger.Error("failed to connect to RabbitMQ, consumer disabled",
			"queue", cfg.Queue,
			"exchange", cfg.Exchange,
			"error", err,
		)
		c.disabled = true
		return c
	}

	cfg.Logger.Info("RabbitMQ consumer connected",
		"queue", cfg.Queue,
		"exchange", cfg.Exchange,
		"bindings", registry.RoutingKeys(),
	)
	return c
}

func (c *RabbitMQConsumer) setup(url string) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	cleanup := func() {
		_ = ch.Close()
		_ = conn.Close()
	}

	err = ch.ExchangeDeclare(
		c.exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		cleanup()
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		c.queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{
			// Quorum queues carry an x-delivery-count header on
			// redeliveries, which the redelivery bound relies on.
			"x-queue-type": "quorum",
		},
	)
	if err != nil {
		cleanup()
		return fmt.Errorf("declare queue: %w", err)
	}

	// Parking place for messages that exhausted their redeliveries.
	_, err = ch.QueueDeclare(
		c.deadQueue(),
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		cleanup()
		return fmt.Errorf("declare dead-letter queue: %w", err)
	}

	for _, key := range c.registry.RoutingKeys() {
		if err := ch.QueueBind(c.queue, key, c.exchange, false, nil); err != nil {
			cleanup()
			return fmt.Errorf("bind %q: %w", key, err)
		}
	}

	c.conn = conn
	c.channel = ch
	c.publish = func(ctx context.Context, exchange, routingKey string, pub amqp.Publishing) error {
		return ch.PublishWithContext(ctx, exchange, routingKey, false, false, pub)
	}
	return nil
}

// publishFn sends one message to an exchange under a routing key.
type publishFn func(ctx context.Context, exchange, routingKey string, pub amqp.Publishing) error

func (c *RabbitMQConsumer) deadQueue() string {
	return c.queue + ".dead"
}

// Disabled reports whether the consumer failed its initial setup.
func (c *RabbitMQConsumer) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// Start consumes messages until the context is cancelled. One message
// is in flight at a time per consumer instance (prefetch 1); delivery
// order within the queue is preserved.
func (c *RabbitMQConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.disabled {
		c.mu.Unlock()
		c.logger.Warn("consumer disabled, not consuming", "queue", c.queue)
		return nil
	}
	if c.running {
		c.mu.Unlock()
		return errors.New("consumer already running")
	}
	c.running = true
	c.mu.Unlock()

	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.queue,
		"",    // consumer tag (auto-generated)
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.Info("started consuming events", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer context cancelled, stopping", "queue", c.queue)
			return ctx.Err()

		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("delivery channel closed", "queue", c.queue)
				return errors.New("delivery channel closed unexpectedly")
			}
			c.handleDelivery(ctx, msg)
		}
	}
}

func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) {
	event, err := events.Decode(msg.RoutingKey, msg.Body)
	if err != nil {
		// Unknown keys and malformed payloads will never become
		// processable; drop them so they cannot poison the queue.
		c.logger.Error("dropping undecodable message",
			"queue", c.queue,
			"routing_key", msg.RoutingKey,
			"error", err,
		)
		c.ack(msg)
		return
	}

	start := time.Now()
	res := c.registry.Dispatch(ctx, event)
	duration := time.Since(start)

	if !res.ShouldRequeue() {
		c.logger.Debug("event processed",
			"queue", c.queue,
			"routing_key", msg.RoutingKey,
			"status", res.Status.String(),
			"duration_ms", duration.Milliseconds(),
		)
		c.ack(msg)
		return
	}

	if c.redeliveries(msg) >= c.maxRedel {
		c.logger.Error("redelivery limit reached, dead-lettering",
			"queue", c.queue,
			"routing_key", msg.RoutingKey,
			"max_redeliveries", c.maxRedel,
			"error", res.Err,
		)
		if err := c.deadLetter(ctx, msg); err != nil {
			c.logger.Error("failed to dead-letter, requeueing", "error", err)
			c.nackRequeue(msg)
			return
		}
		c.ack(msg)
		return
	}

	c.logger.Warn("requeueing message after transient failure",
		"queue", c.queue,
		"routing_key", msg.RoutingKey,
		"error", res.Err,
	)
	c.nackRequeue(msg)
}

// redeliveries derives how often the message has already been
// redelivered. Quorum queues carry an exact x-delivery-count header.
// Without the header only the redelivered flag is available, which
// cannot count rounds; a redelivered message is then treated as on its
// final attempt, so a persistently failing handler gets exactly one
// retry before the message is parked.
func (c *RabbitMQConsumer) redeliveries(msg amqp.Delivery) int {
	if v, ok := msg.Headers["x-delivery-count"]; ok {
		switch n := v.(type) {
		case int32:
			return int(n)
		case int64:
			return int(n)
		case int:
			return n
		}
	}
	if msg.Redelivered {
		return c.maxRedel
	}
	return 0
}

func (c *RabbitMQConsumer) deadLetter(ctx context.Context, msg amqp.Delivery) error {
	return c.publish(ctx,
		"", // default exchange routes directly to the queue
		c.deadQueue(),
		amqp.Publishing{
			ContentType:  msg.ContentType,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Headers: amqp.Table{
				"x-original-routing-key": msg.RoutingKey,
			},
			Body: msg.Body,
		},
	)
}

func (c *RabbitMQConsumer) ack(msg amqp.Delivery) {
	if err := msg.Ack(false); err != nil {
		c.logger.Error("failed to ack message", "queue", c.queue, "error", err)
	}
}

func (c *RabbitMQConsumer) nackRequeue(msg amqp.Delivery) {
	if err := msg.Nack(false, true); err != nil {
		c.logger.Error("failed to nack message", "queue", c.queue, "error", err)
	}
}

// Close closes the channel and connection, letting an in-flight ack
// complete where possible.
func (c *RabbitMQConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.running = false
	if c.disabled {
		return nil
	}

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Warn("error closing channel", "error", err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return err
		}
	}

	c.logger.Info("RabbitMQ consumer closed", "queue", c.queue)
	return nil
}
