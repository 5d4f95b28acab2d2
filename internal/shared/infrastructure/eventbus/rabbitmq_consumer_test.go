package eventbus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/teamfinder/internal/shared/events"
)

type stubHandler struct {
	keys   []string
	seen   int
	result Result
}

func (h *stubHandler) RoutingKeys() []string { return h.keys }

func (h *stubHandler) Handle(ctx context.Context, event events.Event) Result {
	h.seen++
	return h.result
}

type fakeAcknowledger struct {
	acks     int
	nacks    int
	requeued bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error { a.acks++; return nil }

func (a *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	a.nacks++
	a.requeued = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error { return nil }

type publishRecorder struct {
	calls      int
	exchange   string
	routingKey string
	msg        amqp.Publishing
	err        error
}

func (r *publishRecorder) publish(ctx context.Context, exchange, routingKey string, pub amqp.Publishing) error {
	r.calls++
	r.exchange = exchange
	r.routingKey = routingKey
	r.msg = pub
	return r.err
}

func newHandleTestConsumer(handler Handler, maxRedel int) (*RabbitMQConsumer, *publishRecorder) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := NewRegistry(logger)
	registry.Register(handler)

	rec := &publishRecorder{}
	c := &RabbitMQConsumer{
		queue:    "team_service_user_events",
		exchange: events.UserEventsExchange,
		maxRedel: maxRedel,
		registry: registry,
		logger:   logger,
		publish:  rec.publish,
	}
	return c, rec
}

func registeredBody(t *testing.T) []byte {
	t.Helper()
	body, err := events.Encode(events.UserRegistered{
		UserID:   uuid.New(),
		Username: "alice",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)
	return body
}

func TestHandleDelivery_AcksProcessedMessage(t *testing.T) {
	h := &stubHandler{keys: []string{events.RoutingKeyUserRegistered}, result: OK()}
	c, rec := newHandleTestConsumer(h, DefaultMaxRedeliveries)

	ack := &fakeAcknowledger{}
	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		RoutingKey:   events.RoutingKeyUserRegistered,
		Body:         registeredBody(t),
	})

	assert.Equal(t, 1, h.seen)
	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
	assert.Zero(t, rec.calls)
}

func TestHandleDelivery_DropsUndecodableMessages(t *testing.T) {
	h := &stubHandler{keys: []string{events.RoutingKeyUserRegistered}, result: OK()}
	c, rec := newHandleTestConsumer(h, DefaultMaxRedeliveries)

	// Malformed payload on a known key and an unknown key are both
	// acknowledged so they cannot poison the queue.
	ack := &fakeAcknowledger{}
	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		RoutingKey:   events.RoutingKeyUserRegistered,
		Body:         []byte(`{broken`),
	})
	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		RoutingKey:   "user.promoted",
		Body:         []byte(`{}`),
	})

	assert.Zero(t, h.seen)
	assert.Equal(t, 2, ack.acks)
	assert.Zero(t, ack.nacks)
	assert.Zero(t, rec.calls)
}

func TestHandleDelivery_RequeuesFirstTransientFailure(t *testing.T) {
	h := &stubHandler{
		keys:   []string{events.RoutingKeyUserRegistered},
		result: Retry(errors.New("store unavailable")),
	}
	c, rec := newHandleTestConsumer(h, 5)

	ack := &fakeAcknowledger{}
	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		RoutingKey:   events.RoutingKeyUserRegistered,
		Body:         registeredBody(t),
	})

	assert.Equal(t, 1, ack.nacks)
	assert.True(t, ack.requeued)
	assert.Zero(t, ack.acks)
	assert.Zero(t, rec.calls)
}

func TestHandleDelivery_RequeuesBelowDeliveryCountLimit(t *testing.T) {
	h := &stubHandler{
		keys:   []string{events.RoutingKeyUserRegistered},
		result: Retry(errors.New("store unavailable")),
	}
	c, rec := newHandleTestConsumer(h, 5)

	ack := &fakeAcknowledger{}
	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		RoutingKey:   events.RoutingKeyUserRegistered,
		Redelivered:  true,
		Headers:      amqp.Table{"x-delivery-count": int64(2)},
		Body:         registeredBody(t),
	})

	assert.Equal(t, 1, ack.nacks)
	assert.True(t, ack.requeued)
	assert.Zero(t, rec.calls)
}

func TestHandleDelivery_DeadLettersAtDeliveryCountLimit(t *testing.T) {
	h := &stubHandler{
		keys:   []string{events.RoutingKeyUserRegistered},
		result: Retry(errors.New("store unavailable")),
	}
	c, rec := newHandleTestConsumer(h, 5)

	body := registeredBody(t)
	ack := &fakeAcknowledger{}
	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		RoutingKey:   events.RoutingKeyUserRegistered,
		Redelivered:  true,
		Headers:      amqp.Table{"x-delivery-count": int64(5)},
		Body:         body,
	})

	require.Equal(t, 1, rec.calls)
	assert.Equal(t, "", rec.exchange)
	assert.Equal(t, "team_service_user_events.dead", rec.routingKey)
	assert.Equal(t, events.RoutingKeyUserRegistered, rec.msg.Headers["x-original-routing-key"])
	assert.Equal(t, body, rec.msg.Body)
	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
}

func TestHandleDelivery_DeadLettersRedeliveryWithoutCountHeader(t *testing.T) {
	// Classic queues expose only the redelivered flag, never a
	// delivery count. A redelivered message must count as the final
	// attempt there, otherwise it would requeue forever.
	h := &stubHandler{
		keys:   []string{events.RoutingKeyUserRegistered},
		result: Retry(errors.New("store unavailable")),
	}
	c, rec := newHandleTestConsumer(h, 5)

	ack := &fakeAcknowledger{}
	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		RoutingKey:   events.RoutingKeyUserRegistered,
		Redelivered:  true,
		Body:         registeredBody(t),
	})

	require.Equal(t, 1, rec.calls)
	assert.Equal(t, "team_service_user_events.dead", rec.routingKey)
	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
}

func TestStart_DisabledConsumerReturnsWithoutError(t *testing.T) {
	h := &stubHandler{keys: []string{events.RoutingKeyUserRegistered}, result: OK()}
	c, _ := newHandleTestConsumer(h, DefaultMaxRedeliveries)
	c.disabled = true

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Close())
}

func TestHandleDelivery_RequeuesWhenDeadLetterFails(t *testing.T) {
	h := &stubHandler{
		keys:   []string{events.RoutingKeyUserRegistered},
		result: Retry(errors.New("store unavailable")),
	}
	c, rec := newHandleTestConsumer(h, 5)
	rec.err = errors.New("channel closed")

	ack := &fakeAcknowledger{}
	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		RoutingKey:   events.RoutingKeyUserRegistered,
		Redelivered:  true,
		Headers:      amqp.Table{"x-delivery-count": int64(5)},
		Body:         registeredBody(t),
	})

	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, 1, ack.nacks)
	assert.True(t, ack.requeued)
	assert.Zero(t, ack.acks)
}
