package email

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/felixgeelhaar/teamfinder/internal/notifications/domain"
)

// ErrRelayUnavailable is returned while the breaker is open and sends
// are being refused without contacting the relay.
var ErrRelayUnavailable = errors.New("email relay unavailable")

// BreakerConfig tunes the circuit breaker around the relay.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerConfig trips after five consecutive failures and
// probes again after thirty seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerSender wraps an EmailSender with a circuit breaker so a dead
// relay fails fast instead of stalling every event handler on SMTP
// timeouts.
type BreakerSender struct {
	inner   domain.EmailSender
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

// NewBreakerSender wraps the sender.
func NewBreakerSender(inner domain.EmailSender, config BreakerConfig, logger *slog.Logger) *BreakerSender {
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        "smtp-relay",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &BreakerSender{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		logger:  logger,
	}
}

// Send submits through the breaker.
func (s *BreakerSender) Send(ctx context.Context, to string, n domain.Notification) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.inner.Send(ctx, to, n)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrRelayUnavailable
	}
	return err
}

var _ domain.EmailSender = (*BreakerSender)(nil)
