package application

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/teamfinder/internal/notifications/domain"
)

// EmailService batches notification emails. Unlike the websocket
// fan-out, email failures are reported to the caller.
type EmailService struct {
	sender domain.EmailSender
	logger *slog.Logger
}

// NewEmailService wires the service.
func NewEmailService(sender domain.EmailSender, logger *slog.Logger) *EmailService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailService{sender: sender, logger: logger}
}

// Send delivers one notification email.
func (s *EmailService) Send(ctx context.Context, to string, n domain.Notification) error {
	return s.sender.Send(ctx, to, n)
}

// SendToMany delivers the notification to every recipient. Sends run
// independently; one failing does not cancel the others, and the first
// error is returned after all sends finish.
func (s *EmailService) SendToMany(ctx context.Context, recipients []string, n domain.Notification) error {
	var g errgroup.Group
	for _, to := range recipients {
		g.Go(func() error {
			if err := s.sender.Send(ctx, to, n); err != nil {
				s.logger.Warn("email send failed", "to", to, "error", err)
				return fmt.Errorf("send to %s: %w", to, err)
			}
			return nil
		})
	}
	return g.Wait()
}
