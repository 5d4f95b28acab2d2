// Package subscribers turns bus events into client notifications.
// Notification fan-out is best-effort, so every delivery is
// acknowledged; there is nothing to retry.
package subscribers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/teamfinder/internal/notifications/domain"
	"github.com/felixgeelhaar/teamfinder/internal/shared/events"
	"github.com/felixgeelhaar/teamfinder/internal/shared/infrastructure/eventbus"
)

// UserEvents notifies users about their own account lifecycle.
type UserEvents struct {
	notifier domain.Notifier
	logger   *slog.Logger
}

// NewUserEvents creates the handler.
func NewUserEvents(notifier domain.Notifier, logger *slog.Logger) *UserEvents {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserEvents{notifier: notifier, logger: logger}
}

// RoutingKeys lists the consumed user events.
func (h *UserEvents) RoutingKeys() []string {
	return events.UserEventRoutingKeys()
}

// Handle fans one user event out to the affected user.
func (h *UserEvents) Handle(ctx context.Context, event events.Event) eventbus.Result {
	switch ev := event.(type) {
	case *events.UserRegistered:
		h.notifier.SendToUser(ctx, ev.UserID, domain.New(
			"UserRegistered",
			fmt.Sprintf("Welcome, %s! Your account has been created successfully.", ev.Username),
			map[string]any{"UserId": ev.UserID, "Username": ev.Username},
		))
	case *events.UserUpdated:
		h.notifier.SendToUser(ctx, ev.UserID, domain.New(
			"UserUpdated",
			"Your profile has been updated successfully.",
			map[string]any{"UserId": ev.UserID, "Username": ev.Username},
		))
	case *events.UserDeleted:
		// The account is gone; there is no one left to notify.
		h.logger.Info("user deleted, no notification sent", "user_id", ev.UserID)
	default:
		h.logger.Warn("unexpected event type", "routing_key", event.RoutingKey())
	}
	return eventbus.OK()
}

var _ eventbus.Handler = (*UserEvents)(nil)
