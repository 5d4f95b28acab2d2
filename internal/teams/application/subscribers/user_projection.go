// Package subscribers contains the team service's event handlers.
package subscribers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/felixgeelhaar/teamfinder/internal/shared/events"
	"github.com/felixgeelhaar/teamfinder/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/teamfinder/internal/teams/domain"
)

// UserProjection keeps the team service's user replica in sync with
// user.* events. It is the replica's only write path.
//
// All outcomes are idempotent: duplicate creates, updates of unknown
// users, and deletes of absent users are acknowledged as success so
// redelivered messages converge on the same state.
type UserProjection struct {
	store  domain.Store
	logger *slog.Logger
}

// NewUserProjection creates the projection handler.
func NewUserProjection(store domain.Store, logger *slog.Logger) *UserProjection {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserProjection{store: store, logger: logger}
}

// RoutingKeys lists the consumed user events.
func (p *UserProjection) RoutingKeys() []string {
	return events.UserEventRoutingKeys()
}

// Handle applies one user event to the replica.
func (p *UserProjection) Handle(ctx context.Context, event events.Event) eventbus.Result {
	switch ev := event.(type) {
	case *events.UserRegistered:
		return p.applyRegistered(ctx, ev)
	case *events.UserUpdated:
		return p.applyUpdated(ctx, ev)
	case *events.UserDeleted:
		return p.applyDeleted(ctx, ev)
	default:
		p.logger.Warn("unexpected event type", "routing_key", event.RoutingKey())
		return eventbus.OK()
	}
}

func (p *UserProjection) applyRegistered(ctx context.Context, ev *events.UserRegistered) eventbus.Result {
	err := p.store.InsertUser(ctx, &domain.User{
		ID:       ev.UserID,
		Username: ev.Username,
		Email:    ev.Email,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			// Duplicate delivery; the replica already has this user.
			return eventbus.Conflict(err)
		}
		return eventbus.Retry(err)
	}

	p.logger.Info("replica user added", "user_id", ev.UserID)
	return eventbus.OK()
}

func (p *UserProjection) applyUpdated(ctx context.Context, ev *events.UserUpdated) eventbus.Result {
	user, err := p.store.FindUser(ctx, ev.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// The update raced ahead of, or arrived without, a prior
			// create. Non-fatal.
			return eventbus.NotFound(err)
		}
		return eventbus.Retry(err)
	}

	user.Username = ev.Username
	user.Email = ev.Email
	if err := p.store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return eventbus.NotFound(err)
		}
		return eventbus.Retry(err)
	}

	p.logger.Info("replica user updated", "user_id", ev.UserID)
	return eventbus.OK()
}

func (p *UserProjection) applyDeleted(ctx context.Context, ev *events.UserDeleted) eventbus.Result {
	res, err := p.store.DeleteUserCascade(ctx, ev.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return eventbus.NotFound(err)
		}
		return eventbus.Retry(err)
	}

	p.logger.Info("replica user removed",
		"user_id", ev.UserID,
		"teams_deleted", res.TeamsDeleted,
		"memberships_removed", res.MembershipsRemoved,
	)
	return eventbus.OK()
}

var _ eventbus.Handler = (*UserProjection)(nil)
