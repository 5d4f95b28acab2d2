// Package application implements the user service use cases. Each
// successful mutation publishes a user.* event; publishing is
// best-effort and never fails the operation that triggered it.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/teamfinder/internal/shared/events"
	"github.com/felixgeelhaar/teamfinder/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/teamfinder/internal/users/domain"
)

// Service exposes user lifecycle operations.
type Service struct {
	repo      domain.Repository
	publisher eventbus.Publisher
	logger    *slog.Logger
}

// NewService wires the user service with its store and event publisher.
func NewService(repo domain.Repository, publisher eventbus.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// RegisterInput carries a validated registration request.
type RegisterInput struct {
	Username       string
	Email          string
	GamingPlatform string
	PreferredGame  string
	SkillLevel     string
}

// Register creates a new account and announces it on the bus.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	user := &domain.User{
		ID:             uuid.New(),
		Username:       in.Username,
		Email:          in.Email,
		GamingPlatform: in.GamingPlatform,
		PreferredGame:  in.PreferredGame,
		SkillLevel:     in.SkillLevel,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.publish(ctx, events.UserRegistered{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
	})

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// UpdateInput carries the full replacement profile for a user.
type UpdateInput struct {
	Username       string
	Email          string
	GamingPlatform string
	PreferredGame  string
	SkillLevel     string
}

// Update replaces a user's profile and announces the change.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Username = in.Username
	user.Email = in.Email
	user.GamingPlatform = in.GamingPlatform
	user.PreferredGame = in.PreferredGame
	user.SkillLevel = in.SkillLevel

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.publish(ctx, events.UserUpdated{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
	})

	s.logger.Info("user updated", "user_id", user.ID)
	return user, nil
}

// Delete removes an account and announces the deletion so other
// services can cascade their replicas.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.publish(ctx, events.UserDeleted{UserID: id})

	s.logger.Info("user deleted", "user_id", id)
	return nil
}

// Get returns a single user.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]*domain.User, error) {
	return s.repo.List(ctx)
}

// publish encodes and sends one event. Errors are logged and
// swallowed: the local mutation has already committed, and messaging
// failures must not surface to the caller.
func (s *Service) publish(ctx context.Context, ev events.Event) {
	body, err := events.Encode(ev)
	if err != nil {
		s.logger.Error("failed to encode event",
			"routing_key", ev.RoutingKey(),
			"error", err,
		)
		return
	}
	if err := s.publisher.Publish(ctx, ev.RoutingKey(), body); err != nil {
		s.logger.Error("failed to publish event",
			"routing_key", ev.RoutingKey(),
			"error", err,
		)
	}
}
