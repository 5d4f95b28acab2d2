// Package application implements the team service use cases and the
// user-replica projection. Team mutations publish team.* events
// best-effort after the local commit.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/teamfinder/internal/shared/events"
	"github.com/felixgeelhaar/teamfinder/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/teamfinder/internal/teams/domain"
)

// Service exposes team lifecycle and matching operations.
type Service struct {
	store     domain.Store
	publisher eventbus.Publisher
	logger    *slog.Logger
}

// NewService wires the team service with its store and publisher.
func NewService(store domain.Store, publisher eventbus.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateTeamInput carries a validated team creation request. The owner
// must already be known to the local user replica.
type CreateTeamInput struct {
	Name       string
	Game       string
	Platform   string
	SkillLevel string
	MaxPlayers int
	OwnerID    uuid.UUID
}

// CreateTeam creates a team with the owner as its first member.
func (s *Service) CreateTeam(ctx context.Context, in CreateTeamInput) (*domain.Team, error) {
	owner, err := s.store.FindUser(ctx, in.OwnerID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	team := &domain.Team{
		ID:         uuid.New(),
		Name:       in.Name,
		Game:       in.Game,
		Platform:   in.Platform,
		SkillLevel: in.SkillLevel,
		MaxPlayers: in.MaxPlayers,
		CreatedAt:  now,
		OwnerID:    in.OwnerID,
		IsOpen:     true,
	}
	membership := &domain.TeamMember{
		ID:       uuid.New(),
		UserID:   owner.ID,
		Username: owner.Username,
		TeamID:   team.ID,
		JoinedAt: now,
		Role:     domain.RoleOwner,
	}

	if err := s.store.CreateTeam(ctx, team, membership); err != nil {
		return nil, fmt.Errorf("create team: %w", err)
	}
	team.Members = []domain.TeamMember{*membership}

	s.publish(ctx, events.TeamCreated{
		TeamID:   team.ID,
		TeamName: team.Name,
		OwnerID:  team.OwnerID,
	})

	s.logger.Info("team created", "team_id", team.ID, "owner_id", team.OwnerID)
	return team, nil
}

// JoinTeam adds a user to an open team with free slots.
func (s *Service) JoinTeam(ctx context.Context, teamID, userID uuid.UUID) (*domain.Team, error) {
	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	team, err := s.store.FindTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}

	for _, m := range team.Members {
		if m.UserID == userID {
			return nil, domain.ErrAlreadyMember
		}
	}
	if !team.IsOpen {
		return nil, domain.ErrTeamClosed
	}
	if !team.HasFreeSlot() {
		return nil, domain.ErrTeamFull
	}

	member := &domain.TeamMember{
		ID:       uuid.New(),
		UserID:   user.ID,
		Username: user.Username,
		TeamID:   team.ID,
		JoinedAt: time.Now().UTC(),
		Role:     domain.RoleMember,
	}
	if err := s.store.AddMember(ctx, member); err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	team.Members = append(team.Members, *member)

	s.publish(ctx, events.TeamJoined{
		TeamID:   team.ID,
		TeamName: team.Name,
		UserID:   user.ID,
		Username: user.Username,
	})

	s.logger.Info("user joined team", "team_id", team.ID, "user_id", user.ID)
	return team, nil
}

// LeaveTeam removes a regular member. The owner must delete the team
// instead.
func (s *Service) LeaveTeam(ctx context.Context, teamID, userID uuid.UUID) error {
	team, err := s.store.FindTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if team.OwnerID == userID {
		return domain.ErrOwnerCannotLeave
	}

	var username string
	found := false
	for _, m := range team.Members {
		if m.UserID == userID {
			username = m.Username
			found = true
			break
		}
	}
	if !found {
		return domain.ErrNotMember
	}

	if err := s.store.RemoveMember(ctx, teamID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}

	s.publish(ctx, events.TeamLeft{
		TeamID:   team.ID,
		TeamName: team.Name,
		UserID:   userID,
		Username: username,
	})

	s.logger.Info("user left team", "team_id", team.ID, "user_id", userID)
	return nil
}

// DeleteTeam removes a team and its memberships. Owner only.
func (s *Service) DeleteTeam(ctx context.Context, teamID, requesterID uuid.UUID) error {
	team, err := s.store.FindTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if team.OwnerID != requesterID {
		return domain.ErrNotOwner
	}

	if err := s.store.DeleteTeam(ctx, teamID); err != nil {
		return fmt.Errorf("delete team: %w", err)
	}

	s.publish(ctx, events.TeamDeleted{
		TeamID:   team.ID,
		TeamName: team.Name,
	})

	s.logger.Info("team deleted", "team_id", team.ID)
	return nil
}

// GetTeam returns one team with members.
func (s *Service) GetTeam(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	return s.store.FindTeam(ctx, id)
}

// ListTeams returns all teams.
func (s *Service) ListTeams(ctx context.Context) ([]*domain.Team, error) {
	return s.store.ListTeams(ctx)
}

// Match returns open teams with free slots for the given profile.
func (s *Service) Match(ctx context.Context, filter domain.MatchFilter) ([]*domain.Team, error) {
	return s.store.MatchTeams(ctx, filter)
}

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
