// Package domain holds the team service's model: teams, memberships,
// and the local replica of user records fed by consumed events.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrTeamNotFound is returned when no team exists for the id.
	ErrTeamNotFound = errors.New("team not found")
	// ErrUserNotFound is returned when the replica has no such user.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned on duplicate replica inserts.
	ErrUserExists = errors.New("user already exists")
	// ErrAlreadyMember is returned when a user joins a team twice.
	ErrAlreadyMember = errors.New("user is already a member of the team")
	// ErrNotMember is returned when a non-member tries to leave.
	ErrNotMember = errors.New("user is not a member of the team")
	// ErrTeamFull is returned when the team has no free slots.
	ErrTeamFull = errors.New("team is full")
	// ErrTeamClosed is returned when the team is not accepting members.
	ErrTeamClosed = errors.New("team is not open")
	// ErrNotOwner is returned when a non-owner tries an owner action.
	ErrNotOwner = errors.New("user is not the team owner")
	// ErrOwnerCannotLeave is returned when the owner tries to leave
	// instead of deleting the team.
	ErrOwnerCannotLeave = errors.New("team owner cannot leave the team")
)

// Role is a member's role within a team.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleCaptain Role = "captain"
	RoleMember  Role = "member"
)

// Team is a gaming team looking for players.
type Team struct {
	ID         uuid.UUID
	Name       string
	Game       string
	Platform   string
	SkillLevel string
	MaxPlayers int
	CreatedAt  time.Time
	OwnerID    uuid.UUID
	IsOpen     bool
	Members    []TeamMember
}

// HasFreeSlot reports whether another member fits.
func (t *Team) HasFreeSlot() bool {
	return len(t.Members) < t.MaxPlayers
}

// TeamMember links a replicated user to a team. Username is
// denormalized at join time and rewritten when user.updated arrives.
type TeamMember struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Username string
	TeamID   uuid.UUID
	JoinedAt time.Time
	Role     Role
}

// User is the replica of a user service record. Its sole write path is
// the user-events projection; it must be reconstructable by replaying
// the event stream from empty state.
type User struct {
	ID             uuid.UUID
	Username       string
	Email          string
	GamingPlatform string
	PreferredGame  string
	SkillLevel     string
}

// MatchFilter selects open teams by game profile.
type MatchFilter struct {
	Game       string
	Platform   string
	SkillLevel string
}

// CascadeResult summarizes what a user-deletion cascade removed.
type CascadeResult struct {
	TeamsDeleted       int
	MembershipsRemoved int
}

// Store persists teams, memberships, and the user replica. Mutations
// that touch multiple rows (team creation with the owner membership,
// team deletion, the user-deletion cascade, username rewrites) are
// applied in one transaction each.
type Store interface {
	// CreateTeam inserts the team and its owner membership atomically.
	CreateTeam(ctx context.Context, team *Team, owner *TeamMember) error
	// FindTeam returns a team with its members.
	FindTeam(ctx context.Context, id uuid.UUID) (*Team, error)
	// ListTeams returns all teams with their members.
	ListTeams(ctx context.Context) ([]*Team, error)
	// DeleteTeam removes the team and all its memberships atomically.
	DeleteTeam(ctx context.Context, id uuid.UUID) error
	// AddMember inserts one membership.
	AddMember(ctx context.Context, member *TeamMember) error
	// RemoveMember deletes the membership of userID in teamID.
	RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error
	// MatchTeams returns open teams with free slots matching the filter.
	MatchTeams(ctx context.Context, filter MatchFilter) ([]*Team, error)

	// InsertUser adds a replica record; ErrUserExists if present.
	InsertUser(ctx context.Context, user *User) error
	// UpdateUser overwrites the replica record and rewrites the
	// denormalized username on all memberships atomically;
	// ErrUserNotFound if absent.
	UpdateUser(ctx context.Context, user *User) error
	// FindUser returns a replica record.
	FindUser(ctx context.Context, id uuid.UUID) (*User, error)
	// DeleteUserCascade atomically removes the user, every team the
	// user owns (with all of that team's memberships), and the user's
	// remaining memberships; ErrUserNotFound if absent.
	DeleteUserCascade(ctx context.Context, id uuid.UUID) (CascadeResult, error)
}
