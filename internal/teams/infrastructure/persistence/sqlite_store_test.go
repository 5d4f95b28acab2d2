package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/teamfinder/internal/teams/domain"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store := NewSQLiteStore(db)
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func makeTeam(ownerID uuid.UUID, name string) (*domain.Team, *domain.TeamMember) {
	now := time.Now().UTC()
	team := &domain.Team{
		ID:         uuid.New(),
		Name:       name,
		Game:       "Valorant",
		Platform:   "PC",
		SkillLevel: "casual",
		MaxPlayers: 5,
		CreatedAt:  now,
		OwnerID:    ownerID,
		IsOpen:     true,
	}
	owner := &domain.TeamMember{
		ID:       uuid.New(),
		UserID:   ownerID,
		Username: "owner",
		TeamID:   team.ID,
		JoinedAt: now,
		Role:     domain.RoleOwner,
	}
	return team, owner
}

func TestCreateAndFindTeam(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	team, owner := makeTeam(uuid.New(), "Night Raiders")
	require.NoError(t, store.CreateTeam(ctx, team, owner))

	found, err := store.FindTeam(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, team.Name, found.Name)
	assert.True(t, found.IsOpen)
	require.Len(t, found.Members, 1)
	assert.Equal(t, domain.RoleOwner, found.Members[0].Role)
	assert.WithinDuration(t, team.CreatedAt, found.CreatedAt, time.Millisecond)
}

func TestFindTeamNotFound(t *testing.T) {
	store := newStore(t)

	_, err := store.FindTeam(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrTeamNotFound)
}

func TestDeleteTeamRemovesMemberships(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	team, owner := makeTeam(uuid.New(), "Night Raiders")
	require.NoError(t, store.CreateTeam(ctx, team, owner))
	require.NoError(t, store.AddMember(ctx, &domain.TeamMember{
		ID: uuid.New(), UserID: uuid.New(), Username: "bob",
		TeamID: team.ID, JoinedAt: time.Now().UTC(), Role: domain.RoleMember,
	}))

	require.NoError(t, store.DeleteTeam(ctx, team.ID))
	_, err := store.FindTeam(ctx, team.ID)
	assert.ErrorIs(t, err, domain.ErrTeamNotFound)

	assert.ErrorIs(t, store.DeleteTeam(ctx, team.ID), domain.ErrTeamNotFound)
}

func TestAddMemberDuplicate(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	team, owner := makeTeam(uuid.New(), "Night Raiders")
	require.NoError(t, store.CreateTeam(ctx, team, owner))

	member := &domain.TeamMember{
		ID: uuid.New(), UserID: uuid.New(), Username: "bob",
		TeamID: team.ID, JoinedAt: time.Now().UTC(), Role: domain.RoleMember,
	}
	require.NoError(t, store.AddMember(ctx, member))

	dup := *member
	dup.ID = uuid.New()
	assert.ErrorIs(t, store.AddMember(ctx, &dup), domain.ErrAlreadyMember)
}

func TestRemoveMemberNotMember(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	team, owner := makeTeam(uuid.New(), "Night Raiders")
	require.NoError(t, store.CreateTeam(ctx, team, owner))

	err := store.RemoveMember(ctx, team.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotMember)
}

func TestDeleteUserCascadeCounts(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	aliceID := uuid.New()
	bobID := uuid.New()
	require.NoError(t, store.InsertUser(ctx, &domain.User{ID: aliceID, Username: "alice", Email: "a@example.com"}))
	require.NoError(t, store.InsertUser(ctx, &domain.User{ID: bobID, Username: "bob", Email: "b@example.com"}))

	owned, ownerMember := makeTeam(aliceID, "Alice's Team")
	require.NoError(t, store.CreateTeam(ctx, owned, ownerMember))
	require.NoError(t, store.AddMember(ctx, &domain.TeamMember{
		ID: uuid.New(), UserID: bobID, Username: "bob",
		TeamID: owned.ID, JoinedAt: time.Now().UTC(), Role: domain.RoleMember,
	}))

	other, otherOwner := makeTeam(bobID, "Bob's Team")
	require.NoError(t, store.CreateTeam(ctx, other, otherOwner))
	require.NoError(t, store.AddMember(ctx, &domain.TeamMember{
		ID: uuid.New(), UserID: aliceID, Username: "alice",
		TeamID: other.ID, JoinedAt: time.Now().UTC(), Role: domain.RoleMember,
	}))

	res, err := store.DeleteUserCascade(ctx, aliceID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TeamsDeleted)
	// Two memberships in the owned team plus Alice's membership in
	// Bob's team.
	assert.Equal(t, 3, res.MembershipsRemoved)

	reloaded, err := store.FindTeam(ctx, other.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Members, 1)
	assert.Equal(t, bobID, reloaded.Members[0].UserID)
}

func TestDeleteUserCascadeAbsent(t *testing.T) {
	store := newStore(t)

	_, err := store.DeleteUserCascade(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestMatchTeamsFilters(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	open, openOwner := makeTeam(uuid.New(), "Open PC")
	require.NoError(t, store.CreateTeam(ctx, open, openOwner))

	console, consoleOwner := makeTeam(uuid.New(), "Console Crew")
	console.Platform = "PS5"
	require.NoError(t, store.CreateTeam(ctx, console, consoleOwner))

	closed, closedOwner := makeTeam(uuid.New(), "Closed Shop")
	closed.IsOpen = false
	require.NoError(t, store.CreateTeam(ctx, closed, closedOwner))

	full, fullOwner := makeTeam(uuid.New(), "Full House")
	full.MaxPlayers = 1
	require.NoError(t, store.CreateTeam(ctx, full, fullOwner))

	matches, err := store.MatchTeams(ctx, domain.MatchFilter{Game: "Valorant", Platform: "PC"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, open.ID, matches[0].ID)
}
