package subscribers

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/teamfinder/internal/notifications/domain"
	"github.com/felixgeelhaar/teamfinder/internal/shared/events"
	"github.com/felixgeelhaar/teamfinder/internal/shared/infrastructure/eventbus"
)

type sentNotification struct {
	target       string
	notification domain.Notification
}

type recordingNotifier struct {
	sent []sentNotification
}

func (r *recordingNotifier) SendToAll(_ context.Context, n domain.Notification) {
	r.sent = append(r.sent, sentNotification{target: "all", notification: n})
}

func (r *recordingNotifier) SendToUser(_ context.Context, userID uuid.UUID, n domain.Notification) {
	r.sent = append(r.sent, sentNotification{target: domain.UserGroup(userID), notification: n})
}

func (r *recordingNotifier) SendToTeam(_ context.Context, teamID uuid.UUID, n domain.Notification) {
	r.sent = append(r.sent, sentNotification{target: domain.TeamGroup(teamID), notification: n})
}

func TestUserRegisteredNotifiesOnlyTheUser(t *testing.T) {
	notifier := &recordingNotifier{}
	handler := NewUserEvents(notifier, nil)
	userID := uuid.New()

	res := handler.Handle(context.Background(), &events.UserRegistered{
		UserID: userID, Username: "alice", Email: "alice@example.com",
	})
	assert.Equal(t, eventbus.StatusOK, res.Status)

	require.Len(t, notifier.sent, 1)
	got := notifier.sent[0]
	assert.Equal(t, domain.UserGroup(userID), got.target)
	assert.Equal(t, "UserRegistered", got.notification.Type)
	assert.Equal(t, "Welcome, alice! Your account has been created successfully.", got.notification.Message)
}

func TestUserUpdatedNotifiesOnlyTheUser(t *testing.T) {
	notifier := &recordingNotifier{}
	handler := NewUserEvents(notifier, nil)
	userID := uuid.New()

	res := handler.Handle(context.Background(), &events.UserUpdated{
		UserID: userID, Username: "alice", Email: "alice@example.com",
	})
	assert.Equal(t, eventbus.StatusOK, res.Status)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "Your profile has been updated successfully.", notifier.sent[0].notification.Message)
}

func TestUserDeletedSendsNothing(t *testing.T) {
	notifier := &recordingNotifier{}
	handler := NewUserEvents(notifier, nil)

	res := handler.Handle(context.Background(), &events.UserDeleted{UserID: uuid.New()})
	assert.Equal(t, eventbus.StatusOK, res.Status)
	assert.Empty(t, notifier.sent)
}

func TestTeamCreatedNotifiesOnlyTheOwner(t *testing.T) {
	notifier := &recordingNotifier{}
	handler := NewTeamEvents(notifier, nil)
	ownerID := uuid.New()
	teamID := uuid.New()

	res := handler.Handle(context.Background(), &events.TeamCreated{
		TeamID: teamID, TeamName: "Night Raiders", OwnerID: ownerID,
	})
	assert.Equal(t, eventbus.StatusOK, res.Status)

	require.Len(t, notifier.sent, 1)
	got := notifier.sent[0]
	assert.Equal(t, domain.UserGroup(ownerID), got.target)
	assert.Equal(t, "TeamCreated", got.notification.Type)
	assert.Equal(t, "Your team 'Night Raiders' has been created successfully!", got.notification.Message)
}

func TestTeamJoinedNotifiesUserAndTeam(t *testing.T) {
	notifier := &recordingNotifier{}
	handler := NewTeamEvents(notifier, nil)
	userID := uuid.New()
	teamID := uuid.New()

	res := handler.Handle(context.Background(), &events.TeamJoined{
		TeamID: teamID, TeamName: "Night Raiders", UserID: userID, Username: "bob",
	})
	assert.Equal(t, eventbus.StatusOK, res.Status)

	require.Len(t, notifier.sent, 2)

	toUser := notifier.sent[0]
	assert.Equal(t, domain.UserGroup(userID), toUser.target)
	assert.Equal(t, "TeamJoined", toUser.notification.Type)
	assert.Equal(t, "You have successfully joined the team 'Night Raiders'!", toUser.notification.Message)

	toTeam := notifier.sent[1]
	assert.Equal(t, domain.TeamGroup(teamID), toTeam.target)
	assert.Equal(t, "TeamMemberJoined", toTeam.notification.Type)
	assert.Equal(t, "bob has joined the team!", toTeam.notification.Message)
}

func TestTeamLeftNotifiesUserAndTeam(t *testing.T) {
	notifier := &recordingNotifier{}
	handler := NewTeamEvents(notifier, nil)
	userID := uuid.New()
	teamID := uuid.New()

	res := handler.Handle(context.Background(), &events.TeamLeft{
		TeamID: teamID, TeamName: "Night Raiders", UserID: userID, Username: "bob",
	})
	assert.Equal(t, eventbus.StatusOK, res.Status)

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "You have left the team 'Night Raiders'.", notifier.sent[0].notification.Message)
	assert.Equal(t, "TeamLeft", notifier.sent[0].notification.Type)
	assert.Equal(t, "bob has left the team.", notifier.sent[1].notification.Message)
	assert.Equal(t, "TeamMemberLeft", notifier.sent[1].notification.Type)
}

func TestTeamDeletedNotifiesTeamOnly(t *testing.T) {
	notifier := &recordingNotifier{}
	handler := NewTeamEvents(notifier, nil)
	teamID := uuid.New()

	res := handler.Handle(context.Background(), &events.TeamDeleted{
		TeamID: teamID, TeamName: "Night Raiders",
	})
	assert.Equal(t, eventbus.StatusOK, res.Status)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, domain.TeamGroup(teamID), notifier.sent[0].target)
	assert.Equal(t, "Team 'Night Raiders' has been deleted.", notifier.sent[0].notification.Message)
}

func TestRoutingKeysCoverAllEvents(t *testing.T) {
	userKeys := NewUserEvents(&recordingNotifier{}, nil).RoutingKeys()
	teamKeys := NewTeamEvents(&recordingNotifier{}, nil).RoutingKeys()

	assert.ElementsMatch(t, []string{"user.registered", "user.updated", "user.deleted"}, userKeys)
	assert.ElementsMatch(t, []string{"team.created", "team.joined", "team.left", "team.deleted"}, teamKeys)
}

func TestNotificationDataCarriesIdentifiers(t *testing.T) {
	notifier := &recordingNotifier{}
	handler := NewTeamEvents(notifier, nil)
	teamID := uuid.New()
	userID := uuid.New()

	handler.Handle(context.Background(), &events.TeamJoined{
		TeamID: teamID, TeamName: "Night Raiders", UserID: userID, Username: "bob",
	})

	require.Len(t, notifier.sent, 2)
	data := notifier.sent[0].notification.Data
	assert.Equal(t, teamID, data["TeamId"])
	assert.Equal(t, userID, data["UserId"])
	assert.Equal(t, "bob", data["Username"])
	assert.Equal(t, fmt.Sprintf("team-%s", teamID), notifier.sent[1].target)
}
