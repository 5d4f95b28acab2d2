package subscribers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/teamfinder/internal/notifications/domain"
	"github.com/felixgeelhaar/teamfinder/internal/shared/events"
	"github.com/felixgeelhaar/teamfinder/internal/shared/infrastructure/eventbus"
)

// TeamEvents notifies team members about team lifecycle changes. Joins
// and leaves produce two notifications: one addressed to the moving
// user, one to the team's group.
type TeamEvents struct {
	notifier domain.Notifier
	logger   *slog.Logger
}

// NewTeamEvents creates the handler.
func NewTeamEvents(notifier domain.Notifier, logger *slog.Logger) *TeamEvents {
	if logger == nil {
		logger = slog.Default()
	}
	return &TeamEvents{notifier: notifier, logger: logger}
}

// RoutingKeys lists the consumed team events.
func (h *TeamEvents) RoutingKeys() []string {
	return events.TeamEventRoutingKeys()
}

// Handle fans one team event out to the affected user and team.
func (h *TeamEvents) Handle(ctx context.Context, event events.Event) eventbus.Result {
	switch ev := event.(type) {
	case *events.TeamCreated:
		h.notifier.SendToUser(ctx, ev.OwnerID, domain.New(
			"TeamCreated",
			fmt.Sprintf("Your team '%s' has been created successfully!", ev.TeamName),
			map[string]any{"TeamId": ev.TeamID, "TeamName": ev.TeamName, "OwnerId": ev.OwnerID},
		))
	case *events.TeamJoined:
		data := map[string]any{
			"TeamId": ev.TeamID, "TeamName": ev.TeamName,
			"UserId": ev.UserID, "Username": ev.Username,
		}
		h.notifier.SendToUser(ctx, ev.UserID, domain.New(
			"TeamJoined",
			fmt.Sprintf("You have successfully joined the team '%s'!", ev.TeamName),
			data,
		))
		h.notifier.SendToTeam(ctx, ev.TeamID, domain.New(
			"TeamMemberJoined",
			fmt.Sprintf("%s has joined the team!", ev.Username),
			data,
		))
	case *events.TeamLeft:
		data := map[string]any{
			"TeamId": ev.TeamID, "TeamName": ev.TeamName,
			"UserId": ev.UserID, "Username": ev.Username,
		}
		h.notifier.SendToUser(ctx, ev.UserID, domain.New(
			"TeamLeft",
			fmt.Sprintf("You have left the team '%s'.", ev.TeamName),
			data,
		))
		h.notifier.SendToTeam(ctx, ev.TeamID, domain.New(
			"TeamMemberLeft",
			fmt.Sprintf("%s has left the team.", ev.Username),
			data,
		))
	case *events.TeamDeleted:
		h.notifier.SendToTeam(ctx, ev.TeamID, domain.New(
			"TeamDeleted",
			fmt.Sprintf("Team '%s' has been deleted.", ev.TeamName),
			map[string]any{"TeamId": ev.TeamID, "TeamName": ev.TeamName},
		))
	default:
		h.logger.Warn("unexpected event type", "routing_key", event.RoutingKey())
	}
	return eventbus.OK()
}

var _ eventbus.Handler = (*TeamEvents)(nil)
