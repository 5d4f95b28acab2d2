// Package application implements the notification gateway's fan-out:
// the Notifier that pushes to websocket groups, the email escalation
// service, and the event subscribers that turn bus events into client
// notifications.
package application

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/teamfinder/internal/notifications/domain"
)

// GroupSender is the hub surface the notifier needs.
type GroupSender interface {
	Broadcast(message []byte)
	SendToGroup(group string, message []byte)
}

// pushFrame is the message written to websocket clients.
type pushFrame struct {
	Type         string              `json:"Type"`
	Notification domain.Notification `json:"Notification"`
}

// EncodePush renders the ReceiveNotification frame for a
// notification.
func EncodePush(n domain.Notification) ([]byte, error) {
	return json.Marshal(pushFrame{Type: "ReceiveNotification", Notification: n})
}

// Notifier fans notifications out to websocket groups. With a
// backplane configured, sends are published there instead and every
// gateway instance, this one included, forwards received envelopes to
// its local hub.
type Notifier struct {
	hub       GroupSender
	backplane domain.Backplane
	logger    *slog.Logger
}

// NewNotifier wires the notifier. backplane may be nil for
// single-instance deployments.
func NewNotifier(hub GroupSender, backplane domain.Backplane, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{hub: hub, backplane: backplane, logger: logger}
}

// SendToAll pushes to every connected client.
func (n *Notifier) SendToAll(ctx context.Context, notification domain.Notification) {
	n.dispatch(ctx, "", notification)
}

// SendToUser pushes to the user's group.
func (n *Notifier) SendToUser(ctx context.Context, userID uuid.UUID, notification domain.Notification) {
	n.dispatch(ctx, domain.UserGroup(userID), notification)
}

// SendToTeam pushes to the team's group.
func (n *Notifier) SendToTeam(ctx context.Context, teamID uuid.UUID, notification domain.Notification) {
	n.dispatch(ctx, domain.TeamGroup(teamID), notification)
}

// Run forwards backplane envelopes to the local hub until the context
// is cancelled. Without a backplane it returns immediately.
func (n *Notifier) Run(ctx context.Context) error {
	if n.backplane == nil {
		return nil
	}
	return n.backplane.Run(ctx, n.Deliver)
}

// Deliver pushes one envelope to the local hub.
func (n *Notifier) Deliver(env domain.Envelope) {
	message, err := EncodePush(env.Notification)
	if err != nil {
		n.logger.Error("failed to encode notification", "error", err)
		return
	}
	if env.Group == "" {
		n.hub.Broadcast(message)
		return
	}
	n.hub.SendToGroup(env.Group, message)
}

func (n *Notifier) dispatch(ctx context.Context, group string, notification domain.Notification) {
	env := domain.Envelope{Group: group, Notification: notification}
	if n.backplane != nil {
		err := n.backplane.Publish(ctx, env)
		if err == nil {
			return
		}
		n.logger.Warn("backplane publish failed, delivering locally",
			"group", group,
			"error", err,
		)
	}
	n.Deliver(env)
}

var _ domain.Notifier = (*Notifier)(nil)
