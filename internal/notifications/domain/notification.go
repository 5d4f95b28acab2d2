// Package domain holds the notification gateway's model. Notifications
// are ephemeral: they are pushed to connected clients and never stored.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Notification is the payload pushed to clients. Field names match the
// wire contract consumed by existing frontends.
type Notification struct {
	Type      string         `json:"Type"`
	Message   string         `json:"Message"`
	Timestamp time.Time      `json:"Timestamp"`
	Data      map[string]any `json:"Data,omitempty"`
}

// New creates a notification stamped with the current time.
func New(kind, message string, data map[string]any) Notification {
	return Notification{
		Type:      kind,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// UserGroup is the websocket group that carries a single user's
// notifications.
func UserGroup(id uuid.UUID) string { return "user-" + id.String() }

// TeamGroup is the websocket group that carries a team's
// notifications.
func TeamGroup(id uuid.UUID) string { return "team-" + id.String() }

// Notifier fans a notification out to connected clients. Sends are
// best-effort: failures are logged by the implementation and never
// surfaced to callers, so event handlers are unaffected by client
// churn.
type Notifier interface {
	SendToAll(ctx context.Context, n Notification)
	SendToUser(ctx context.Context, userID uuid.UUID, n Notification)
	SendToTeam(ctx context.Context, teamID uuid.UUID, n Notification)
}

// Envelope is a notification routed through the backplane. An empty
// Group means broadcast.
type Envelope struct {
	Group        string       `json:"Group,omitempty"`
	Notification Notification `json:"Notification"`
}

// Backplane distributes envelopes across gateway instances. Run blocks
// until the context is cancelled, invoking forward for every envelope
// received, including the instance's own publishes.
type Backplane interface {
	Publish(ctx context.Context, env Envelope) error
	Run(ctx context.Context, forward func(Envelope)) error
	Close() error
}

// EmailSender delivers a notification by email. Unlike the in-app
// fan-out, email errors propagate to the caller.
type EmailSender interface {
	Send(ctx context.Context, to string, n Notification) error
}
