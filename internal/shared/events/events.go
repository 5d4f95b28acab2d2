// Package events is the publish/subscribe contract shared by every
// teamfinder service: the event kinds, their routing keys, and the
// JSON payload shapes as they travel over the broker.
//
// Routing keys are stable identifiers. A payload shape change is a
// breaking change and requires a new key, never a reuse.
package events

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Exchange names. Both are declared as durable topic exchanges.
const (
	UserEventsExchange = "user_events"
	TeamEventsExchange = "team_events"
)

// Routing keys, one per event kind.
const (
	RoutingKeyUserRegistered = "user.registered"
	RoutingKeyUserUpdated    = "user.updated"
	RoutingKeyUserDeleted    = "user.deleted"
	RoutingKeyTeamCreated    = "team.created"
	RoutingKeyTeamJoined     = "team.joined"
	RoutingKeyTeamLeft       = "team.left"
	RoutingKeyTeamDeleted    = "team.deleted"
)

// Event is the closed set of domain events carried on the bus.
// Consumers switch over the concrete types rather than inspecting an
// opaque payload blob.
type Event interface {
	// Kind is the short type tag (e.g. "TeamJoined"), mirrored into
	// notification payloads.
	Kind() string
	// RoutingKey returns the topic routing key for this event.
	RoutingKey() string
	// Exchange returns the exchange the event is published to.
	Exchange() string
}

// UserRegistered is published by the user service after a new account
// is persisted.
type UserRegistered struct {
	UserID   uuid.UUID `json:"UserId"`
	Username string    `json:"Username"`
	Email    string    `json:"Email"`
}

func (UserRegistered) Kind() string       { return "UserRegistered" }
func (UserRegistered) RoutingKey() string { return RoutingKeyUserRegistered }
func (UserRegistered) Exchange() string   { return UserEventsExchange }

// UserUpdated carries the full denormalized profile after an update.
type UserUpdated struct {
	UserID   uuid.UUID `json:"UserId"`
	Username string    `json:"Username"`
	Email    string    `json:"Email"`
}

func (UserUpdated) Kind() string       { return "UserUpdated" }
func (UserUpdated) RoutingKey() string { return RoutingKeyUserUpdated }
func (UserUpdated) Exchange() string   { return UserEventsExchange }

// UserDeleted is published after an account is removed. Consumers
// cascade their local replicas.
type UserDeleted struct {
	UserID uuid.UUID `json:"UserId"`
}

func (UserDeleted) Kind() string       { return "UserDeleted" }
func (UserDeleted) RoutingKey() string { return RoutingKeyUserDeleted }
func (UserDeleted) Exchange() string   { return UserEventsExchange }

// TeamCreated is published after a team and its owner membership are
// persisted.
type TeamCreated struct {
	TeamID   uuid.UUID `json:"TeamId"`
	TeamName string    `json:"TeamName"`
	OwnerID  uuid.UUID `json:"OwnerId"`
}

func (TeamCreated) Kind() string       { return "TeamCreated" }
func (TeamCreated) RoutingKey() string { return RoutingKeyTeamCreated }
func (TeamCreated) Exchange() string   { return TeamEventsExchange }

// TeamJoined carries the joining user's name at the time of the event
// so consumers never need a cross-service lookup.
type TeamJoined struct {
	TeamID   uuid.UUID `json:"TeamId"`
	TeamName string    `json:"TeamName"`
	UserID   uuid.UUID `json:"UserId"`
	Username string    `json:"Username"`
}

func (TeamJoined) Kind() string       { return "TeamJoined" }
func (TeamJoined) RoutingKey() string { return RoutingKeyTeamJoined }
func (TeamJoined) Exchange() string   { return TeamEventsExchange }

// TeamLeft mirrors TeamJoined for a departing member.
type TeamLeft struct {
	TeamID   uuid.UUID `json:"TeamId"`
	TeamName string    `json:"TeamName"`
	UserID   uuid.UUID `json:"UserId"`
	Username string    `json:"Username"`
}

func (TeamLeft) Kind() string       { return "TeamLeft" }
func (TeamLeft) RoutingKey() string { return RoutingKeyTeamLeft }
func (TeamLeft) Exchange() string   { return TeamEventsExchange }

// TeamDeleted is published after a team and all its memberships are
// removed.
type TeamDeleted struct {
	TeamID   uuid.UUID `json:"TeamId"`
	TeamName string    `json:"TeamName"`
}

func (TeamDeleted) Kind() string       { return "TeamDeleted" }
func (TeamDeleted) RoutingKey() string { return RoutingKeyTeamDeleted }
func (TeamDeleted) Exchange() string   { return TeamEventsExchange }

// Encode serializes an event to its wire form. The message body is the
// bare payload object; routing metadata travels in the AMQP routing
// key, not in the body.
func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// UserEventRoutingKeys lists every routing key on the user_events
// exchange, in publish-contract order.
func UserEventRoutingKeys() []string {
	return []string{
		RoutingKeyUserRegistered,
		RoutingKeyUserUpdated,
		RoutingKeyUserDeleted,
	}
}

// TeamEventRoutingKeys lists every routing key on the team_events
// exchange.
func TeamEventRoutingKeys() []string {
	return []string{
		RoutingKeyTeamCreated,
		RoutingKeyTeamJoined,
		RoutingKeyTeamLeft,
		RoutingKeyTeamDeleted,
	}
}
