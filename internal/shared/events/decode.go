package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrUnknownRoutingKey marks a routing key outside the contract. The
// dispatcher drops such messages instead of requeueing them.
var ErrUnknownRoutingKey = errors.New("unknown routing key")

// ErrMissingField marks a payload that parsed as JSON but lacks a
// required identifier. Treated the same as malformed JSON: the message
// will never become valid, so it must not be requeued.
var ErrMissingField = errors.New("missing required field")

// Decode deserializes a message body into the concrete event type
// implied by its routing key. Unknown JSON fields are ignored for
// forward compatibility; a missing required identifier is a decode
// failure.
func Decode(routingKey string, body []byte) (Event, error) {
	switch routingKey {
	case RoutingKeyUserRegistered:
		var e UserRegistered
		return decodeInto(body, &e, requireIDs(&e.UserID))
	case RoutingKeyUserUpdated:
		var e UserUpdated
		return decodeInto(body, &e, requireIDs(&e.UserID))
	case RoutingKeyUserDeleted:
		var e UserDeleted
		return decodeInto(body, &e, requireIDs(&e.UserID))
	case RoutingKeyTeamCreated:
		var e TeamCreated
		return decodeInto(body, &e, requireIDs(&e.TeamID, &e.OwnerID))
	case RoutingKeyTeamJoined:
		var e TeamJoined
		return decodeInto(body, &e, requireIDs(&e.TeamID, &e.UserID))
	case RoutingKeyTeamLeft:
		var e TeamLeft
		return decodeInto(body, &e, requireIDs(&e.TeamID, &e.UserID))
	case RoutingKeyTeamDeleted:
		var e TeamDeleted
		return decodeInto(body, &e, requireIDs(&e.TeamID))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRoutingKey, routingKey)
	}
}

func decodeInto(body []byte, e Event, validate func() error) (Event, error) {
	if err := json.Unmarshal(body, e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", e.Kind(), err)
	}
	if err := validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func requireIDs(ids ...*uuid.UUID) func() error {
	return func() error {
		for _, id := range ids {
			if *id == uuid.Nil {
				return ErrMissingField
			}
		}
		return nil
	}
}
