package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/teamfinder/internal/notifications/domain"
)

type fakeHub struct {
	broadcasts [][]byte
	byGroup    map[string][][]byte
}

func newFakeHub() *fakeHub {
	return &fakeHub{byGroup: make(map[string][][]byte)}
}

func (h *fakeHub) Broadcast(message []byte) {
	h.broadcasts = append(h.broadcasts, message)
}

func (h *fakeHub) SendToGroup(group string, message []byte) {
	h.byGroup[group] = append(h.byGroup[group], message)
}

type fakeBackplane struct {
	published []domain.Envelope
	err       error
}

func (b *fakeBackplane) Publish(_ context.Context, env domain.Envelope) error {
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, env)
	return nil
}

func (b *fakeBackplane) Run(ctx context.Context, _ func(domain.Envelope)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (b *fakeBackplane) Close() error { return nil }

func decodeFrame(t *testing.T, raw []byte) (string, domain.Notification) {
	t.Helper()
	var frame struct {
		Type         string              `json:"Type"`
		Notification domain.Notification `json:"Notification"`
	}
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame.Type, frame.Notification
}

func TestSendToUserTargetsUserGroup(t *testing.T) {
	hub := newFakeHub()
	notifier := NewNotifier(hub, nil, nil)
	userID := uuid.New()

	notifier.SendToUser(context.Background(), userID, domain.New("UserRegistered", "hi", nil))

	messages := hub.byGroup[domain.UserGroup(userID)]
	require.Len(t, messages, 1)
	frameType, n := decodeFrame(t, messages[0])
	assert.Equal(t, "ReceiveNotification", frameType)
	assert.Equal(t, "hi", n.Message)
	assert.Empty(t, hub.broadcasts)
}

func TestSendToTeamTargetsTeamGroup(t *testing.T) {
	hub := newFakeHub()
	notifier := NewNotifier(hub, nil, nil)
	teamID := uuid.New()

	notifier.SendToTeam(context.Background(), teamID, domain.New("TeamDeleted", "gone", nil))

	require.Len(t, hub.byGroup[domain.TeamGroup(teamID)], 1)
}

func TestSendToAllBroadcasts(t *testing.T) {
	hub := newFakeHub()
	notifier := NewNotifier(hub, nil, nil)

	notifier.SendToAll(context.Background(), domain.New("Announcement", "maintenance", nil))

	require.Len(t, hub.broadcasts, 1)
	frameType, n := decodeFrame(t, hub.broadcasts[0])
	assert.Equal(t, "ReceiveNotification", frameType)
	assert.Equal(t, "Announcement", n.Type)
}

func TestBackplaneReceivesSendsInsteadOfHub(t *testing.T) {
	hub := newFakeHub()
	backplane := &fakeBackplane{}
	notifier := NewNotifier(hub, backplane, nil)
	userID := uuid.New()

	notifier.SendToUser(context.Background(), userID, domain.New("UserRegistered", "hi", nil))

	require.Len(t, backplane.published, 1)
	assert.Equal(t, domain.UserGroup(userID), backplane.published[0].Group)
	// Local delivery happens when the envelope comes back through Run.
	assert.Empty(t, hub.byGroup)
}

func TestBackplaneFailureFallsBackToLocalDelivery(t *testing.T) {
	hub := newFakeHub()
	backplane := &fakeBackplane{err: errors.New("redis down")}
	notifier := NewNotifier(hub, backplane, nil)
	userID := uuid.New()

	notifier.SendToUser(context.Background(), userID, domain.New("UserRegistered", "hi", nil))

	require.Len(t, hub.byGroup[domain.UserGroup(userID)], 1)
}

func TestDeliverRoutesEnvelopes(t *testing.T) {
	hub := newFakeHub()
	notifier := NewNotifier(hub, nil, nil)

	notifier.Deliver(domain.Envelope{Group: "team-x", Notification: domain.New("T", "m", nil)})
	notifier.Deliver(domain.Envelope{Notification: domain.New("T", "m", nil)})

	assert.Len(t, hub.byGroup["team-x"], 1)
	assert.Len(t, hub.broadcasts, 1)
}
