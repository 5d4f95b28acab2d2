package ws

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	id       string
	received [][]byte
	err      error
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Send(message []byte) error {
	if s.err != nil {
		return s.err
	}
	s.received = append(s.received, message)
	return nil
}

func TestSendToGroupReachesOnlyMembers(t *testing.T) {
	hub := NewHub(nil)
	member := &fakeSession{id: "a"}
	outsider := &fakeSession{id: "b"}
	hub.Register(member)
	hub.Register(outsider)
	hub.Join("a", "team-1")

	hub.SendToGroup("team-1", []byte("hello"))

	require.Len(t, member.received, 1)
	assert.Equal(t, "hello", string(member.received[0]))
	assert.Empty(t, outsider.received)
}

func TestBroadcastReachesEveryone(t *testing.T) {
	hub := NewHub(nil)
	a := &fakeSession{id: "a"}
	b := &fakeSession{id: "b"}
	hub.Register(a)
	hub.Register(b)

	hub.Broadcast([]byte("hello"))

	assert.Len(t, a.received, 1)
	assert.Len(t, b.received, 1)
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	s := &fakeSession{id: "a"}
	hub.Register(s)
	hub.Join("a", "user-1")
	hub.Leave("a", "user-1")

	hub.SendToGroup("user-1", []byte("hello"))
	assert.Empty(t, s.received)
}

func TestUnregisterClearsGroupMembership(t *testing.T) {
	hub := NewHub(nil)
	s := &fakeSession{id: "a"}
	hub.Register(s)
	hub.Join("a", "user-1")
	hub.Join("a", "team-2")
	require.True(t, hub.InGroup("a", "user-1"))

	hub.Unregister("a")

	assert.False(t, hub.InGroup("a", "user-1"))
	assert.False(t, hub.InGroup("a", "team-2"))
	hub.SendToGroup("user-1", []byte("hello"))
	hub.Broadcast([]byte("hello"))
	assert.Empty(t, s.received)
}

func TestJoinUnknownSessionIgnored(t *testing.T) {
	hub := NewHub(nil)
	hub.Join("ghost", "team-1")
	assert.False(t, hub.InGroup("ghost", "team-1"))
}

func TestFailingSessionDoesNotBlockOthers(t *testing.T) {
	hub := NewHub(nil)
	broken := &fakeSession{id: "a", err: errors.New("gone")}
	healthy := &fakeSession{id: "b"}
	hub.Register(broken)
	hub.Register(healthy)
	hub.Join("a", "team-1")
	hub.Join("b", "team-1")

	hub.SendToGroup("team-1", []byte("hello"))
	assert.Len(t, healthy.received, 1)
}
