// Package ws implements the websocket side of the notification
// gateway: the connection hub with its group registry and the
// gorilla/websocket client sessions.
package ws

import (
	"log/slog"
	"sync"
)

// Session is one connected client. Send must be safe for concurrent
// use; the gorilla implementation serializes writes through a channel.
type Session interface {
	ID() string
	Send(message []byte) error
}

// Hub tracks sessions and their group memberships. Group membership is
// connection-scoped: unregistering a session removes it from every
// group it joined.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]Session
	groups   map[string]map[string]struct{}
	logger   *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sessions: make(map[string]Session),
		groups:   make(map[string]map[string]struct{}),
		logger:   logger,
	}
}

// Register adds a session to the hub.
func (h *Hub) Register(s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID()] = s
	h.logger.Debug("session registered", "session_id", s.ID())
}

// Unregister removes a session and clears its group memberships.
func (h *Hub) Unregister(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, sessionID)
	for group, members := range h.groups {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	h.logger.Debug("session unregistered", "session_id", sessionID)
}

// Join adds a session to a group. Unknown sessions are ignored.
func (h *Hub) Join(sessionID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[sessionID]; !ok {
		return
	}
	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]struct{})
		h.groups[group] = members
	}
	members[sessionID] = struct{}{}
}

// Leave removes a session from a group.
func (h *Hub) Leave(sessionID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

// InGroup reports whether the session is a member of the group.
func (h *Hub) InGroup(sessionID, group string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.groups[group][sessionID]
	return ok
}

// Broadcast sends the message to every connected session.
func (h *Hub) Broadcast(message []byte) {
	for _, s := range h.snapshotAll() {
		h.deliver(s, message)
	}
}

// SendToGroup sends the message to every session in the group.
func (h *Hub) SendToGroup(group string, message []byte) {
	for _, s := range h.snapshotGroup(group) {
		h.deliver(s, message)
	}
}

func (h *Hub) deliver(s Session, message []byte) {
	if err := s.Send(message); err != nil {
		h.logger.Warn("failed to send to session",
			"session_id", s.ID(),
			"error", err,
		)
	}
}

func (h *Hub) snapshotAll() []Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

func (h *Hub) snapshotGroup(group string) []Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.groups[group]
	out := make([]Session, 0, len(members))
	for id := range members {
		if s, ok := h.sessions[id]; ok {
			out = append(out, s)
		}
	}
	return out
}
