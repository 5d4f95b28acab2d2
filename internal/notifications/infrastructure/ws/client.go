package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/teamfinder/internal/notifications/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 64
)

// ErrSlowClient is returned when a session's send buffer is full.
var ErrSlowClient = errors.New("client send buffer full")

// clientMessage is a control frame from a connected client.
type clientMessage struct {
	Type string `json:"Type"`
	ID   string `json:"Id"`
}

// Client is a gorilla/websocket backed session. Writes go through a
// buffered channel drained by a single writer goroutine.
type Client struct {
	id     string
	conn   *websocket.Conn
	hub    *Hub
	send   chan []byte
	done   chan struct{}
	logger *slog.Logger
}

// ID implements Session.
func (c *Client) ID() string { return c.id }

// Send implements Session. It never blocks; slow clients get
// ErrSlowClient and the message is dropped.
func (c *Client) Send(message []byte) error {
	select {
	case <-c.done:
		return errors.New("session closed")
	case c.send <- message:
		return nil
	default:
		return ErrSlowClient
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c.id)
		close(c.done)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", "session_id", c.id, "error", err)
			}
			return
		}
		c.handleControl(raw)
	}
}

func (c *Client) handleControl(raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.logger.Warn("malformed control frame", "session_id", c.id, "error", err)
		return
	}
	id, err := uuid.Parse(msg.ID)
	if err != nil {
		c.logger.Warn("control frame with bad id", "session_id", c.id, "type", msg.Type)
		return
	}

	switch msg.Type {
	case "JoinUserGroup":
		c.hub.Join(c.id, domain.UserGroup(id))
	case "LeaveUserGroup":
		c.hub.Leave(c.id, domain.UserGroup(id))
	case "JoinTeamGroup":
		c.hub.Join(c.id, domain.TeamGroup(id))
	case "LeaveTeamGroup":
		c.hub.Leave(c.id, domain.TeamGroup(id))
	default:
		c.logger.Warn("unknown control frame", "session_id", c.id, "type", msg.Type)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The gateway sits behind the app's own routing; origin policy is
	// enforced upstream.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler upgrades HTTP requests to websocket sessions on a hub.
type Handler struct {
	hub    *Hub
	logger *slog.Logger
}

// NewHandler creates the /ws endpoint handler.
func NewHandler(hub *Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{hub: hub, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		id:     uuid.NewString(),
		conn:   conn,
		hub:    h.hub,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: h.logger,
	}
	h.hub.Register(client)

	go client.writePump()
	go client.readPump()
}
