// Package httpapi exposes the gateway's HTTP surface: the websocket
// endpoint, test/escalation endpoints for manual sends, and the health
// check.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/teamfinder/internal/notifications/application"
	"github.com/felixgeelhaar/teamfinder/internal/notifications/domain"
)

// emailRequest is the body of POST /api/notifications/email.
type emailRequest struct {
	Email        string              `json:"Email"`
	Notification domain.Notification `json:"Notification"`
}

// Server routes the gateway's HTTP endpoints.
type Server struct {
	notifier domain.Notifier
	email    *application.EmailService
	ws       http.Handler
	health   http.Handler
	logger   *slog.Logger
}

// NewServer wires the HTTP surface. email may be nil when no SMTP
// relay is configured; the email endpoint then returns 503. health may
// be nil for a bare liveness probe.
func NewServer(notifier domain.Notifier, email *application.EmailService, ws, health http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{notifier: notifier, email: email, ws: ws, health: health, logger: logger}
}

// Handler returns the gateway mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.ws)
	mux.HandleFunc("POST /api/notifications/broadcast", s.handleBroadcast)
	mux.HandleFunc("POST /api/notifications/user/{id}", s.handleSendToUser)
	mux.HandleFunc("POST /api/notifications/team/{id}", s.handleSendToTeam)
	mux.HandleFunc("POST /api/notifications/email", s.handleEmail)
	if s.health != nil {
		mux.Handle("GET /healthz", s.health)
	} else {
		mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
	}
	return mux
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	n, ok := s.decodeNotification(w, r)
	if !ok {
		return
	}
	s.notifier.SendToAll(r.Context(), n)
	s.respond(w, http.StatusOK, "notification broadcast successfully")
}

func (s *Server) handleSendToUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	n, ok := s.decodeNotification(w, r)
	if !ok {
		return
	}
	s.notifier.SendToUser(r.Context(), id, n)
	s.respond(w, http.StatusOK, "notification sent to user "+id.String())
}

func (s *Server) handleSendToTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	n, ok := s.decodeNotification(w, r)
	if !ok {
		return
	}
	s.notifier.SendToTeam(r.Context(), id, n)
	s.respond(w, http.StatusOK, "notification sent to team "+id.String())
}

func (s *Server) handleEmail(w http.ResponseWriter, r *http.Request) {
	if s.email == nil {
		s.respond(w, http.StatusServiceUnavailable, "email delivery not configured")
		return
	}
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		s.respond(w, http.StatusBadRequest, "invalid email request")
		return
	}
	if err := s.email.Send(r.Context(), req.Email, req.Notification); err != nil {
		s.logger.Error("email send failed", "to", req.Email, "error", err)
		s.respond(w, http.StatusInternalServerError, "failed to send email notification")
		return
	}
	s.respond(w, http.StatusOK, "email notification sent to "+req.Email)
}

func (s *Server) decodeNotification(w http.ResponseWriter, r *http.Request) (domain.Notification, bool) {
	var n domain.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		s.respond(w, http.StatusBadRequest, "invalid notification payload")
		return domain.Notification{}, false
	}
	return n, true
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respond(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) respond(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
