// Package email delivers notifications over SMTP, with a circuit
// breaker guarding the upstream relay.
package email

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/felixgeelhaar/teamfinder/internal/notifications/domain"
)

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Addr returns the host:port dial address.
func (c SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// sendMailFunc matches smtp.SendMail; swapped out in tests.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends notification emails through an SMTP relay.
type SMTPSender struct {
	config   SMTPConfig
	sendMail sendMailFunc
	logger   *slog.Logger
}

// NewSMTPSender creates an SMTP backed sender.
func NewSMTPSender(config SMTPConfig, logger *slog.Logger) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{
		config:   config,
		sendMail: smtp.SendMail,
		logger:   logger,
	}
}

// Send renders the notification as an HTML email and submits it to the
// relay. The context deadline is honored only up to submission; SMTP
// sends are not cancellable mid-flight.
func (s *SMTPSender) Send(ctx context.Context, to string, n domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	msg := buildMessage(s.config.From, to, n)
	if err := s.sendMail(s.config.Addr(), auth, s.config.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}

	s.logger.Info("notification email sent", "to", to, "type", n.Type)
	return nil
}

func buildMessage(from, to string, n domain.Notification) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: Notification: %s\r\n", n.Type)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "<html><body><h3>%s</h3><p>%s</p><p><small>%s</small></p></body></html>\r\n",
		html.EscapeString(n.Type),
		html.EscapeString(n.Message),
		n.Timestamp.Format("2006-01-02 15:04:05 MST"),
	)
	return []byte(b.String())
}

var _ domain.EmailSender = (*SMTPSender)(nil)
