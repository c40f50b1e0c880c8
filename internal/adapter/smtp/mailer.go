// Package smtp renders and sends per-user outage digest emails.
package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"log/slog"
	netsmtp "net/smtp"
	"strings"

	"github.com/jordan-wright/email"

	"github.com/couchcryptid/outage-monitor/internal/domain"
)

// Config holds the SMTP relay settings.
type Config struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Mailer sends one digest email per matched user per cycle.
type Mailer struct {
	cfg    Config
	logger *slog.Logger
}

// NewMailer creates a Mailer.
func NewMailer(cfg Config, logger *slog.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger}
}

// Notify sends a digest listing every incident matched for the recipient.
// Failures are returned to the caller, which logs them; a failed send never
// rolls back the incident writes.
func (m *Mailer) Notify(_ context.Context, recipient string, incidents []domain.Incident) error {
	if len(incidents) == 0 {
		return nil
	}

	text, htmlBody := renderDigest(incidents)

	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = []string{recipient}
	e.Subject = subject(len(incidents))
	e.Text = []byte(text)
	e.HTML = []byte(htmlBody)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := netsmtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	if err := e.SendWithStartTLS(addr, auth, &tls.Config{ServerName: m.cfg.Host}); err != nil {
		return fmt.Errorf("send digest to %s: %w", recipient, err)
	}
	return nil
}

func subject(count int) string {
	if count == 1 {
		return "Обавештење о прекиду водоснабдевања"
	}
	return fmt.Sprintf("Обавештење о прекидима водоснабдевања (%d)", count)
}

// renderDigest produces the plain-text and HTML bodies: one line per
// incident with its address and description.
func renderDigest(incidents []domain.Incident) (string, string) {
	var text strings.Builder
	var body strings.Builder

	text.WriteString("Пријављени прекиди водоснабдевања на вашим локацијама:\n\n")
	body.WriteString("<p>Пријављени прекиди водоснабдевања на вашим локацијама:</p>\n<ul>\n")

	for _, inc := range incidents {
		fmt.Fprintf(&text, "- %s: %s\n", inc.AddressText, inc.Description)
		fmt.Fprintf(&body, "<li><strong>%s</strong>: %s</li>\n",
			html.EscapeString(inc.AddressText), html.EscapeString(inc.Description))
	}

	body.WriteString("</ul>\n")
	return text.String(), body.String()
}
