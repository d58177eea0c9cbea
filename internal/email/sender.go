// Package email delivers transactional mail. Resend's HTTP API is used when
// an API key is configured; otherwise delivery falls back to plain SMTP.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/smtp"
	"net/url"
	"strings"
	"time"

	"github.com/lodestar-hq/lodestar/internal/config"
)

const resendEndpoint = "https://api.resend.com/emails"

// InvitationEmail carries everything needed to render and address one team
// invitation.
type InvitationEmail struct {
	To           string
	TeamName     string
	InviterName  string
	Role         string
	InvitationID string
}

// Sender delivers emails using the configured transport.
type Sender struct {
	cfg    config.EmailConfig
	client *http.Client
	logger *slog.Logger
}

// NewSender creates a sender from config.
func NewSender(cfg config.EmailConfig, logger *slog.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// SendInvitation sends a team invitation email.
func (s *Sender) SendInvitation(ctx context.Context, inv InvitationEmail) error {
	subject := fmt.Sprintf("%s invited you to join %s", inv.InviterName, inv.TeamName)
	html := s.renderInvitation(inv)

	if s.cfg.ResendAPIKey != "" {
		return s.sendViaResend(ctx, inv.To, subject, html)
	}
	if s.cfg.SMTPHost != "" {
		return s.sendViaSMTP(inv.To, subject, html)
	}
	return fmt.Errorf("no email transport configured")
}

func (s *Sender) renderInvitation(inv InvitationEmail) string {
	acceptURL := fmt.Sprintf("%s/invitations/%s/accept",
		strings.TrimRight(s.cfg.BaseURL, "/"), url.PathEscape(inv.InvitationID))

	var b strings.Builder
	b.WriteString("<div style=\"font-family:sans-serif;max-width:560px;margin:0 auto\">")
	fmt.Fprintf(&b, "<h2>Join %s</h2>", htmlEscape(inv.TeamName))
	fmt.Fprintf(&b, "<p>%s has invited you to join <strong>%s</strong> as a %s.</p>",
		htmlEscape(inv.InviterName), htmlEscape(inv.TeamName), htmlEscape(inv.Role))
	fmt.Fprintf(&b, "<p><a href=%q style=\"display:inline-block;padding:10px 20px;background:#4f46e5;color:#fff;border-radius:6px;text-decoration:none\">Accept invitation</a></p>", acceptURL)
	b.WriteString("<p style=\"color:#666;font-size:13px\">This invitation expires in 7 days. If you weren't expecting it you can ignore this email.</p>")
	b.WriteString("</div>")
	return b.String()
}

func (s *Sender) sendViaResend(ctx context.Context, to, subject, html string) error {
	payload, err := json.Marshal(map[string]any{
		"from":    s.cfg.FromEmail,
		"to":      []string{to},
		"subject": subject,
		"html":    html,
	})
	if err != nil {
		return fmt.Errorf("failed to encode email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resendEndpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.ResendAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("email API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	s.logger.Debug("Email sent via Resend", "to", to, "subject", subject)
	return nil
}

func (s *Sender) sendViaSMTP(to, subject, html string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	var auth smtp.Auth
	if s.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.FromEmail)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(html)

	if err := smtp.SendMail(addr, auth, s.cfg.FromEmail, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("failed to send email via SMTP: %w", err)
	}

	s.logger.Debug("Email sent via SMTP", "to", to, "subject", subject)
	return nil
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func htmlEscape(s string) string {
	return htmlEscaper.Replace(s)
}
