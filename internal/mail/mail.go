// Package mail sends outbound portal email over SMTP.
//
// Configuration is read through the settings provider at send time, so SMTP
// edits made in the admin area take effect without a restart.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net/smtp"
	"regexp"
	"strconv"
	"strings"

	"github.com/jordan-wright/email"

	perrors "github.com/vereinswerk/portal/internal/platform/errors"
	"github.com/vereinswerk/portal/internal/settings"
)

// Message is one outbound email. Text is optional; when empty a plain-text
// fallback is derived from HTML.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers portal mail.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender sends mail through the SMTP server from the settings provider.
type SMTPSender struct {
	settings *settings.Provider
}

// NewSMTPSender creates a sender reading its configuration from settings.
func NewSMTPSender(provider *settings.Provider) *SMTPSender {
	return &SMTPSender{settings: provider}
}

// Send wraps the message body in the configured mail layout and delivers it.
// Returns MAIL_NOT_CONFIGURED when no SMTP host is set up.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	cfg := s.settings.SMTP()
	if !cfg.Configured() {
		return perrors.New(perrors.CodeMailNotConfigured, "smtp is not configured")
	}
	if msg.To == "" {
		return perrors.New(perrors.CodeValidation, "recipient is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	layout := s.settings.MailLayout()
	htmlBody := layout.HeaderHTML + msg.HTML + layout.FooterHTML
	text := msg.Text
	if text == "" {
		text = StripHTML(msg.HTML)
	}

	e := email.NewEmail()
	e.From = formatFrom(cfg)
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.HTML = []byte(htmlBody)
	e.Text = []byte(text)

	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}

	var err error
	if cfg.Secure {
		err = e.SendWithTLS(addr, auth, &tls.Config{ServerName: cfg.Host})
	} else {
		err = e.Send(addr, auth)
	}
	if err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

// SendTest delivers a short test message so administrators can check their
// SMTP settings.
func (s *SMTPSender) SendTest(ctx context.Context, to string) error {
	site := s.settings.Public().SiteTitle
	return s.Send(ctx, Message{
		To:      to,
		Subject: fmt.Sprintf("%s – SMTP-Test", site),
		HTML:    fmt.Sprintf("<p>Diese Testnachricht bestätigt die SMTP-Konfiguration von %s.</p>", html.EscapeString(site)),
	})
}

func formatFrom(cfg settings.SMTP) string {
	if cfg.FromName != "" {
		return fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail)
	}
	return cfg.FromEmail
}

var (
	styleBlockPattern  = regexp.MustCompile(`(?is)<style.*?</style>`)
	scriptBlockPattern = regexp.MustCompile(`(?is)<script.*?</script>`)
	blockEndPattern    = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr)>|<br\s*/?>`)
	tagPattern         = regexp.MustCompile(`(?s)<[^>]+>`)
	blankLinesPattern  = regexp.MustCompile(`\n{3,}`)
)

// StripHTML derives a plain-text fallback from an HTML body: style and
// script blocks go entirely, block boundaries become line breaks, remaining
// tags are dropped, and common entities are decoded.
func StripHTML(input string) string {
	text := styleBlockPattern.ReplaceAllString(input, "")
	text = scriptBlockPattern.ReplaceAllString(text, "")
	text = blockEndPattern.ReplaceAllString(text, "\n")
	text = tagPattern.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = blankLinesPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
