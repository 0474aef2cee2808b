package notification

import (
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"repcirAPI/internal/logger"
)

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromName  string
	FromEmail string
}

// Mailer sends circle invitations by email. Without SMTP credentials it logs
// the message instead of sending it.
type Mailer struct {
	cfg  SMTPConfig
	log  zerolog.Logger
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg, log: logger.With("mailer"), send: smtp.SendMail}
}

var inviteTemplate = template.Must(template.New("invite").Parse(`<html>
<body>
	<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
		<h2 style="color: #333;">You're invited to {{.CircleName}}</h2>
		<p>{{.InviterName}} wants you to train together on Repcir.</p>
		<div style="text-align: center; margin: 30px 0;">
			<a href="{{.Link}}" style="background-color: #ff5a1f; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; font-weight: bold;">Join the circle</a>
		</div>
		<p>Or enter this code in the app: <strong>{{.Code}}</strong></p>
	</div>
</body>
</html>`))

type inviteData struct {
	CircleName  string
	InviterName string
	Link        template.URL
	Code        string
}

func (m *Mailer) SendInvitation(ctx context.Context, to, circleName, inviterName, code, link string) error {
	var body strings.Builder
	err := inviteTemplate.Execute(&body, inviteData{
		CircleName:  circleName,
		InviterName: inviterName,
		Link:        template.URL(link),
		Code:        code,
	})
	if err != nil {
		return fmt.Errorf("failed to render invitation email: %w", err)
	}

	subject := fmt.Sprintf("Join %s on Repcir", circleName)
	return m.sendHTML(ctx, to, subject, body.String())
}

func (m *Mailer) sendHTML(ctx context.Context, to, subject, htmlBody string) error {
	if m.cfg.Host == "" || m.cfg.Username == "" || m.cfg.Password == "" {
		m.log.Warn().Str("to", to).Str("subject", subject).Msg("SMTP not configured, email not sent")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)

	if err := m.send(addr, auth, m.cfg.FromEmail, []string{to}, m.compose(to, subject, htmlBody)); err != nil {
		m.log.Error().Err(err).Str("server", addr).Msg("Failed to send email")
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (m *Mailer) compose(to, subject, htmlBody string) []byte {
	headers := [][2]string{
		{"From", fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.FromEmail)},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var b strings.Builder
	for _, h := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h[0], h[1])
	}
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
