package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"app/internal/config"
	"app/internal/model"
)

// Mailer sends guest mockup delivery emails.
type Mailer interface {
	SendGuestMockups(to string, session *model.GuestSession) error
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPMailer builds a Mailer from config.
func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
	}
}

var deliveryTemplate = template.Must(template.New("guest_delivery").Parse(`<html>
<body>
<p>Your mockups are ready.</p>
<ul>
{{range .Results}}<li>{{.Category}}: <a href="{{.URL}}">{{.URL}}</a></li>
{{end}}</ul>
{{if .Errors}}<p>Some categories could not be rendered:</p>
<ul>
{{range .Errors}}<li>{{.Category}}: {{.Message}}</li>
{{end}}</ul>{{end}}
<p>Sign up to keep these mockups in your account.</p>
</body>
</html>`))

// RenderGuestMockups renders the delivery email body for a session.
func RenderGuestMockups(session *model.GuestSession) (string, error) {
	var buf bytes.Buffer
	if err := deliveryTemplate.Execute(&buf, session); err != nil {
		return "", fmt.Errorf("render delivery email for session %s: %w", session.ID, err)
	}
	return buf.String(), nil
}

func (m *SMTPMailer) SendGuestMockups(to string, session *model.GuestSession) error {
	body, err := RenderGuestMockups(session)
	if err != nil {
		return err
	}
	msg := m.buildMessage(to, "Your mockups are ready", body)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	var auth smtp.Auth
	if m.username != "" && m.password != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, msg); err != nil {
		return fmt.Errorf("send delivery email for session %s: %w", session.ID, err)
	}
	return nil
}

func (m *SMTPMailer) buildMessage(to, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
