package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"

	gomail "github.com/wneessen/go-mail"

	"github.com/docsdesk/docsdesk/internal/config"
)

// Mail templates sent when a registration request is resolved.
const (
	TemplateRegistrationApproved = "user_registration_approved"
	TemplateRegistrationRejected = "user_registration_rejected"
)

// Mailer delivers a notification to a single recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends plain-text mail through an SMTP relay.
type SMTPMailer struct {
	from   string
	client *gomail.Client
}

// NewSMTPMailer creates a mailer from the mail section of the config file.
// An empty auth value lets the client discover the mechanism.
func NewSMTPMailer(cfg config.MailConfig) (*SMTPMailer, error) {
	authType := gomail.SMTPAuthAutoDiscover
	if len(cfg.Auth) > 0 {
		authType = gomail.SMTPAuthType(cfg.Auth)
	}

	opts := []gomail.Option{gomail.WithPort(cfg.Port)}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(authType),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	cl, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPMailer{from: from, client: cl}, nil
}

// Send dials the relay and delivers one plain-text message. Dialing and the
// SMTP exchange both honor ctx.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)
	return m.client.DialAndSendWithContext(ctx, msg)
}

// LogMailer records notifications in the log instead of sending them. It is
// used when no SMTP host is configured.
type LogMailer struct {
	Logger *slog.Logger
}

// Send logs the recipient and subject and always succeeds.
func (m LogMailer) Send(_ context.Context, to, subject, body string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mail not sent, no smtp host configured", "to", to, "subject", subject, "bytes", len(body))
	return nil
}

// NewMailer returns an SMTPMailer when a host is configured and a LogMailer
// otherwise.
func NewMailer(cfg config.MailConfig, logger *slog.Logger) (Mailer, error) {
	if cfg.Host == "" {
		return LogMailer{Logger: logger}, nil
	}
	return NewSMTPMailer(cfg)
}

// ---------------------------------------------------------------------------
// Templates
// ---------------------------------------------------------------------------

type mailTemplate struct {
	subject string
	body    *template.Template
}

var mailTemplates = map[string]mailTemplate{
	TemplateRegistrationApproved: {
		subject: "{{.SiteName}} - Your account request has been approved",
		body: template.Must(template.New(TemplateRegistrationApproved).Parse(
			`Hello {{.Username}},

Your request for an account on {{.SiteName}} has been approved.

Username: {{.Username}}
Initial password: your username

Please sign in and change your password right away.
`)),
	},
	TemplateRegistrationRejected: {
		subject: "{{.SiteName}} - Your account request has been declined",
		body: template.Must(template.New(TemplateRegistrationRejected).Parse(
			`Hello {{.Username}},

Your request for an account on {{.SiteName}} has been declined.
{{- if .Reason}}

Reason: {{.Reason}}
{{- end}}
`)),
	},
}

// MailData is the set of values available to notification templates.
type MailData struct {
	SiteName string
	Username string
	Email    string
	Reason   string
}

// RenderMail renders the subject and body of the named template.
func RenderMail(name string, data MailData) (subject, body string, err error) {
	tmpl, ok := mailTemplates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown mail template %q", name)
	}

	subj, err := template.New(name + "_subject").Parse(tmpl.subject)
	if err != nil {
		return "", "", fmt.Errorf("parse subject: %w", err)
	}
	var sb, bb bytes.Buffer
	if err := subj.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := tmpl.body.Execute(&bb, data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return sb.String(), bb.String(), nil
}
