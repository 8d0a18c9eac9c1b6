package service

import (
	"context"
	"strings"
	"testing"

	"github.com/docsdesk/docsdesk/internal/config"
)

func TestRenderMail(t *testing.T) {
	subject, body, err := RenderMail(TemplateRegistrationApproved, MailData{
		SiteName: "Teedy",
		Username: "bob",
		Email:    "bob@example.com",
	})
	if err != nil {
		t.Fatalf("RenderMail: %v", err)
	}
	if subject != "Teedy - Your account request has been approved" {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(body, "Hello bob,") || !strings.Contains(body, "Username: bob") {
		t.Errorf("body = %q", body)
	}

	_, body, err = RenderMail(TemplateRegistrationRejected, MailData{SiteName: "Teedy", Username: "bob", Reason: "duplicate"})
	if err != nil {
		t.Fatalf("RenderMail: %v", err)
	}
	if !strings.Contains(body, "Reason: duplicate") {
		t.Errorf("body = %q", body)
	}

	if _, _, err := RenderMail("nope", MailData{}); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestNewMailer(t *testing.T) {
	m, err := NewMailer(config.MailConfig{}, nil)
	if err != nil {
		t.Fatalf("NewMailer: %v", err)
	}
	if _, ok := m.(LogMailer); !ok {
		t.Fatalf("expected LogMailer without host, got %T", m)
	}
	if err := m.Send(context.Background(), "a@b.co", "s", "b"); err != nil {
		t.Errorf("LogMailer.Send: %v", err)
	}

	m, err = NewMailer(config.MailConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p"}, nil)
	if err != nil {
		t.Fatalf("NewMailer: %v", err)
	}
	smtp, ok := m.(*SMTPMailer)
	if !ok {
		t.Fatalf("expected *SMTPMailer, got %T", m)
	}
	if smtp.from != "u" {
		t.Errorf("from = %q, want username fallback", smtp.from)
	}
}
