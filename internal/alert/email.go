package alert

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"cronwatch/internal/config"
)

// EmailSink delivers alerts as plain-text email through SendGrid.
type EmailSink struct {
	client   *sendgrid.Client
	from     *mail.Email
	to       []string
	fromName string
}

func NewEmailSink(cfg config.EmailConfig) *EmailSink {
	name := cfg.FromName
	if name == "" {
		name = "cronwatch"
	}
	return &EmailSink{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(name, cfg.From),
		to:     cfg.To,
	}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Send(ctx context.Context, subject, body string) error {
	m := mail.NewV3Mail()
	m.SetFrom(s.from)
	m.Subject = subject

	p := mail.NewPersonalization()
	for _, addr := range s.to {
		p.AddTos(mail.NewEmail("", addr))
	}
	m.AddPersonalizations(p)
	m.AddContent(mail.NewContent("text/plain", body))

	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d", resp.StatusCode)
	}
	return nil
}
