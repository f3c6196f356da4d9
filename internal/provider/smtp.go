package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/careops-engine/internal/domain"
	"gopkg.in/gomail.v2"
)

const defaultEmailSubject = "A message from your booking"

// mailDialer is satisfied by *gomail.Dialer.
type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

var _ EmailSender = (*SMTPEmailSender)(nil)

// SMTPEmailSender delivers plain-text email through an SMTP relay.
type SMTPEmailSender struct {
	from    string
	subject string
	dialer  mailDialer
}

func NewSMTPEmailSender(cfg SMTPConfig) (*SMTPEmailSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}

	return newSMTPEmailSender(cfg.From, gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)), nil
}

func newSMTPEmailSender(from string, dialer mailDialer) *SMTPEmailSender {
	return &SMTPEmailSender{
		from:    strings.TrimSpace(from),
		subject: defaultEmailSubject,
		dialer:  dialer,
	}
}

func (s *SMTPEmailSender) SendEmail(ctx context.Context, to string, content string) error {
	if s == nil || s.dialer == nil {
		return fmt.Errorf("email sender is not initialized")
	}
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipient
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", strings.TrimSpace(to))
	m.SetHeader("Subject", subjectFor(content, s.subject))
	m.SetBody("text/plain", content)

	// gomail has no context support; the dial runs aside and is abandoned on
	// cancellation.
	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return &GatewayError{Channel: domain.MessageTypeEmail, Message: "smtp send interrupted", Transient: true, Cause: ctx.Err()}
	case err := <-done:
		if err != nil {
			return smtpFailure(err)
		}
		return nil
	}
}

// subjectFor uses the text before the first colon, e.g. "Booking Confirmed".
func subjectFor(content string, fallback string) string {
	head, _, found := strings.Cut(content, ":")
	head = strings.TrimSpace(head)
	if !found || head == "" || len(head) > 60 {
		return fallback
	}
	return head
}
