package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

const resetSubject = "Password reset"

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender envia correos via SMTP.
type SMTPSender struct {
	dialer   mailDialer
	from     string
	fromName string
}

// NewSMTPSender arma el dialer; useTLS activa TLS implicito (puerto 465 tipicamente),
// sin el se usa STARTTLS cuando el servidor lo ofrece.
func NewSMTPSender(host string, port int, username, password, from, fromName string, useTLS bool) (*SMTPSender, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("smtp from is required")
	}
	if port == 0 {
		port = 587
	}
	d := gomail.NewDialer(host, port, username, password)
	d.SSL = useTLS
	d.TLSConfig = &tls.Config{ServerName: host}
	return &SMTPSender{
		dialer:   d,
		from:     from,
		fromName: fromName,
	}, nil
}

func (s *SMTPSender) SendPasswordReset(_ context.Context, toEmail, name string) error {
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("to email is required")
	}
	if err := s.dialer.DialAndSend(s.buildMessage(toEmail, resetSubject, resetBody(name))); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

func (s *SMTPSender) buildMessage(to, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	if strings.TrimSpace(s.fromName) != "" {
		m.SetAddressHeader("From", s.from, s.fromName)
	} else {
		m.SetHeader("From", s.from)
	}
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return m
}

func resetBody(name string) string {
	greeting := "Hi,"
	if strings.TrimSpace(name) != "" {
		greeting = fmt.Sprintf("Hi %s,", strings.TrimSpace(name))
	}
	return greeting + "\nWe received a request to reset your ChatterSphere password.\n" +
		"If you did not ask for this, you can ignore this email.\n"
}
