package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
)

// Mailer is the raw delivery transport. The workflow service only ever
// talks to the typed Service below; tests substitute a fake Mailer.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer delivers mail over plain SMTP with AUTH.
type SMTPMailer struct {
	cfg config.EmailConfig
	log *logger.Logger
}

func NewSMTPMailer(cfg config.EmailConfig, log *logger.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, log: log}
}

func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	addr := m.cfg.SMTPHost + ":" + m.cfg.SMTPPort
	auth := smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s",
		m.cfg.Sender, to, subject, body)

	if err := smtp.SendMail(addr, auth, m.cfg.Sender, []string{to}, []byte(msg)); err != nil {
		m.log.Error("EMAIL", fmt.Sprintf("SMTP send to %s failed: %v", to, err))
		return err
	}
	m.log.LogEmail("SMTP", to, subject)
	return nil
}

// ConsoleMailer logs instead of sending. Used for local development when
// SMTP credentials are not configured.
type ConsoleMailer struct {
	log *logger.Logger
}

func NewConsoleMailer(log *logger.Logger) *ConsoleMailer {
	return &ConsoleMailer{log: log}
}

func (m *ConsoleMailer) Send(_ context.Context, to, subject, body string) error {
	m.log.LogEmail("CONSOLE", to, subject)
	return nil
}
