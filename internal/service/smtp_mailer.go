package service

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/globetrotter/identity-service/internal/config"
)

// SMTPMailer dispatches over SMTP using go-mail. Every send carries a bounded
// timeout; a deadline hit surfaces as a send error and callers treat it as a
// delivery failure.
type SMTPMailer struct {
	cfg *config.Config
}

func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) SendOTP(ctx context.Context, email, code, name string) error {
	body := fmt.Sprintf(
		"Welcome to Globetrotter, %s!\n\n"+
			"Your verification code is: %s\n\n"+
			"The code is valid for %d minutes. Do not share it with anyone.\n"+
			"If you did not request this verification, ignore this email.\n",
		name, code, int(m.cfg.OTPTTL.Minutes()))
	return m.send(ctx, email, "Verify your Globetrotter account", body)
}

func (m *SMTPMailer) SendWelcome(ctx context.Context, email, name string) error {
	body := fmt.Sprintf(
		"Welcome to Globetrotter, %s!\n\n"+
			"Your account has been verified. Start planning your first trip at %s/plan-trip\n",
		name, m.cfg.BaseURL)
	return m.send(ctx, email, "Welcome to Globetrotter - account verified", body)
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, email, resetURL string, expiresAt time.Time) error {
	body := fmt.Sprintf(
		"You requested a password reset.\n\n"+
			"Reset your password here: %s\n\n"+
			"The link expires at %s. If you did not request this, ignore this email.\n",
		resetURL, expiresAt.UTC().Format(time.RFC1123))
	return m.send(ctx, email, "Password reset request", body)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if m.cfg.SMTPFromName != "" {
		if err := msg.FromFormat(m.cfg.SMTPFromName, m.cfg.SMTPFrom); err != nil {
			return fmt.Errorf("set from address: %w", err)
		}
	} else if err := msg.From(m.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(m.cfg.SMTPPort),
		mail.WithTimeout(m.cfg.EmailTimeout),
	}
	if m.cfg.SMTPPort == 465 {
		opts = append(opts, mail.WithSSL())
	}
	if m.cfg.SMTPUsername != "" && m.cfg.SMTPPassword != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.SMTPUsername),
			mail.WithPassword(m.cfg.SMTPPassword),
		)
	}

	client, err := mail.NewClient(m.cfg.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("create mail client: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.cfg.EmailTimeout)
	defer cancel()
	if err := client.DialAndSendWithContext(sendCtx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
