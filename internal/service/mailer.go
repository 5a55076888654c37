package service

import (
	"context"
	"log/slog"
	"time"
)

// Mailer is the outbound email collaborator. Implementations must apply their
// own bounded timeout; a timeout is reported as an ordinary send error.
type Mailer interface {
	SendOTP(ctx context.Context, email, code, name string) error
	SendWelcome(ctx context.Context, email, name string) error
	SendPasswordReset(ctx context.Context, email, resetURL string, expiresAt time.Time) error
}

// DevMailer stands in when SMTP is not configured. It logs instead of
// sending, including the secret, so local flows remain testable end to end.
type DevMailer struct {
	logger *slog.Logger
}

func NewDevMailer(logger *slog.Logger) *DevMailer {
	return &DevMailer{logger: logger}
}

func (m *DevMailer) SendOTP(ctx context.Context, email, code, name string) error {
	m.logger.InfoContext(ctx, "verification otp issued",
		"email", email,
		"name", name,
		"otp", code,
	)
	return nil
}

func (m *DevMailer) SendWelcome(ctx context.Context, email, name string) error {
	m.logger.InfoContext(ctx, "welcome email suppressed, smtp not configured",
		"email", email,
		"name", name,
	)
	return nil
}

func (m *DevMailer) SendPasswordReset(ctx context.Context, email, resetURL string, expiresAt time.Time) error {
	m.logger.InfoContext(ctx, "password reset link issued",
		"email", email,
		"reset", resetURL,
		"expires_at", expiresAt,
	)
	return nil
}
