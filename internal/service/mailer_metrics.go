package service

import (
	"context"
	"time"

	"github.com/globetrotter/identity-service/internal/observability"
)

// instrumentedMailer counts every dispatch outcome by kind. It wraps whichever
// concrete mailer is configured.
type instrumentedMailer struct {
	next Mailer
}

func NewInstrumentedMailer(next Mailer) Mailer {
	return &instrumentedMailer{next: next}
}

func (m *instrumentedMailer) SendOTP(ctx context.Context, email, code, name string) error {
	err := m.next.SendOTP(ctx, email, code, name)
	observability.RecordEmailDispatch(ctx, "otp", dispatchStatus(err))
	return err
}

func (m *instrumentedMailer) SendWelcome(ctx context.Context, email, name string) error {
	err := m.next.SendWelcome(ctx, email, name)
	observability.RecordEmailDispatch(ctx, "welcome", dispatchStatus(err))
	return err
}

func (m *instrumentedMailer) SendPasswordReset(ctx context.Context, email, resetURL string, expiresAt time.Time) error {
	err := m.next.SendPasswordReset(ctx, email, resetURL, expiresAt)
	observability.RecordEmailDispatch(ctx, "reset", dispatchStatus(err))
	return err
}

func dispatchStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "sent"
}
