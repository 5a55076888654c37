package service

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/globetrotter/identity-service/internal/config"
	"github.com/globetrotter/identity-service/internal/repository"
	"github.com/globetrotter/identity-service/internal/security"
)

type resetFixture struct {
	svc    *PasswordResetService
	regSvc *RegistrationService
	repo   repository.UserRepository
	mailer *fakeMailer
	cfg    *config.Config
}

func newResetFixture(t *testing.T) *resetFixture {
	t.Helper()
	cfg := testConfig()
	repo := testRepo(t)
	mailer := &fakeMailer{}
	hasher := security.NewHasher(3)
	return &resetFixture{
		svc:    NewPasswordResetService(cfg, repo, hasher, mailer),
		regSvc: NewRegistrationService(cfg, repo, hasher, testJWT(t), mailer, testLogger()),
		repo:   repo,
		mailer: mailer,
		cfg:    cfg,
	}
}

func (f *resetFixture) registerVerified(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.regSvc.Register(ctx, validInput()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	code := f.mailer.lastOTP(t, "traveler@example.com")
	if _, _, err := f.regSvc.VerifyOTP(ctx, "traveler@example.com", code); err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
}

func (f *resetFixture) requestToken(t *testing.T) string {
	t.Helper()
	if _, err := f.svc.RequestReset(context.Background(), "traveler@example.com"); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	resetURL := f.mailer.lastResetURL(t, "traveler@example.com")
	u, err := url.Parse(resetURL)
	if err != nil {
		t.Fatalf("parse reset url %q: %v", resetURL, err)
	}
	token := u.Query().Get("token")
	if token == "" {
		t.Fatalf("reset url %q carries no token", resetURL)
	}
	return token
}

func TestRequestReset(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email", func(t *testing.T) {
		f := newResetFixture(t)
		if _, err := f.svc.RequestReset(ctx, "ghost@example.com"); !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("empty email", func(t *testing.T) {
		f := newResetFixture(t)
		if _, err := f.svc.RequestReset(ctx, "   "); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("mails a link and stores only the hash", func(t *testing.T) {
		f := newResetFixture(t)
		f.registerVerified(t)

		token := f.requestToken(t)

		stored, err := f.repo.FindByEmail("traveler@example.com")
		if err != nil {
			t.Fatalf("FindByEmail: %v", err)
		}
		if stored.ResetTokenHash == nil {
			t.Fatal("expected token hash stored")
		}
		if *stored.ResetTokenHash == token {
			t.Fatal("raw token must not be stored")
		}
		if *stored.ResetTokenHash != security.HashToken(token) {
			t.Fatal("stored hash does not match issued token")
		}
	})

	t.Run("token exposed only when configured without smtp", func(t *testing.T) {
		f := newResetFixture(t)
		f.registerVerified(t)

		res, err := f.svc.RequestReset(ctx, "traveler@example.com")
		if err != nil {
			t.Fatalf("RequestReset: %v", err)
		}
		if res.Exposed || res.Token != "" {
			t.Fatal("token must stay hidden by default")
		}

		f.cfg.ExposeResetToken = true
		res, err = f.svc.RequestReset(ctx, "traveler@example.com")
		if err != nil {
			t.Fatalf("RequestReset: %v", err)
		}
		if !res.Exposed || res.Token == "" {
			t.Fatal("expected token exposed when EXPOSE_RESET_TOKEN is set and smtp is absent")
		}

		f.cfg.SMTPHost = "smtp.example.com"
		res, err = f.svc.RequestReset(ctx, "traveler@example.com")
		if err != nil {
			t.Fatalf("RequestReset: %v", err)
		}
		if res.Exposed {
			t.Fatal("token must never be exposed once smtp is configured")
		}
	})

	t.Run("email failure surfaces as delivery error", func(t *testing.T) {
		f := newResetFixture(t)
		f.registerVerified(t)
		f.mailer.failAll = true
		if _, err := f.svc.RequestReset(ctx, "traveler@example.com"); !errors.Is(err, ErrEmailDelivery) {
			t.Fatalf("expected ErrEmailDelivery, got %v", err)
		}
	})
}

func TestVerifyResetToken(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		f := newResetFixture(t)
		f.registerVerified(t)
		token := f.requestToken(t)
		if err := f.svc.VerifyResetToken(ctx, token); err != nil {
			t.Fatalf("VerifyResetToken: %v", err)
		}
		// Verification is read-only: it must still be valid afterwards.
		if err := f.svc.VerifyResetToken(ctx, token); err != nil {
			t.Fatalf("second VerifyResetToken: %v", err)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		f := newResetFixture(t)
		if err := f.svc.VerifyResetToken(ctx, "bogus"); !errors.Is(err, ErrInvalidResetToken) {
			t.Fatalf("expected ErrInvalidResetToken, got %v", err)
		}
	})

	t.Run("empty token", func(t *testing.T) {
		f := newResetFixture(t)
		if err := f.svc.VerifyResetToken(ctx, ""); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("full lifecycle with replay rejection", func(t *testing.T) {
		f := newResetFixture(t)
		f.registerVerified(t)
		token := f.requestToken(t)

		if err := f.svc.ResetPassword(ctx, token, "brand-new-password"); err != nil {
			t.Fatalf("ResetPassword: %v", err)
		}

		stored, err := f.repo.FindByEmail("traveler@example.com")
		if err != nil {
			t.Fatalf("FindByEmail: %v", err)
		}
		ok, err := security.NewHasher(3).Verify(stored.PasswordHash, "brand-new-password")
		if err != nil || !ok {
			t.Fatalf("new password does not verify: ok=%v err=%v", ok, err)
		}

		if err := f.svc.ResetPassword(ctx, token, "yet-another-password"); !errors.Is(err, ErrInvalidResetToken) {
			t.Fatalf("expected replay rejected, got %v", err)
		}
		if err := f.svc.VerifyResetToken(ctx, token); !errors.Is(err, ErrInvalidResetToken) {
			t.Fatalf("expected consumed token invalid, got %v", err)
		}
	})

	t.Run("new request invalidates the previous token", func(t *testing.T) {
		f := newResetFixture(t)
		f.registerVerified(t)
		first := f.requestToken(t)
		second := f.requestToken(t)

		if err := f.svc.ResetPassword(ctx, first, "irrelevant-pass"); !errors.Is(err, ErrInvalidResetToken) {
			t.Fatalf("expected stale token rejected, got %v", err)
		}
		if err := f.svc.ResetPassword(ctx, second, "fresh-password"); err != nil {
			t.Fatalf("latest token must work: %v", err)
		}
	})

	t.Run("short password", func(t *testing.T) {
		f := newResetFixture(t)
		f.registerVerified(t)
		token := f.requestToken(t)
		if err := f.svc.ResetPassword(ctx, token, "12345"); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		// A rejected password must not burn the token.
		if err := f.svc.ResetPassword(ctx, token, "acceptable-pass"); err != nil {
			t.Fatalf("token must survive validation failure: %v", err)
		}
	})
}
