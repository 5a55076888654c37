package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/globetrotter/identity-service/internal/config"
	"github.com/globetrotter/identity-service/internal/repository"
	"github.com/globetrotter/identity-service/internal/security"
)

const resetTokenBytes = 32

type PasswordResetService struct {
	cfg    *config.Config
	users  repository.UserRepository
	hasher *security.Hasher
	mailer Mailer
}

// ResetRequestResult carries the raw token only when the configuration-gated
// test-mode exposure applies; otherwise Token stays empty.
type ResetRequestResult struct {
	Token   string
	Exposed bool
}

func NewPasswordResetService(
	cfg *config.Config,
	users repository.UserRepository,
	hasher *security.Hasher,
	mailer Mailer,
) *PasswordResetService {
	return &PasswordResetService{cfg: cfg, users: users, hasher: hasher, mailer: mailer}
}

// RequestReset issues a fresh single-use token. An earlier active token is
// overwritten, never kept alongside. Unknown emails surface as not-found;
// that reveals account existence and is kept deliberately for compatibility
// with the upstream product behavior.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (*ResetRequestResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}

	user, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	raw, err := security.NewRandomString(resetTokenBytes)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	expiry := now.Add(s.cfg.ResetTokenTTL)
	if err := s.users.SetResetToken(user.ID, security.HashToken(raw), expiry); err != nil {
		return nil, err
	}

	resetURL, err := s.buildResetURL(raw)
	if err != nil {
		return nil, err
	}
	if err := s.mailer.SendPasswordReset(ctx, user.Email, resetURL, expiry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}

	if !s.cfg.SMTPConfigured() && s.cfg.ExposeResetToken {
		return &ResetRequestResult{Token: raw, Exposed: true}, nil
	}
	return &ResetRequestResult{}, nil
}

// VerifyResetToken is the read-only validity check; it never consumes.
func (s *PasswordResetService) VerifyResetToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrValidation)
	}
	_, err := s.users.FindByActiveResetToken(security.HashToken(token), time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	return nil
}

// ResetPassword consumes the token and installs the new hash in one
// conditional update; a replayed token finds no matching record.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrValidation)
	}
	if len(newPassword) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.ConsumeResetToken(security.HashToken(token), hash, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	return nil
}

func (s *PasswordResetService) buildResetURL(token string) (string, error) {
	u, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid BASE_URL: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/reset-password"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
