package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/globetrotter/identity-service/internal/config"
	"github.com/globetrotter/identity-service/internal/domain"
	"github.com/globetrotter/identity-service/internal/repository"
	"github.com/globetrotter/identity-service/internal/security"
)

type RegistrationService struct {
	cfg    *config.Config
	users  repository.UserRepository
	hasher *security.Hasher
	jwtMgr *security.JWTManager
	mailer Mailer
	logger *slog.Logger
}

type RegisterInput struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	PhoneNumber  string `json:"phoneNumber"`
	City         string `json:"city"`
	Country      string `json:"country"`
	Description  string `json:"description"`
	ProfilePhoto string `json:"profilePhoto"`
}

func NewRegistrationService(
	cfg *config.Config,
	users repository.UserRepository,
	hasher *security.Hasher,
	jwtMgr *security.JWTManager,
	mailer Mailer,
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{cfg: cfg, users: users, hasher: hasher, jwtMgr: jwtMgr, mailer: mailer, logger: logger}
}

// Register creates an unverified record carrying a fresh OTP and dispatches
// the verification email. Email dispatch is a required step: on failure the
// just-created record is deleted again and the registration fails whole.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	code, err := security.NewOTP()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expiry := now.Add(s.cfg.OTPTTL)
	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		OTP:          &code,
		OTPExpiry:    &expiry,
		OTPSentAt:    &now,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		City:         strings.TrimSpace(in.City),
		Country:      strings.TrimSpace(in.Country),
		Description:  strings.TrimSpace(in.Description),
		ProfilePhoto: in.ProfilePhoto,
	}
	if err := s.users.CreateUnverified(user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}

	if err := s.mailer.SendOTP(ctx, user.Email, code, user.FirstName); err != nil {
		// Compensating rollback: an unverified record nobody can verify is
		// meaningless, so undo the create rather than strand it.
		if delErr := s.users.Delete(user.ID); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to roll back registration after email failure",
				"user_id", user.ID, "error", delErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}
	return user, nil
}

// VerifyOTP consumes the code atomically. The classification reads are
// advisory only; the conditional update decides the race.
func (s *RegistrationService) VerifyOTP(ctx context.Context, email, code string) (*domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, "", fmt.Errorf("%w: email and otp are required", ErrValidation)
	}

	user, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", err
	}
	if user.Verified {
		return nil, "", ErrAlreadyVerified
	}
	if user.OTP == nil || *user.OTP != code {
		return nil, "", ErrInvalidOTP
	}
	now := time.Now().UTC()
	if user.OTPExpiry == nil || now.After(*user.OTPExpiry) {
		return nil, "", ErrOTPExpired
	}

	verified, err := s.users.ConsumeOTP(email, code, now)
	if err != nil {
		if errors.Is(err, repository.ErrOTPInvalid) {
			// Lost the race or the code was superseded between read and
			// update. Reclassify from current state.
			if fresh, readErr := s.users.FindByEmail(email); readErr == nil && fresh.Verified {
				return nil, "", ErrAlreadyVerified
			}
			return nil, "", ErrInvalidOTP
		}
		return nil, "", err
	}

	// Best effort: a failed welcome email never un-verifies anyone.
	if err := s.mailer.SendWelcome(ctx, verified.Email, verified.FirstName); err != nil {
		s.logger.WarnContext(ctx, "welcome email failed", "user_id", verified.ID, "error", err)
	}

	token, err := s.jwtMgr.Sign(strconv.FormatUint(uint64(verified.ID), 10),
		verified.Username, verified.Email, security.RoleUser, s.cfg.SessionTTL)
	if err != nil {
		return nil, "", err
	}
	return verified, token, nil
}

// ResendOTP overwrites the previous code after the server-side cooldown has
// elapsed. The cooldown lives in the conditional update, not in handler
// state.
func (s *RegistrationService) ResendOTP(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}

	user, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.Verified {
		return ErrAlreadyVerified
	}

	code, err := security.NewOTP()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := s.users.ReplaceOTP(email, code, now.Add(s.cfg.OTPTTL), now, s.cfg.OTPResendCooldown); err != nil {
		if errors.Is(err, repository.ErrResendThrottled) {
			return ErrResendCooldown
		}
		return err
	}
	if err := s.mailer.SendOTP(ctx, user.Email, code, user.FirstName); err != nil {
		return fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}
	return nil
}

func validateRegistration(in RegisterInput) error {
	if l := len(in.Username); l < 3 || l > 20 {
		return fmt.Errorf("%w: username must be 3-20 characters", ErrValidation)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if len(in.Password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	return nil
}
