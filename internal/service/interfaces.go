package service

import (
	"context"

	"github.com/globetrotter/identity-service/internal/domain"
)

type RegistrationServiceInterface interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	VerifyOTP(ctx context.Context, email, code string) (*domain.User, string, error)
	ResendOTP(ctx context.Context, email string) error
}

type PasswordResetServiceInterface interface {
	RequestReset(ctx context.Context, email string) (*ResetRequestResult, error)
	VerifyResetToken(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type AdminServiceInterface interface {
	Login(username, password string) (string, *AdminIdentity, error)
	Authenticate(raw string) (*AdminIdentity, error)
}
