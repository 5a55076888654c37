package service

import "errors"

// Error taxonomy shared by handlers for status mapping.
var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateIdentity  = errors.New("user with this email or username already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrAlreadyVerified    = errors.New("user is already verified")
	ErrInvalidOTP         = errors.New("invalid otp")
	ErrOTPExpired         = errors.New("otp has expired")
	ErrResendCooldown     = errors.New("otp was sent recently, wait before requesting another")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrEmailDelivery      = errors.New("failed to send email")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("insufficient role")
)
