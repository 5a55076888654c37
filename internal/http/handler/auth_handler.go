package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/globetrotter/identity-service/internal/http/response"
	"github.com/globetrotter/identity-service/internal/observability"
	"github.com/globetrotter/identity-service/internal/service"
)

// AuthHandler exposes the registration, verification and password-reset
// endpoints.
type AuthHandler struct {
	registrations service.RegistrationServiceInterface
	resets        service.PasswordResetServiceInterface
	logger        *slog.Logger
}

func NewAuthHandler(
	registrations service.RegistrationServiceInterface,
	resets service.PasswordResetServiceInterface,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{registrations: registrations, resets: resets, logger: logger}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "error"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "register", status, time.Since(start))
	}()

	var in service.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, r, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON", nil)
		return
	}

	user, err := h.registrations.Register(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			observability.RecordRegistration(r.Context(), "validation_failed")
			response.Error(w, r, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		case errors.Is(err, service.ErrDuplicateIdentity):
			observability.RecordRegistration(r.Context(), "duplicate")
			response.Error(w, r, http.StatusBadRequest, "duplicate_identity", "Username or email is already registered", nil)
		case errors.Is(err, service.ErrEmailDelivery):
			observability.RecordRegistration(r.Context(), "email_failed")
			h.logger.ErrorContext(r.Context(), "registration email failed", "error", err)
			response.Error(w, r, http.StatusInternalServerError, "email_delivery_failed", "Could not send verification email, please try again", nil)
		default:
			observability.RecordRegistration(r.Context(), "error")
			h.logger.ErrorContext(r.Context(), "registration failed", "error", err)
			response.Error(w, r, http.StatusInternalServerError, "internal_error", "Registration failed", nil)
		}
		return
	}

	status = "ok"
	observability.RecordRegistration(r.Context(), "created")
	observability.Audit(r, "user.registered", slog.Uint64("user_id", uint64(user.ID)), slog.String("email", user.Email))
	response.JSON(w, r, http.StatusCreated, map[string]any{
		"message":              "Registration successful. Please verify your email with the OTP we sent you.",
		"email":                user.Email,
		"requiresVerification": true,
	})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "error"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "verify_otp", status, time.Since(start))
	}()

	var in struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, r, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON", nil)
		return
	}

	user, token, err := h.registrations.VerifyOTP(r.Context(), in.Email, in.OTP)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			observability.RecordOTPVerification(r.Context(), "validation_failed")
			response.Error(w, r, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		case errors.Is(err, service.ErrUserNotFound):
			observability.RecordOTPVerification(r.Context(), "not_found")
			response.Error(w, r, http.StatusNotFound, "user_not_found", "No account found for this email", nil)
		case errors.Is(err, service.ErrAlreadyVerified):
			observability.RecordOTPVerification(r.Context(), "already_verified")
			response.Error(w, r, http.StatusBadRequest, "already_verified", "Account is already verified", nil)
		case errors.Is(err, service.ErrOTPExpired):
			observability.RecordOTPVerification(r.Context(), "expired")
			response.Error(w, r, http.StatusBadRequest, "otp_expired", "OTP has expired, request a new one", nil)
		case errors.Is(err, service.ErrInvalidOTP):
			observability.RecordOTPVerification(r.Context(), "invalid")
			response.Error(w, r, http.StatusBadRequest, "otp_invalid", "OTP is incorrect", nil)
		default:
			observability.RecordOTPVerification(r.Context(), "error")
			h.logger.ErrorContext(r.Context(), "otp verification failed", "error", err)
			response.Error(w, r, http.StatusInternalServerError, "internal_error", "Verification failed", nil)
		}
		return
	}

	status = "ok"
	observability.RecordOTPVerification(r.Context(), "verified")
	observability.Audit(r, "user.verified", slog.Uint64("user_id", uint64(user.ID)), slog.String("email", user.Email))
	response.JSON(w, r, http.StatusOK, map[string]any{
		"message": "Email verified successfully",
		"user":    user,
		"token":   token,
	})
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "error"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "resend_otp", status, time.Since(start))
	}()

	var in struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, r, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON", nil)
		return
	}

	if err := h.registrations.ResendOTP(r.Context(), in.Email); err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			observability.RecordOTPResend(r.Context(), "validation_failed")
			response.Error(w, r, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		case errors.Is(err, service.ErrUserNotFound):
			observability.RecordOTPResend(r.Context(), "not_found")
			response.Error(w, r, http.StatusNotFound, "user_not_found", "No account found for this email", nil)
		case errors.Is(err, service.ErrAlreadyVerified):
			observability.RecordOTPResend(r.Context(), "already_verified")
			response.Error(w, r, http.StatusBadRequest, "already_verified", "Account is already verified", nil)
		case errors.Is(err, service.ErrResendCooldown):
			observability.RecordOTPResend(r.Context(), "throttled")
			response.Error(w, r, http.StatusTooManyRequests, "resend_throttled", "Please wait before requesting another OTP", nil)
		case errors.Is(err, service.ErrEmailDelivery):
			observability.RecordOTPResend(r.Context(), "email_failed")
			h.logger.ErrorContext(r.Context(), "otp resend email failed", "error", err)
			response.Error(w, r, http.StatusInternalServerError, "email_delivery_failed", "Could not send verification email, please try again", nil)
		default:
			observability.RecordOTPResend(r.Context(), "error")
			h.logger.ErrorContext(r.Context(), "otp resend failed", "error", err)
			response.Error(w, r, http.StatusInternalServerError, "internal_error", "Resend failed", nil)
		}
		return
	}

	status = "ok"
	observability.RecordOTPResend(r.Context(), "sent")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"message": "A new OTP has been sent to your email",
	})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "error"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "forgot_password", status, time.Since(start))
	}()

	var in struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, r, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON", nil)
		return
	}

	result, err := h.resets.RequestReset(r.Context(), in.Email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			observability.RecordPasswordResetEvent(r.Context(), "request", "validation_failed")
			response.Error(w, r, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		case errors.Is(err, service.ErrUserNotFound):
			observability.RecordPasswordResetEvent(r.Context(), "request", "not_found")
			response.Error(w, r, http.StatusNotFound, "user_not_found", "No account found for this email", nil)
		case errors.Is(err, service.ErrEmailDelivery):
			observability.RecordPasswordResetEvent(r.Context(), "request", "email_failed")
			h.logger.ErrorContext(r.Context(), "reset email failed", "error", err)
			response.Error(w, r, http.StatusInternalServerError, "email_delivery_failed", "Could not send reset email, please try again", nil)
		default:
			observability.RecordPasswordResetEvent(r.Context(), "request", "error")
			h.logger.ErrorContext(r.Context(), "reset request failed", "error", err)
			response.Error(w, r, http.StatusInternalServerError, "internal_error", "Password reset request failed", nil)
		}
		return
	}

	status = "ok"
	observability.RecordPasswordResetEvent(r.Context(), "request", "issued")
	observability.Audit(r, "password_reset.requested")

	payload := map[string]any{
		"message": "Password reset instructions sent to your email",
	}
	if result.Exposed {
		payload["token"] = result.Token
	}
	response.JSON(w, r, http.StatusOK, payload)
}

func (h *AuthHandler) VerifyResetToken(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "error"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "verify_reset_token", status, time.Since(start))
	}()

	var in struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, r, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON", nil)
		return
	}

	if err := h.resets.VerifyResetToken(r.Context(), in.Token); err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			observability.RecordPasswordResetEvent(r.Context(), "verify", "validation_failed")
			response.Error(w, r, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		case errors.Is(err, service.ErrInvalidResetToken):
			observability.RecordPasswordResetEvent(r.Context(), "verify", "invalid")
			response.Error(w, r, http.StatusBadRequest, "reset_token_invalid", "Reset token is invalid or expired", nil)
		default:
			observability.RecordPasswordResetEvent(r.Context(), "verify", "error")
			h.logger.ErrorContext(r.Context(), "reset token verification failed", "error", err)
			response.Error(w, r, http.StatusInternalServerError, "internal_error", "Token verification failed", nil)
		}
		return
	}

	status = "ok"
	observability.RecordPasswordResetEvent(r.Context(), "verify", "valid")
	response.JSON(w, r, http.StatusOK, map[string]any{"valid": true})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "error"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "reset_password", status, time.Since(start))
	}()

	var in struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, r, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON", nil)
		return
	}

	if err := h.resets.ResetPassword(r.Context(), in.Token, in.Password); err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			observability.RecordPasswordResetEvent(r.Context(), "reset", "validation_failed")
			response.Error(w, r, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		case errors.Is(err, service.ErrInvalidResetToken):
			observability.RecordPasswordResetEvent(r.Context(), "reset", "invalid")
			response.Error(w, r, http.StatusBadRequest, "reset_token_invalid", "Reset token is invalid or expired", nil)
		default:
			observability.RecordPasswordResetEvent(r.Context(), "reset", "error")
			h.logger.ErrorContext(r.Context(), "password reset failed", "error", err)
			response.Error(w, r, http.StatusInternalServerError, "internal_error", "Password reset failed", nil)
		}
		return
	}

	status = "ok"
	observability.RecordPasswordResetEvent(r.Context(), "reset", "completed")
	observability.Audit(r, "password_reset.completed")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"message": "Password has been reset successfully",
		"success": true,
	})
}
