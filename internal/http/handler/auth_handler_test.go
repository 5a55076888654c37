package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/globetrotter/identity-service/internal/domain"
	"github.com/globetrotter/identity-service/internal/service"
)

type fakeRegistrations struct {
	registerErr error
	verifyErr   error
	resendErr   error
	user        *domain.User
	token       string
}

func (f *fakeRegistrations) Register(_ context.Context, _ service.RegisterInput) (*domain.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.user, nil
}

func (f *fakeRegistrations) VerifyOTP(_ context.Context, _, _ string) (*domain.User, string, error) {
	if f.verifyErr != nil {
		return nil, "", f.verifyErr
	}
	return f.user, f.token, nil
}

func (f *fakeRegistrations) ResendOTP(_ context.Context, _ string) error {
	return f.resendErr
}

type fakeResets struct {
	requestErr error
	verifyErr  error
	resetErr   error
	result     *service.ResetRequestResult
}

func (f *fakeResets) RequestReset(_ context.Context, _ string) (*service.ResetRequestResult, error) {
	if f.requestErr != nil {
		return nil, f.requestErr
	}
	return f.result, nil
}

func (f *fakeResets) VerifyResetToken(_ context.Context, _ string) error { return f.verifyErr }

func (f *fakeResets) ResetPassword(_ context.Context, _, _ string) error { return f.resetErr }

// capturingResets records the arguments the handler hands to the service.
type capturingResets struct {
	token    string
	password string
}

func (c *capturingResets) RequestReset(_ context.Context, _ string) (*service.ResetRequestResult, error) {
	return &service.ResetRequestResult{}, nil
}

func (c *capturingResets) VerifyResetToken(_ context.Context, _ string) error { return nil }

func (c *capturingResets) ResetPassword(_ context.Context, token, password string) error {
	c.token = token
	c.password = password
	return nil
}

func newAuthHandler(reg *fakeRegistrations, res service.PasswordResetServiceInterface) *AuthHandler {
	return NewAuthHandler(reg, res, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func doJSON(t *testing.T, h http.HandlerFunc, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, payload
}

func errorCode(t *testing.T, payload map[string]any) string {
	t.Helper()
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %v", payload)
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestRegisterHandler(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		h := newAuthHandler(&fakeRegistrations{user: &domain.User{ID: 1, Email: "a@example.com"}}, &fakeResets{})
		rec, payload := doJSON(t, h.Register, `{"username":"traveler","email":"a@example.com","password":"hunter22"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", rec.Code)
		}
		if payload["requiresVerification"] != true {
			t.Fatalf("expected requiresVerification true, got %v", payload)
		}
		if payload["email"] != "a@example.com" {
			t.Fatalf("expected email echoed, got %v", payload)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		h := newAuthHandler(&fakeRegistrations{}, &fakeResets{})
		rec, payload := doJSON(t, h.Register, `{not json`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if errorCode(t, payload) != "invalid_body" {
			t.Fatalf("unexpected payload %v", payload)
		}
	})

	t.Run("error mapping", func(t *testing.T) {
		cases := []struct {
			name     string
			err      error
			status   int
			wantCode string
		}{
			{"validation", service.ErrValidation, http.StatusBadRequest, "validation_failed"},
			{"duplicate", service.ErrDuplicateIdentity, http.StatusBadRequest, "duplicate_identity"},
			{"email delivery", service.ErrEmailDelivery, http.StatusInternalServerError, "email_delivery_failed"},
			{"internal", io.ErrUnexpectedEOF, http.StatusInternalServerError, "internal_error"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				h := newAuthHandler(&fakeRegistrations{registerErr: tc.err}, &fakeResets{})
				rec, payload := doJSON(t, h.Register, `{"username":"traveler","email":"a@example.com","password":"hunter22"}`)
				if rec.Code != tc.status {
					t.Fatalf("status = %d, want %d", rec.Code, tc.status)
				}
				if got := errorCode(t, payload); got != tc.wantCode {
					t.Fatalf("code = %q, want %q", got, tc.wantCode)
				}
			})
		}
	})
}

func TestVerifyOTPHandler(t *testing.T) {
	t.Run("verified returns user and token", func(t *testing.T) {
		h := newAuthHandler(&fakeRegistrations{
			user:  &domain.User{ID: 7, Username: "traveler", Email: "a@example.com", Verified: true},
			token: "signed.jwt.value",
		}, &fakeResets{})
		rec, payload := doJSON(t, h.VerifyOTP, `{"email":"a@example.com","otp":"123456"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if payload["token"] != "signed.jwt.value" {
			t.Fatalf("expected token in response, got %v", payload)
		}
		user, ok := payload["user"].(map[string]any)
		if !ok {
			t.Fatalf("expected user object, got %v", payload)
		}
		if _, leaked := user["passwordHash"]; leaked {
			t.Fatal("password hash leaked in response")
		}
		if _, leaked := user["otp"]; leaked {
			t.Fatal("otp leaked in response")
		}
	})

	t.Run("error mapping", func(t *testing.T) {
		cases := []struct {
			name     string
			err      error
			status   int
			wantCode string
		}{
			{"not found", service.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
			{"already verified", service.ErrAlreadyVerified, http.StatusBadRequest, "already_verified"},
			{"expired", service.ErrOTPExpired, http.StatusBadRequest, "otp_expired"},
			{"invalid", service.ErrInvalidOTP, http.StatusBadRequest, "otp_invalid"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				h := newAuthHandler(&fakeRegistrations{verifyErr: tc.err}, &fakeResets{})
				rec, payload := doJSON(t, h.VerifyOTP, `{"email":"a@example.com","otp":"123456"}`)
				if rec.Code != tc.status {
					t.Fatalf("status = %d, want %d", rec.Code, tc.status)
				}
				if got := errorCode(t, payload); got != tc.wantCode {
					t.Fatalf("code = %q, want %q", got, tc.wantCode)
				}
			})
		}
	})
}

func TestResendOTPHandler(t *testing.T) {
	t.Run("sent", func(t *testing.T) {
		h := newAuthHandler(&fakeRegistrations{}, &fakeResets{})
		rec, _ := doJSON(t, h.ResendOTP, `{"email":"a@example.com"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("cooldown maps to 429", func(t *testing.T) {
		h := newAuthHandler(&fakeRegistrations{resendErr: service.ErrResendCooldown}, &fakeResets{})
		rec, payload := doJSON(t, h.ResendOTP, `{"email":"a@example.com"}`)
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("status = %d, want 429", rec.Code)
		}
		if errorCode(t, payload) != "resend_throttled" {
			t.Fatalf("unexpected payload %v", payload)
		}
	})
}

func TestForgotPasswordHandler(t *testing.T) {
	t.Run("hidden token by default", func(t *testing.T) {
		h := newAuthHandler(&fakeRegistrations{}, &fakeResets{result: &service.ResetRequestResult{}})
		rec, payload := doJSON(t, h.ForgotPassword, `{"email":"a@example.com"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if _, present := payload["token"]; present {
			t.Fatal("token must not appear unless exposure is configured")
		}
	})

	t.Run("exposed token in test mode", func(t *testing.T) {
		h := newAuthHandler(&fakeRegistrations{}, &fakeResets{result: &service.ResetRequestResult{Token: "raw-token", Exposed: true}})
		rec, payload := doJSON(t, h.ForgotPassword, `{"email":"a@example.com"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if payload["token"] != "raw-token" {
			t.Fatalf("expected exposed token, got %v", payload)
		}
	})

	t.Run("unknown email maps to 404", func(t *testing.T) {
		h := newAuthHandler(&fakeRegistrations{}, &fakeResets{requestErr: service.ErrUserNotFound})
		rec, payload := doJSON(t, h.ForgotPassword, `{"email":"ghost@example.com"}`)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		if errorCode(t, payload) != "user_not_found" {
			t.Fatalf("unexpected payload %v", payload)
		}
	})
}

func TestVerifyResetTokenHandler(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		h := newAuthHandler(&fakeRegistrations{}, &fakeResets{})
		rec, payload := doJSON(t, h.VerifyResetToken, `{"token":"abc"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if payload["valid"] != true {
			t.Fatalf("expected valid true, got %v", payload)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		h := newAuthHandler(&fakeRegistrations{}, &fakeResets{verifyErr: service.ErrInvalidResetToken})
		rec, payload := doJSON(t, h.VerifyResetToken, `{"token":"abc"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if errorCode(t, payload) != "reset_token_invalid" {
			t.Fatalf("unexpected payload %v", payload)
		}
	})
}

func TestResetPasswordHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := newAuthHandler(&fakeRegistrations{}, &fakeResets{})
		rec, payload := doJSON(t, h.ResetPassword, `{"token":"abc","password":"hunter22"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if payload["success"] != true {
			t.Fatalf("expected success true, got %v", payload)
		}
	})

	t.Run("password field is the request contract", func(t *testing.T) {
		// The web client sends {token, password}; any other field name must
		// not be silently accepted in its place.
		captured := &capturingResets{}
		h := newAuthHandler(&fakeRegistrations{}, captured)
		rec, _ := doJSON(t, h.ResetPassword, `{"token":"abc","password":"a-new-password"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if captured.password != "a-new-password" {
			t.Fatalf("service received password %q", captured.password)
		}
	})

	t.Run("burned token", func(t *testing.T) {
		h := newAuthHandler(&fakeRegistrations{}, &fakeResets{resetErr: service.ErrInvalidResetToken})
		rec, payload := doJSON(t, h.ResetPassword, `{"token":"abc","password":"hunter22"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if errorCode(t, payload) != "reset_token_invalid" {
			t.Fatalf("unexpected payload %v", payload)
		}
	})
}
