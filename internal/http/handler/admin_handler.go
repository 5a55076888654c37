package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/globetrotter/identity-service/internal/http/middleware"
	"github.com/globetrotter/identity-service/internal/http/response"
	"github.com/globetrotter/identity-service/internal/observability"
	"github.com/globetrotter/identity-service/internal/service"
)

type AdminHandler struct {
	admins service.AdminServiceInterface
	logger *slog.Logger
}

func NewAdminHandler(admins service.AdminServiceInterface, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admins: admins, logger: logger}
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "error"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "admin_login", status, time.Since(start))
	}()

	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, r, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON", nil)
		return
	}

	token, identity, err := h.admins.Login(in.Username, in.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			observability.RecordAdminLogin(r.Context(), "rejected")
			observability.Audit(r, "admin.login.rejected")
			response.Error(w, r, http.StatusUnauthorized, "invalid_credentials", "Invalid admin credentials", nil)
			return
		}
		observability.RecordAdminLogin(r.Context(), "error")
		h.logger.ErrorContext(r.Context(), "admin login failed", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "internal_error", "Login failed", nil)
		return
	}

	status = "ok"
	observability.RecordAdminLogin(r.Context(), "accepted")
	observability.Audit(r, "admin.login.accepted", slog.String("username", identity.Username))
	response.JSON(w, r, http.StatusOK, map[string]any{
		"token": token,
		"admin": identity,
	})
}

// Auth reports whether the presented token grants admin access. The bearer
// check itself happens in the RequireAdmin middleware.
func (h *AdminHandler) Auth(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.AdminFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "missing_token", "Authorization header with bearer token is required", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"authenticated": true,
		"admin":         identity,
	})
}
