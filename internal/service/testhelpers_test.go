package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/globetrotter/identity-service/internal/config"
	"github.com/globetrotter/identity-service/internal/database"
	"github.com/globetrotter/identity-service/internal/repository"
	"github.com/globetrotter/identity-service/internal/security"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:               "test",
		BaseURL:           "http://localhost:3000",
		JWTIssuer:         "test-issuer",
		JWTSecret:         "0123456789abcdef0123456789abcdef",
		SessionTTL:        7 * 24 * time.Hour,
		AdminSessionTTL:   24 * time.Hour,
		AdminUsername:     "admin",
		AdminPassword:     "admin-secret",
		OTPTTL:            10 * time.Minute,
		OTPResendCooldown: time.Minute,
		ResetTokenTTL:     time.Hour,
	}
}

func testRepo(t *testing.T) repository.UserRepository {
	t.Helper()
	cfg := &config.Config{
		DatabaseURL: fmt.Sprintf("sqlite://file:svc_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
	}
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repository.NewUserRepository(db)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testJWT(t *testing.T) *security.JWTManager {
	t.Helper()
	m, err := security.NewJWTManager("0123456789abcdef0123456789abcdef", "test-issuer")
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	return m
}

type sentMail struct {
	kind  string
	email string
	code  string
	url   string
}

// fakeMailer records every dispatch and can be armed to fail.
type fakeMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	failOTP bool
	failAll bool
}

func (m *fakeMailer) SendOTP(_ context.Context, email, code, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll || m.failOTP {
		return errors.New("smtp unreachable")
	}
	m.sent = append(m.sent, sentMail{kind: "otp", email: email, code: code})
	return nil
}

func (m *fakeMailer) SendWelcome(_ context.Context, email, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("smtp unreachable")
	}
	m.sent = append(m.sent, sentMail{kind: "welcome", email: email})
	return nil
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, email, resetURL string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("smtp unreachable")
	}
	m.sent = append(m.sent, sentMail{kind: "reset", email: email, url: resetURL})
	return nil
}

func (m *fakeMailer) lastOTP(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == "otp" && m.sent[i].email == email {
			return m.sent[i].code
		}
	}
	t.Fatalf("no otp mail sent to %s", email)
	return ""
}

func (m *fakeMailer) lastResetURL(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == "reset" && m.sent[i].email == email {
			return m.sent[i].url
		}
	}
	t.Fatalf("no reset mail sent to %s", email)
	return ""
}

func (m *fakeMailer) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.kind == kind {
			n++
		}
	}
	return n
}
