package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string
	BaseURL  string

	DatabaseURL string
	RedisURL    string

	JWTIssuer       string
	JWTSecret       string
	SessionTTL      time.Duration
	AdminSessionTTL time.Duration

	AdminUsername string
	AdminPassword string

	OTPTTL            time.Duration
	OTPResendCooldown time.Duration
	ResetTokenTTL     time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	EmailTimeout time.Duration
	// ExposeResetToken returns the raw reset token in the forgot-password
	// response when SMTP is not configured. Never enable in production.
	ExposeResetToken bool

	AuthRateLimitPerMin int
	APIRateLimitPerMin  int

	CORSAllowedOrigins []string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string
}

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Env:      env,
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		BaseURL:  getEnv("BASE_URL", "http://localhost:3000"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWTIssuer: getEnv("JWT_ISSUER", "globetrotter-identity"),
		JWTSecret: os.Getenv("JWT_SECRET"),

		AdminUsername: os.Getenv("ADMIN_USERNAME"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPPort:         getEnvInt("SMTP_PORT", 587),
		SMTPUsername:     os.Getenv("SMTP_USER"),
		SMTPPassword:     os.Getenv("SMTP_PASS"),
		SMTPFrom:         getEnv("FROM_EMAIL", "noreply@globetrotter.com"),
		SMTPFromName:     getEnv("FROM_NAME", "Globetrotter"),
		ExposeResetToken: getEnvBool("EXPOSE_RESET_TOKEN", false),

		AuthRateLimitPerMin: getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 30),
		APIRateLimitPerMin:  getEnvInt("API_RATE_LIMIT_PER_MIN", 120),

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "globetrotter-identity"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", true),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", true),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", true),
		OTELLogLevel:             strings.ToLower(getEnv("OTEL_LOG_LEVEL", "info")),
	}

	var err error
	if cfg.SessionTTL, err = getEnvDuration("SESSION_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.AdminSessionTTL, err = getEnvDuration("ADMIN_SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.OTPTTL, err = getEnvDuration("OTP_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.OTPResendCooldown, err = getEnvDuration("OTP_RESEND_COOLDOWN", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ResetTokenTTL, err = getEnvDuration("RESET_TOKEN_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.EmailTimeout, err = getEnvDuration("EMAIL_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsExportInterval, err = getEnvDuration("OTEL_METRICS_EXPORT_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SMTPConfigured reports whether an outbound email channel exists. When false
// the service falls back to the dev mailer, which only logs.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != ""
}

func (c *Config) IsTestMode() bool {
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "test", "development", "dev", "local":
		return true
	default:
		return false
	}
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	// No silent fallback secret. Outside test mode a missing or short signing
	// secret is a startup failure, not a default.
	if !c.IsTestMode() && len(c.JWTSecret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 chars")
	}
	if !c.IsTestMode() && (c.AdminUsername == "" || c.AdminPassword == "") {
		errs = append(errs, "ADMIN_USERNAME and ADMIN_PASSWORD are required")
	}
	if !c.IsTestMode() && c.ExposeResetToken {
		errs = append(errs, "EXPOSE_RESET_TOKEN must not be enabled outside test mode")
	}
	if c.SessionTTL <= 0 || c.SessionTTL > 30*24*time.Hour {
		errs = append(errs, "SESSION_TTL must be between 1s and 30d")
	}
	if c.AdminSessionTTL <= 0 || c.AdminSessionTTL > 7*24*time.Hour {
		errs = append(errs, "ADMIN_SESSION_TTL must be between 1s and 7d")
	}
	if c.OTPTTL <= 0 || c.OTPTTL > time.Hour {
		errs = append(errs, "OTP_TTL must be between 1s and 1h")
	}
	if c.OTPResendCooldown <= 0 || c.OTPResendCooldown > c.OTPTTL {
		errs = append(errs, "OTP_RESEND_COOLDOWN must be positive and not exceed OTP_TTL")
	}
	if c.ResetTokenTTL <= 0 || c.ResetTokenTTL > 24*time.Hour {
		errs = append(errs, "RESET_TOKEN_TTL must be between 1s and 24h")
	}
	if c.EmailTimeout <= 0 {
		errs = append(errs, "EMAIL_TIMEOUT must be > 0")
	}
	if c.AuthRateLimitPerMin <= 0 {
		errs = append(errs, "AUTH_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.APIRateLimitPerMin <= 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_MIN must be > 0")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
