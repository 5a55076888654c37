package di

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/globetrotter/identity-service/internal/app"
	"github.com/globetrotter/identity-service/internal/config"
	"github.com/globetrotter/identity-service/internal/database"
	"github.com/globetrotter/identity-service/internal/health"
	"github.com/globetrotter/identity-service/internal/http/handler"
	"github.com/globetrotter/identity-service/internal/http/middleware"
	"github.com/globetrotter/identity-service/internal/http/router"
	"github.com/globetrotter/identity-service/internal/observability"
	"github.com/globetrotter/identity-service/internal/repository"
	"github.com/globetrotter/identity-service/internal/security"
	"github.com/globetrotter/identity-service/internal/service"
)

const (
	argonTimeCost         = 3
	readinessProbeTimeout = 2 * time.Second
	devFallbackJWTSecret  = "insecure-local-dev-secret-0123456789abcdef"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewUserRepository,
)

var SecuritySet = wire.NewSet(
	provideJWTManager,
	provideHasher,
)

var ServiceSet = wire.NewSet(
	provideMailer,
	service.NewRegistrationService,
	service.NewPasswordResetService,
	service.NewAdminService,
	wire.Bind(new(service.RegistrationServiceInterface), new(*service.RegistrationService)),
	wire.Bind(new(service.PasswordResetServiceInterface), new(*service.PasswordResetService)),
	wire.Bind(new(service.AdminServiceInterface), new(*service.AdminService)),
)

var HTTPSet = wire.NewSet(
	handler.NewAuthHandler,
	handler.NewAdminHandler,
	provideRateLimiter,
	provideRouterDeps,
	router.New,
	provideHTTPServer,
)

var AppSet = wire.NewSet(app.New)

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

func provideJWTManager(cfg *config.Config) (*security.JWTManager, error) {
	secret := cfg.JWTSecret
	if secret == "" && cfg.IsTestMode() {
		secret = devFallbackJWTSecret
	}
	return security.NewJWTManager(secret, cfg.JWTIssuer)
}

func provideHasher() *security.Hasher {
	return security.NewHasher(argonTimeCost)
}

func provideMailer(cfg *config.Config, logger *slog.Logger) service.Mailer {
	if cfg.SMTPConfigured() {
		return service.NewInstrumentedMailer(service.NewSMTPMailer(cfg))
	}
	return service.NewInstrumentedMailer(service.NewDevMailer(logger))
}

func provideRateLimiter(cfg *config.Config, redisClient *redis.Client) middleware.Limiter {
	if redisClient != nil {
		return middleware.NewRedisLimiter(redisClient)
	}
	return middleware.NewLocalLimiter()
}

func provideReadinessProbeRunner(db *gorm.DB, redisClient *redis.Client) *health.ProbeRunner {
	checkers := make([]health.Checker, 0, 2)
	if c := health.NewDBChecker(db); c != nil {
		checkers = append(checkers, c)
	}
	if redisClient != nil {
		if c := health.NewRedisChecker(redisClient); c != nil {
			checkers = append(checkers, c)
		}
	}
	return health.NewProbeRunner(readinessProbeTimeout, checkers...)
}

func provideRouterDeps(
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	adminHandler *handler.AdminHandler,
	admins service.AdminServiceInterface,
	limiter middleware.Limiter,
	probes *health.ProbeRunner,
) router.Deps {
	return router.Deps{
		Cfg:     cfg,
		Auth:    authHandler,
		Admin:   adminHandler,
		Admins:  admins,
		Limiter: limiter,
		Probes:  probes,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
