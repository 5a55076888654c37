package database

import (
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/globetrotter/identity-service/internal/config"
)

// Open connects to the configured store. A sqlite URL ("sqlite://path" or
// ":memory:") selects the embedded driver, anything else is postgres.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}
	if dsn, ok := sqliteDSN(cfg.DatabaseURL); ok {
		return gorm.Open(sqlite.Open(dsn), gormCfg)
	}
	return gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
}

func sqliteDSN(url string) (string, bool) {
	if strings.HasPrefix(url, "sqlite://") {
		return strings.TrimPrefix(url, "sqlite://"), true
	}
	if url == ":memory:" || strings.HasSuffix(url, ".db") {
		return url, true
	}
	return "", false
}
