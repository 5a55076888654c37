package database

import (
	"gorm.io/gorm"

	"github.com/globetrotter/identity-service/internal/domain"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
	)
}
