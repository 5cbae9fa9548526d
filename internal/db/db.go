package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zawajapp/zawaj-core/internal/config"
)

// NewDB initializes the database connection using DSN from config.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DB.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return db, nil
}

// Migrate ensures the schema is in sync with the models. Shared with the
// sqlite-backed test harness.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Profile{},
		&Preference{},
		&Interaction{},
		&Match{},
		&GuardianLink{},
		&UsageCounter{},
	)
}
