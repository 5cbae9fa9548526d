package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/zawajapp/zawaj-core/internal/cache"
	"github.com/zawajapp/zawaj-core/internal/config"
	"github.com/zawajapp/zawaj-core/internal/notify"
)

// AppContext holds shared dependencies (DB, Redis, Logger, Notifier, Config).
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Notifier   notify.Notifier
	Config     *config.Config
}

// New creates a new AppContext.
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, notifier notify.Notifier) *AppContext {
	return &AppContext{
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Notifier:   notifier,
		Config:     cfg,
	}
}
