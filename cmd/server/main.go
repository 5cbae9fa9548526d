package main

import (
	"context"

	"github.com/zawajapp/zawaj-core/internal/app"
	"github.com/zawajapp/zawaj-core/internal/cache"
	"github.com/zawajapp/zawaj-core/internal/config"
	"github.com/zawajapp/zawaj-core/internal/db"
	"github.com/zawajapp/zawaj-core/internal/logger"
	"github.com/zawajapp/zawaj-core/internal/notify"
	"github.com/zawajapp/zawaj-core/internal/server"
	"github.com/zawajapp/zawaj-core/internal/service/interaction"
	"github.com/zawajapp/zawaj-core/internal/service/match"
	"github.com/zawajapp/zawaj-core/internal/service/quota"
	"github.com/zawajapp/zawaj-core/internal/service/ranking"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		return
	}

	logger.InitFromConfig(cfg)
	log := logger.L()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	appCtx := app.New(cfg, database, redisCache, log, notify.NewLogNotifier(log))

	if cfg.Server.Env == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	registrars := []server.Registrar{
		interaction.NewRegistrar(appCtx),
		match.NewRegistrar(appCtx),
		ranking.NewRegistrar(appCtx),
		quota.NewRegistrar(appCtx),
	}

	engine := server.NewEngine(cfg, appCtx, registrars...)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	log.Info("starting HTTP server", "addr", addr)

	if err := server.Start(cfg, engine); err != nil {
		log.Error("HTTP server stopped", "err", err)
	}
}
