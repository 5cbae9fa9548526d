package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/zawajapp/zawaj-core/internal/app"
	"github.com/zawajapp/zawaj-core/internal/apperr"
	"github.com/zawajapp/zawaj-core/internal/config"
)

// Registrar is the common interface all HTTP services implement to attach
// their routes under the versioned API group.
type Registrar interface {
	Register(rg *gin.RouterGroup)
}

// NewEngine builds the gin engine, mounts health checking and registers all
// provided services under /v1.
func NewEngine(cfg *config.Config, appCtx *app.AppContext, registrars ...Registrar) *gin.Engine {
	if cfg.Server.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	engine.GET("/healthz", func(c *gin.Context) {
		if sqlDB, err := appCtx.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": "down"})
			return
		}
		if err := appCtx.RedisCache.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/v1")
	for _, r := range registrars {
		r.Register(v1)
	}

	return engine
}

// Start runs the HTTP server with the configured timeouts. Blocks until the
// listener fails.
func Start(cfg *config.Config, engine *gin.Engine) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return srv.ListenAndServe()
}

// CallerID extracts the explicit caller identity from the X-User-ID header.
// The core carries no ambient session: every operation names its caller.
func CallerID(c *gin.Context) (uint64, error) {
	raw := c.GetHeader("X-User-ID")
	if raw == "" {
		return 0, apperr.Validation("X-User-ID header is required")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("X-User-ID must be a valid user id")
	}
	return id, nil
}
