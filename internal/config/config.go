package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Host         string
		Port         string
		Env          string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Ranking struct {
		TTL          time.Duration
		PoolCap      int
		DefaultLimit int
	}
}

// Load reads configuration from the environment, optionally merged with a
// local .env file. Missing keys fall back to development defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// .env is optional; real deployments rely on the environment only.
	_ = v.ReadInConfig()

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "15s")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_COMPONENT", "zawaj_core")
	v.SetDefault("LOG_SOURCE", false)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_USER", "root")
	v.SetDefault("DB_PASSWORD", "root")
	v.SetDefault("DB_NAME", "zawaj")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("RANKING_TTL", "24h")
	v.SetDefault("RANKING_POOL_CAP", 500)
	v.SetDefault("RANKING_DEFAULT_LIMIT", 20)

	cfg := &Config{}

	cfg.Server.Host = v.GetString("SERVER_HOST")
	cfg.Server.Port = v.GetString("SERVER_PORT")
	cfg.Server.Env = v.GetString("ENV")
	cfg.Server.ReadTimeout = v.GetDuration("SERVER_READ_TIMEOUT")
	cfg.Server.WriteTimeout = v.GetDuration("SERVER_WRITE_TIMEOUT")

	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Format = v.GetString("LOG_FORMAT")
	cfg.Log.Component = v.GetString("LOG_COMPONENT")
	cfg.Log.Source = v.GetBool("LOG_SOURCE")

	cfg.DB.DSN = v.GetString("MYSQL_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = v.GetString("DB_HOST")
		cfg.DB.Port = v.GetString("DB_PORT")
		cfg.DB.User = v.GetString("DB_USER")
		cfg.DB.Password = v.GetString("DB_PASSWORD")
		cfg.DB.Name = v.GetString("DB_NAME")

		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	cfg.Ranking.TTL = v.GetDuration("RANKING_TTL")
	cfg.Ranking.PoolCap = v.GetInt("RANKING_POOL_CAP")
	cfg.Ranking.DefaultLimit = v.GetInt("RANKING_DEFAULT_LIMIT")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the services cannot work without.
func (c *Config) Validate() error {
	if c.Ranking.TTL <= 0 {
		return fmt.Errorf("RANKING_TTL must be positive, got %s", c.Ranking.TTL)
	}
	if c.Ranking.PoolCap <= 0 {
		return fmt.Errorf("RANKING_POOL_CAP must be positive, got %d", c.Ranking.PoolCap)
	}
	if c.Ranking.DefaultLimit <= 0 {
		return fmt.Errorf("RANKING_DEFAULT_LIMIT must be positive, got %d", c.Ranking.DefaultLimit)
	}
	return nil
}
