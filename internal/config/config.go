// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const devJWTSecret = "dev-jwt-secret"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `envconfig:"SERVER"`
	Database DatabaseConfig `envconfig:"DB"`
	JWT      JWTConfig      `envconfig:"JWT"`
	Redis    RedisConfig    `envconfig:"REDIS"`
	Cache    CacheConfig    `envconfig:"CACHE"`
	Log      LogConfig      `envconfig:"LOG"`
	App      AppConfig      `envconfig:"APP"`
}

// ServerConfig holds HTTP server settings. PORT is read when SERVER_PORT is unset.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `split_words:"true" default:"15s"`
	WriteTimeout    time.Duration `split_words:"true" default:"15s"`
	IdleTimeout     time.Duration `split_words:"true" default:"60s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
}

// DatabaseConfig holds connection settings. Driver is "postgres" or "sqlite".
type DatabaseConfig struct {
	Driver   string `default:"postgres"`
	Host     string `default:"localhost"`
	Port     int    `default:"5432"`
	User     string `default:"quotes"`
	Password string `default:"quotes"`
	Name     string `default:"quotes"`
	SSLMode  string `default:"disable"`
	// Path is the sqlite database file.
	Path  string `default:"quotes.db"`
	Debug bool
}

// JWTConfig holds the bearer token verification secret.
type JWTConfig struct {
	Secret string
}

// RedisConfig enables the shared rule cache when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CacheConfig struct {
	RuleTTL    time.Duration `split_words:"true" default:"5m"`
	ProfileTTL time.Duration `split_words:"true" default:"5m"`
}

type LogConfig struct {
	Level  string `default:"info"`
	Format string `default:"json"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool   `envconfig:"DEV"`
	Migrations bool   `envconfig:"MIGRATIONS"`
	AdminEmail string `envconfig:"ADMIN_EMAIL"`
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// Load reads configuration from environment variables.
// Defaults suit local development; JWT_SECRET is mandatory outside DEV.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return errors.Errorf("config: unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.JWT.Secret == "" {
		if !c.App.Dev {
			return errors.New("config: JWT_SECRET is required")
		}
		c.JWT.Secret = devJWTSecret
	}
	if c.Cache.RuleTTL < 0 || c.Cache.ProfileTTL < 0 {
		return errors.New("config: cache ttl must not be negative")
	}
	return nil
}
