package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/go-quotes/auth"
	"github.com/diewo77/go-quotes/internal/cache"
	"github.com/diewo77/go-quotes/internal/config"
	"github.com/diewo77/go-quotes/internal/db"
	"github.com/diewo77/go-quotes/internal/eligibility"
	"github.com/diewo77/go-quotes/internal/policy"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "quotes",
		Usage:   "parts quoting service",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file loaded before the environment is read"},
		},
		Before: func(c *cli.Context) error {
			// a missing file is fine; the environment may already be set
			_ = godotenv.Load(c.String("env-file"))
			return nil
		},
		Action: serve,
		Commands: []*cli.Command{
			{Name: "serve", Usage: "run the HTTP API (default)", Action: serve},
			{Name: "migrate", Usage: "apply schema migrations and exit", Action: migrateOnly},
			{Name: "seed", Usage: "create or promote the ADMIN_EMAIL user and exit", Action: seedOnly},
			{
				Name:   "token",
				Usage:  "print a bearer token for a user id",
				Action: token,
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "user", Required: true, Usage: "user id"},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "token lifetime"},
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// appEnv holds what every command needs.
type appEnv struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

func setup() (*appEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		return nil, errors.Wrap(err, "init logger")
	}
	conn, err := db.Connect(cfg.Database, zapLogger)
	if err != nil {
		return nil, err
	}
	return &appEnv{cfg: cfg, log: zapLogger, db: conn}, nil
}

func (rt *appEnv) close() {
	if sqlDB, err := rt.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = rt.log.Sync()
}

func migrateOnly(c *cli.Context) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()
	if err := db.Migrate(rt.db, rt.cfg, rt.log); err != nil {
		return errors.Wrap(err, "migrate")
	}
	rt.log.Info("migrations completed")
	return nil
}

func seedOnly(c *cli.Context) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()
	admin, err := db.Seed(c.Context, rt.db, rt.cfg.App.AdminEmail)
	if err != nil {
		return errors.Wrap(err, "seed")
	}
	if admin == nil {
		rt.log.Warn("ADMIN_EMAIL not set, nothing seeded")
		return nil
	}
	rt.log.Info("admin seeded", zap.Uint("user_id", admin.ID), zap.String("email", admin.Email))
	return nil
}

func token(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	signed, err := auth.New(cfg.JWT.Secret, nil).Sign(c.Uint("user"), c.Duration("ttl"))
	if err != nil {
		return errors.Wrap(err, "sign token")
	}
	fmt.Fprintln(c.App.Writer, signed)
	return nil
}

func serve(c *cli.Context) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()
	cfg, zapLogger := rt.cfg, rt.log

	zapLogger.Info("starting quotes service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.Bool("dev", cfg.App.Dev),
	)

	if err := db.Migrate(rt.db, cfg, zapLogger); err != nil {
		return errors.Wrap(err, "migrate")
	}
	if _, err := db.Seed(c.Context, rt.db, cfg.App.AdminEmail); err != nil {
		return errors.Wrap(err, "seed")
	}

	defaults, err := eligibility.LoadDefaults()
	if err != nil {
		return err
	}
	ruleCache, err := initRuleCache(c.Context, cfg, zapLogger)
	if err != nil {
		return err
	}

	app := NewApp(Deps{
		DB:        rt.db,
		Log:       zapLogger,
		JWTSecret: cfg.JWT.Secret,
		Gate:      policy.NewAuthGate(rt.db, cfg.Cache.ProfileTTL),
		RuleCache: ruleCache,
		Defaults:  defaults,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-quit:
	}
	zapLogger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("server exited")
	return nil
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}
	return zapCfg.Build()
}

// initRuleCache shares the rule set through Redis when REDIS_ADDR is set and
// keeps it in process otherwise.
func initRuleCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (cache.RuleCache, error) {
	if cfg.Redis.Addr == "" {
		log.Info("rule cache in memory", zap.Duration("ttl", cfg.Cache.RuleTTL))
		return cache.NewMemory(cfg.Cache.RuleTTL), nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "redis ping %s", cfg.Redis.Addr)
	}
	log.Info("rule cache in redis", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Cache.RuleTTL))
	return cache.NewRedis(rdb, cache.DefaultRedisKey, cfg.Cache.RuleTTL), nil
}
