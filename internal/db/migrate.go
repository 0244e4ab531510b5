package db

import (
	"embed"

	migrate "github.com/golang-migrate/migrate/v4"
	// registers the postgres driver for golang-migrate
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/go-quotes/internal/config"
	"github.com/diewo77/go-quotes/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Models lists every persisted model.
func Models() []any {
	return []any{
		&models.User{},
		&models.Customer{},
		&models.Vehicle{},
		&models.Quote{},
		&models.QuoteAction{},
		&models.PartRule{},
	}
}

// AutoMigrate applies the gorm schema for every model.
func AutoMigrate(conn *gorm.DB) error {
	for _, m := range Models() {
		if err := conn.AutoMigrate(m); err != nil {
			return errors.Wrapf(err, "automigrate %T", m)
		}
	}
	return nil
}

// Migrate brings the schema up to date. With MIGRATIONS enabled on postgres
// the embedded SQL migrations run; otherwise gorm AutoMigrate is used.
func Migrate(conn *gorm.DB, cfg *config.Config, log *zap.Logger) error {
	if cfg.App.Migrations && cfg.Database.Driver == "postgres" {
		log.Info("running sql migrations")
		return RunSQLMigrations(cfg.Database.URL())
	}
	log.Info("running automigrate", zap.Int("models", len(Models())))
	if err := AutoMigrate(conn); err != nil {
		return err
	}
	for _, table := range []string{"users", "quotes", "quote_actions", "part_rules"} {
		if !conn.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// RunSQLMigrations applies the embedded migrations to the postgres database at url.
func RunSQLMigrations(url string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return errors.Wrap(err, "open embedded migrations")
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return errors.Wrap(err, "init migrate")
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migrate up")
	}
	return nil
}
