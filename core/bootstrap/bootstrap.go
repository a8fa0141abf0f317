// Package bootstrap brings up the infrastructure a bot needs before it can serve.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/sroki/core/config"
	coredatabase "github.com/m3rciful/sroki/core/database"
	"github.com/m3rciful/sroki/core/logger"
)

// Options select what to bring up. The function fields replace the real
// steps in tests.
type Options struct {
	Config     *coreconfig.Config
	Database   coredatabase.Config
	Migrations fs.FS // nil skips migrations

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config, fs.FS) error
}

// Result is what Run brought up.
type Result struct {
	DB *sqlx.DB
}

// Run starts logging, opens the database and migrates it, in that order.
// Nothing stays open when a step fails.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config")
	}
	initLogger, connect, migrate := opts.LoggerInit, opts.Connect, opts.Migrate
	if initLogger == nil {
		initLogger = logger.InitLogger
	}
	if connect == nil {
		connect = coredatabase.Connect
	}
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}

	if err := initLogger(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}

	start := time.Now()
	db, err := connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database: %w", err)
	}
	if opts.Migrations != nil {
		if err := migrate(opts.Database, opts.Migrations); err != nil {
			return nil, errors.Join(fmt.Errorf("bootstrap: migrations: %w", err), db.Close())
		}
	}
	logger.Info(context.Background(), "bootstrap", "ready",
		slog.String("status", "ok"),
		slog.String("driver", opts.Database.Driver),
		slog.Bool("migrated", opts.Migrations != nil),
		slog.Duration("took", logger.Took(start)),
	)
	return &Result{DB: db}, nil
}

// Close releases what Run opened.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}
