package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/sroki/core/logger"
)

const (
	connectTimeout = 5 * time.Second
	// A freshly started Postgres container needs a while to accept connections.
	postgresWaitFor = 30 * time.Second
	postgresRetry   = 2 * time.Second
)

// sqlitePragmas run on the single SQLite connection right after it opens.
var sqlitePragmas = []string{
	"PRAGMA busy_timeout = 5000",
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = FULL",
	"PRAGMA foreign_keys = ON",
}

// Connect normalizes cfg, opens the pool and checks that the database answers.
func Connect(cfg Config) (*sqlx.DB, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	start := time.Now()

	if cfg.Driver == DriverPostgres {
		waitCtx, cancel := context.WithTimeout(context.Background(), postgresWaitFor)
		err := waitForPostgres(waitCtx, cfg.DSN(), postgresRetry)
		cancel()
		if err != nil {
			return nil, connectFailed(cfg, start, fmt.Errorf("db: postgres not ready: %w", err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, connectFailed(cfg, start, fmt.Errorf("db: connect: %w", err))
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)

	if cfg.Driver == DriverSQLite {
		for _, p := range sqlitePragmas {
			if _, err := db.ExecContext(ctx, p); err != nil {
				_ = db.Close()
				return nil, connectFailed(cfg, start, fmt.Errorf("db: %s: %w", p, err))
			}
		}
	}

	logger.Info(ctx, "db", "db.connect",
		slog.String("status", "ok"),
		slog.String("driver", cfg.Driver),
		slog.String("db", cfg.Target()),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("took", logger.Took(start)),
	)
	return db, nil
}

func connectFailed(cfg Config, start time.Time, err error) error {
	logger.Error(context.Background(), "db", "db.connect",
		slog.String("status", "fail"),
		slog.String("driver", cfg.Driver),
		slog.String("db", cfg.Target()),
		slog.Duration("took", logger.Took(start)),
		slog.String("err", err.Error()),
	)
	return err
}

// waitForPostgres pings dsn every retry until it answers or ctx ends.
func waitForPostgres(ctx context.Context, dsn string, retry time.Duration) error {
	tick := time.NewTicker(retry)
	defer tick.Stop()
	for {
		err := pingOnce(ctx, dsn)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-tick.C:
		}
	}
}

func pingOnce(ctx context.Context, dsn string) error {
	db, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}
