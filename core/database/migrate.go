package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/sroki/core/logger"
)

// RunMigrations applies all up migrations found under the driver directory of src
// (for example "sqlite/0001_create_reminders.up.sql").
func RunMigrations(cfg Config, src fs.FS) error {
	if err := cfg.Normalize(); err != nil {
		return err
	}
	if src == nil {
		return errors.New("migrate: nil source")
	}
	ctx := context.Background()

	set := scanMigrations(src, cfg.Driver)
	logger.Debug(ctx, "db.migrate", "resolve",
		append([]slog.Attr{slog.String("status", "ok"), slog.String("path", cfg.Driver)}, set.attrs()...)...,
	)

	source, err := iofs.New(src, cfg.Driver)
	if err != nil {
		return migrateFailed(ctx, "init", fmt.Errorf("migrate: open %s: %w", cfg.Driver, err))
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL(cfg))
	if err != nil {
		return migrateFailed(ctx, "init", fmt.Errorf("migrate: init: %w", err))
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn(ctx, "db.migrate", "close",
				slog.String("status", "fail"),
				slog.String("err", errors.Join(srcErr, dbErr).Error()),
			)
		}
	}()

	from := currentVersion(m)
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return migrateFailed(ctx, "apply", fmt.Errorf("migrate: up: %w", err))
	}
	to := currentVersion(m)

	applied := set.between(from, to)
	if len(applied.names) > 0 {
		logger.Debug(ctx, "db.migrate", "apply",
			append([]slog.Attr{slog.String("status", "ok")}, applied.attrs()...)...,
		)
	}
	logger.Info(ctx, "db.migrate", "summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", from),
		slog.Uint64("to_ver", to),
		slog.Int("files", len(applied.names)),
		slog.Duration("took", logger.Took(start)),
	)
	return nil
}

// currentVersion is 0 for a database that has never been migrated.
func currentVersion(m *migrate.Migrate) uint64 {
	v, _, err := m.Version()
	if err != nil {
		return 0
	}
	return uint64(v)
}

func migrateFailed(ctx context.Context, event string, err error) error {
	logger.Error(ctx, "db.migrate", event,
		slog.String("status", "fail"),
		slog.String("err", err.Error()),
	)
	return err
}

func databaseURL(cfg Config) string {
	if cfg.Driver == DriverSQLite {
		return "sqlite://" + cfg.Path
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     "/" + cfg.Name,
		RawQuery: "sslmode=" + url.QueryEscape(cfg.SSLMode),
	}
	return u.String()
}

// migrationSet is the sorted list of up files in one driver directory.
type migrationSet struct {
	names []string
}

func scanMigrations(src fs.FS, dir string) migrationSet {
	entries, err := fs.ReadDir(src, dir)
	if err != nil {
		return migrationSet{}
	}
	var set migrationSet
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			set.names = append(set.names, e.Name())
		}
	}
	slices.Sort(set.names)
	return set
}

// between keeps the files with from < version <= to.
func (s migrationSet) between(from, to uint64) migrationSet {
	var out migrationSet
	for _, name := range s.names {
		if v := fileVersion(name); v > from && v <= to {
			out.names = append(out.names, name)
		}
	}
	return out
}

func (s migrationSet) attrs() []slog.Attr {
	attrs := []slog.Attr{slog.Int("files_total", len(s.names))}
	preview, truncated := logger.Preview(s.names, 6)
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}

func fileVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}
