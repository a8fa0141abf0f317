package bootstrap

import (
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/sroki/core/config"
	coredatabase "github.com/m3rciful/sroki/core/database"
)

func TestRunRequiresConfig(t *testing.T) {
	if _, err := Run(Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestRunStopsOnConnectFailure(t *testing.T) {
	boom := errors.New("boom")
	migrated := false
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		Migrations: fstest.MapFS{},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			return nil, boom
		},
		Migrate: func(coredatabase.Config, fs.FS) error {
			migrated = true
			return nil
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if migrated {
		t.Fatal("migrations must not run after a failed connect")
	}
}

func TestRunMigratesSQLite(t *testing.T) {
	dbCfg := coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: t.TempDir() + "/test.db"}
	src := fstest.MapFS{
		"sqlite/0001_init.up.sql":   {Data: []byte("CREATE TABLE t (id INTEGER PRIMARY KEY);")},
		"sqlite/0001_init.down.sql": {Data: []byte("DROP TABLE t;")},
	}
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   dbCfg,
		Migrations: src,
		LoggerInit: func(*coreconfig.Config) error { return nil },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer res.DB.Close()

	var n int
	if err := res.DB.Get(&n, "SELECT COUNT(*) FROM t"); err != nil {
		t.Fatalf("table t not created: %v", err)
	}
}

func TestRunClosesDatabaseWhenMigrationsFail(t *testing.T) {
	boom := errors.New("bad migration")
	var db *sqlx.DB
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: t.TempDir() + "/x.db"},
		Migrations: fstest.MapFS{},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Connect: func(cfg coredatabase.Config) (*sqlx.DB, error) {
			var err error
			db, err = coredatabase.Connect(cfg)
			return db, err
		},
		Migrate: func(coredatabase.Config, fs.FS) error { return boom },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if db == nil {
		t.Fatal("connect not called")
	}
	if pingErr := db.Ping(); pingErr == nil {
		t.Fatal("database left open after failed migrations")
	}
}

func TestResultCloseNil(t *testing.T) {
	var r *Result
	if err := r.Close(); err != nil {
		t.Fatalf("Close = %v", err)
	}
}
