package database

import (
	"slices"
	"strings"
	"testing"
	"testing/fstest"
)

func TestConfigNormalize(t *testing.T) {
	c := Config{Driver: " SQLite3 "}
	if err := c.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if c.Driver != DriverSQLite || c.Path != "reminders.db" || c.MaxConnections != 1 {
		t.Fatalf("sqlite defaults = %+v", c)
	}

	pg := Config{Driver: "pg", Host: "db", Name: "sroki", User: "u", Password: "p@ss"}
	if err := pg.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if pg.Port != "5432" || pg.SSLMode != "disable" || pg.MaxConnections != 5 {
		t.Fatalf("postgres defaults = %+v", pg)
	}
	if strings.Contains(pg.Target(), "p@ss") {
		t.Fatalf("Target leaks the password: %s", pg.Target())
	}
	if got := databaseURL(pg); got != "postgres://u:p%40ss@db:5432/sroki?sslmode=disable" {
		t.Fatalf("databaseURL = %s", got)
	}

	if err := (&Config{Driver: "mysql"}).Normalize(); err == nil {
		t.Fatal("unknown driver accepted")
	}
}

func TestMigrationSetBetween(t *testing.T) {
	src := fstest.MapFS{
		"sqlite/0002_b.up.sql":   {},
		"sqlite/0001_a.up.sql":   {},
		"sqlite/0001_a.down.sql": {},
		"sqlite/0003_c.up.sql":   {},
	}
	set := scanMigrations(src, "sqlite")
	if !slices.Equal(set.names, []string{"0001_a.up.sql", "0002_b.up.sql", "0003_c.up.sql"}) {
		t.Fatalf("names = %q", set.names)
	}
	if got := set.between(1, 3).names; !slices.Equal(got, []string{"0002_b.up.sql", "0003_c.up.sql"}) {
		t.Fatalf("between = %q", got)
	}
	if got := set.between(3, 3).names; len(got) != 0 {
		t.Fatalf("no-op between = %q", got)
	}
	if got := scanMigrations(src, "postgres").names; got != nil {
		t.Fatalf("missing dir = %q", got)
	}
}

func TestConnectAndMigrateSQLite(t *testing.T) {
	cfg := Config{Path: t.TempDir() + "/m.db"}
	src := fstest.MapFS{
		"sqlite/0001_init.up.sql":   {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY);")},
		"sqlite/0001_init.down.sql": {Data: []byte("DROP TABLE items;")},
	}
	if err := RunMigrations(cfg, src); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	// Second run is a no-op.
	if err := RunMigrations(cfg, src); err != nil {
		t.Fatalf("RunMigrations again: %v", err)
	}

	db, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()
	var mode string
	if err := db.Get(&mode, "PRAGMA journal_mode"); err != nil || mode != "wal" {
		t.Fatalf("journal_mode = %q, %v", mode, err)
	}
	if _, err := db.Exec("INSERT INTO items (id) VALUES (1)"); err != nil {
		t.Fatalf("items table missing: %v", err)
	}
}
