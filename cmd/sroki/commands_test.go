package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m3rciful/sroki/internal/reminder"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		configPath = ""
	}()
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "sroki ") {
		t.Fatalf("output = %q", out)
	}
}

func TestPrintReminders(t *testing.T) {
	var buf bytes.Buffer
	items := []reminder.Reminder{
		{ID: 1, ChatID: 5, Text: "Молоко", DueDate: reminder.NewDate(2024, 3, 11)},
	}
	if err := printReminders(&buf, items, 3); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"ID", "11.03.2024", "Молоко", "1 of 3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestMigrateAndListAgainstSQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sroki.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	body := "logging:\n  stderr: true\ndatabase:\n  driver: sqlite\n  path: " + dbPath + "\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "migrate", "--config", cfgPath)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "migrations applied") {
		t.Fatalf("migrate output = %q", out)
	}

	configPath = cfgPath
	a, err := openApp(false, false)
	configPath = ""
	if err != nil {
		t.Fatal(err)
	}
	r, _ := reminder.New(5, "Хлеб", reminder.NewDate(2024, 3, 1))
	if _, err := a.Store.Insert(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	_ = a.Close()

	out, err = execute(t, "list", "--config", cfgPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "Хлеб") || !strings.Contains(out, "1 of 1") {
		t.Fatalf("list output = %q", out)
	}
}
