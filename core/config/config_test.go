package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestNormalizeRunMode(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: " Polling "}}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("RunMode = %q", cfg.Telegram.RunMode)
	}

	cfg = &Config{Telegram: TelegramConfig{Token: "t", RunMode: "webhook"}, Webhook: WebhookConfig{URL: "https://x"}}
	err := Normalize(cfg)
	if err == nil || !strings.Contains(err.Error(), "webhook.listen, webhook.port") {
		t.Fatalf("err = %v", err)
	}

	cfg = &Config{Telegram: TelegramConfig{Token: "t", RunMode: "carrier-pigeon"}}
	if err := Normalize(cfg); err == nil {
		t.Fatal("unknown run mode accepted")
	}
	if err := Normalize(&Config{}); err == nil {
		t.Fatal("missing token accepted")
	}
}

func TestNormalizeExcludes(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "t"},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{" Callback", "", "message"}},
	}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !slices.Equal(cfg.RateLimit.ExcludeUpdates, []string{UpdateCallback, UpdateMessage}) {
		t.Fatalf("ExcludeUpdates = %q", cfg.RateLimit.ExcludeUpdates)
	}

	cfg.RateLimit.ExcludeUpdates = []string{"edited_message"}
	if err := Normalize(cfg); err == nil {
		t.Fatal("unknown update kind accepted")
	}
}

func TestLoadEnvOverYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "telegram:\n  token: file\nlogging:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BOT_TOKEN", "env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "env" || cfg.Logging.Level != "debug" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestDecodeRejectsBrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("telegram: ["), 0o600); err != nil {
		t.Fatal(err)
	}
	var cfg Config
	if err := Decode(path, &cfg); err == nil {
		t.Fatal("broken YAML accepted")
	}
}
