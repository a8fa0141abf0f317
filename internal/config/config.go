// Package config assembles the bot configuration from YAML and the environment.
package config

import (
	"fmt"
	"strings"
	"time"
	// Embedded zone database so reminders.timezone resolves on minimal images.
	_ "time/tzdata"

	coreconfig "github.com/m3rciful/sroki/core/config"
	coredatabase "github.com/m3rciful/sroki/core/database"
)

// RemindersConfig controls the sweeps, the listing and the conversations.
type RemindersConfig struct {
	// ChannelID is the fixed destination for due and discount notices.
	ChannelID         int64         `yaml:"channel_id" envconfig:"REMINDERS_CHANNEL_ID"`
	DueInterval       time.Duration `yaml:"due_interval" envconfig:"REMINDERS_DUE_INTERVAL"`
	LookaheadInterval time.Duration `yaml:"lookahead_interval" envconfig:"REMINDERS_LOOKAHEAD_INTERVAL"`
	LookaheadWindow   time.Duration `yaml:"lookahead_window" envconfig:"REMINDERS_LOOKAHEAD_WINDOW"`
	SendTimeout       time.Duration `yaml:"send_timeout" envconfig:"REMINDERS_SEND_TIMEOUT"`
	PageSize          int           `yaml:"page_size" envconfig:"REMINDERS_PAGE_SIZE"`
	ConversationTTL   time.Duration `yaml:"conversation_ttl" envconfig:"REMINDERS_CONVERSATION_TTL"`
	// Timezone decides what "today" means for the sweeps; empty means the host zone.
	Timezone string `yaml:"timezone" envconfig:"REMINDERS_TIMEZONE"`

	loc *time.Location
}

// Location returns the resolved timezone.
func (r RemindersConfig) Location() *time.Location {
	if r.loc == nil {
		return time.Local
	}
	return r.loc
}

// OpsConfig configures the operator HTTP endpoint; an empty Listen disables it.
type OpsConfig struct {
	Listen string `yaml:"listen" envconfig:"OPS_LISTEN"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database  coredatabase.Config `yaml:"database"`
	Reminders RemindersConfig     `yaml:"reminders"`
	Ops       OpsConfig           `yaml:"ops"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads and validates everything the bot needs, Telegram included.
func Load(path string) (*Config, error) {
	cfg, err := decode(path)
	if err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if cfg.Reminders.ChannelID == 0 {
		return nil, fmt.Errorf("reminders.channel_id is required")
	}
	return cfg, nil
}

// LoadStorage reads the configuration for offline commands that only touch the
// database; Telegram settings are not validated.
func LoadStorage(path string) (*Config, error) {
	return decode(path)
}

func decode(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Reminders.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *RemindersConfig) normalize() error {
	if r.DueInterval <= 0 {
		r.DueInterval = 24 * time.Hour
	}
	if r.LookaheadInterval <= 0 {
		r.LookaheadInterval = 604054 * time.Second
	}
	if r.LookaheadWindow <= 0 {
		r.LookaheadWindow = 14 * 24 * time.Hour
	}
	if r.LookaheadWindow < 24*time.Hour {
		return fmt.Errorf("reminders.lookahead_window must be at least one day, got %s", r.LookaheadWindow)
	}
	if r.SendTimeout <= 0 {
		r.SendTimeout = 5 * time.Second
	}
	if r.PageSize <= 0 {
		r.PageSize = 20
	}
	if r.ConversationTTL <= 0 {
		r.ConversationTTL = 30 * time.Minute
	}
	r.Timezone = strings.TrimSpace(r.Timezone)
	if r.Timezone == "" {
		r.loc = time.Local
		return nil
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return fmt.Errorf("invalid reminders.timezone %q: %w", r.Timezone, err)
	}
	r.loc = loc
	return nil
}
