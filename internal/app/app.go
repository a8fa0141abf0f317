// Package app wires the reminder bot together from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/sroki/core/bootstrap"
	coreconfig "github.com/m3rciful/sroki/core/config"
	"github.com/m3rciful/sroki/core/logger"
	coretelegram "github.com/m3rciful/sroki/core/telegram"
	tgsender "github.com/m3rciful/sroki/core/telegram/sender"
	"github.com/m3rciful/sroki/core/telegram/state"
	"github.com/m3rciful/sroki/internal/bot"
	"github.com/m3rciful/sroki/internal/config"
	"github.com/m3rciful/sroki/internal/conversation"
	"github.com/m3rciful/sroki/internal/ops"
	"github.com/m3rciful/sroki/internal/reminder"
	"github.com/m3rciful/sroki/internal/sweep"
	"github.com/m3rciful/sroki/migrations"
)

const janitorInterval = time.Minute

// Replies are retried twice on dial errors, timeouts and flood waits.
var replySender = tgsender.Options{MaxRetries: 2}

// App holds the long-lived components of the bot.
type App struct {
	cfg *config.Config
	db  *sqlx.DB

	Store     *reminder.SQLStore
	Sessions  *conversation.Sessions
	Engine    *conversation.Engine
	Notifier  *bot.ChannelNotifier
	Scheduler *sweep.Scheduler
	Handlers  *bot.Handlers

	stop  context.CancelFunc
	group *errgroup.Group
}

// Options customise bootstrapping; zero values use the real implementations.
type Options struct {
	LoggerInit func(*coreconfig.Config) error
	Now        func() time.Time
}

// New initialises logging, opens the database, applies migrations and builds
// the store, the conversation engine, the sweeps and the bot handlers.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: migrations.FS,
		LoggerInit: opts.LoggerInit,
	})
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, db: res.DB}
	a.Store = reminder.NewSQLStore(res.DB)
	a.Sessions = state.NewMemoryManager[conversation.Session](cfg.Reminders.ConversationTTL)
	a.Engine = conversation.New(a.Store, a.Sessions)
	a.Notifier = bot.NewChannelNotifier(cfg.Reminders.ChannelID)
	a.Scheduler = sweep.New(a.Store, a.Notifier, sweep.Options{
		DueInterval:       cfg.Reminders.DueInterval,
		LookaheadInterval: cfg.Reminders.LookaheadInterval,
		LookaheadWindow:   cfg.Reminders.LookaheadWindow,
		SendTimeout:       cfg.Reminders.SendTimeout,
		Location:          cfg.Reminders.Location(),
		Now:               opts.Now,
	})
	a.Handlers = bot.NewHandlers(a.Engine, a.Store, a.Scheduler, bot.Options{
		PageSize: cfg.Reminders.PageSize,
	})
	return a, nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Close releases the database.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// DialTelegram attaches a send-only client for channel notices. Its HTTP
// timeout matches the sweep's per-notice deadline.
func (a *App) DialTelegram() error {
	b, err := coretelegram.DialSender(&a.cfg.Config, a.cfg.Reminders.SendTimeout)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.Notifier.Attach(b)
	return nil
}

// TelegramRunOptions builds the bot runtime with the background tasks hooked
// to its lifecycle.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	if err := a.Handlers.Register(reg); err != nil {
		return coretelegram.RunOptions{}, err
	}
	return coretelegram.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    reg,
		Dispatcher:  replySender,
		Middlewares: a.Handlers.Middlewares(&a.cfg.Config),
		Routes:      a.Handlers.Routes(reg, a.cfg.Telegram.AdminID),
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt coretelegram.Runtime) error {
	if rt.Bot != nil {
		// Notices get their own client; the polling one waits far longer than a notice may.
		if err := a.DialTelegram(); err != nil {
			return err
		}
	}
	a.startBackground(ctx)
	return nil
}

func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	err := a.stopBackground()
	a.Notifier.Attach(nil)
	if cerr := a.Close(); cerr != nil {
		logger.Warn(ctx, "app", "db.close",
			slog.String("status", "fail"),
			slog.String("err", cerr.Error()),
		)
	}
	return err
}

// startBackground runs the sweeps, the session janitor and the ops server until stopBackground.
func (a *App) startBackground(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	g, gctx := errgroup.WithContext(ctx)
	a.stop, a.group = cancel, g

	g.Go(func() error { return a.Scheduler.Run(gctx) })
	g.Go(func() error { return a.Sessions.RunJanitor(gctx, janitorInterval) })
	if listen := a.cfg.Ops.Listen; listen != "" {
		g.Go(func() error { return ops.Serve(gctx, listen, ops.NewHandler(a.Store)) })
	}
	logger.Info(ctx, "app", "background.start", slog.String("status", "ok"))
}

func (a *App) stopBackground() error {
	if a.group == nil {
		return nil
	}
	a.stop()
	err := a.group.Wait()
	a.group, a.stop = nil, nil
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(context.Background(), "app", "background.stop",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return err
	}
	logger.Info(context.Background(), "app", "background.stop", slog.String("status", "ok"))
	return nil
}
