package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	coreconfig "github.com/m3rciful/sroki/core/config"
	"github.com/m3rciful/sroki/core/logger"
	tghelpers "github.com/m3rciful/sroki/core/telegram/helpers"
	tgsender "github.com/m3rciful/sroki/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware is applied to every update via bot.Use, in slice order.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds a handler to a telebot endpoint: a command string or an On* constant.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions configure RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	Dispatcher  tgsender.Options
	Middlewares []Middleware
	Routes      []Route

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is handed to the lifecycle hooks.
type Runtime struct {
	// Bot is the live client; hooks use it for sends that are not replies to an update.
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

const (
	defaultPollTimeout = 10 * time.Second
	// Must outlast the long-poll wait.
	pollClientTimeout = 30 * time.Second
)

// Dial creates the polling client, with the poller selected by telegram.run_mode.
func Dial(cfg *coreconfig.Config) (*tele.Bot, error) {
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  newPoller(cfg),
		Client:  newHTTPClient(pollClientTimeout),
		OnError: logHandlerError,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	return b, nil
}

func newPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	timeout := defaultPollTimeout
	if s := cfg.Telegram.LongPollTimeoutSeconds; s > 0 {
		timeout = time.Duration(s) * time.Second
	}
	return &tele.LongPoller{Timeout: timeout}
}

// DialSender creates a send-only client that never calls getMe. Every request
// is cut off after timeout, so a caller giving up at the same deadline leaves
// no request running behind it.
func DialSender(cfg *coreconfig.Config, timeout time.Duration) (*tele.Bot, error) {
	if timeout <= 0 {
		timeout = pollClientTimeout
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Client:  newHTTPClient(timeout),
		Offline: true,
		OnError: logHandlerError,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: sender initialization failed: %w", err)
	}
	return b, nil
}

// newHTTPClient bounds every stage of a Bot API call.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       30 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// RunTelegram starts the bot and blocks until ctx is done or polling stops.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	start := time.Now()
	bot, err := Dial(cfg)
	if err != nil {
		return err
	}
	logger.Info(ctx, "tg", "mode",
		slog.String("mode", cfg.Telegram.RunMode),
		slog.String("username", bot.Me.Username),
		slog.Duration("duration", logger.Took(start)),
	)
	if cfg.Telegram.RunMode != coreconfig.RunModeWebhook {
		// A webhook left over from an earlier deployment would swallow the updates.
		if err := bot.RemoveWebhook(); err != nil {
			logger.Warn(ctx, "tg", "webhook.remove",
				slog.String("status", "fail"),
				slog.String("err", tgsender.Redact(err)),
			)
		}
	}

	dispatcher := tgsender.NewDispatcher(opts.Dispatcher)
	tghelpers.SetDispatcher(dispatcher)
	defer func() {
		tghelpers.SetDispatcher(nil)
		dispatcher.Close()
		logger.Info(ctx, "tg", "sender.closed",
			slog.String("status", "ok"),
			slog.Uint64("failed_jobs", dispatcher.ErrorCount()),
		)
	}()

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	PublishCommands(ctx, bot, reg)

	rt := Runtime{Bot: bot, Dispatcher: dispatcher, Registry: reg}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		bot.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		bot.Stop()
		<-stopped
	case <-stopped:
		runErr = errors.New("telegram: poller stopped unexpectedly")
	}

	if opts.OnStop != nil {
		if err := opts.OnStop(context.WithoutCancel(ctx), rt); err != nil {
			return err
		}
	}
	return runErr
}

func logHandlerError(err error, c tele.Context) {
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.Error(ctx, "tg", "handler.error",
		slog.String("status", "fail"),
		slog.String("err", logger.Clip(tgsender.Redact(err), 256)),
	)
}
