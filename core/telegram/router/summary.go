package router

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/sroki/core/logger"
	tghelpers "github.com/m3rciful/sroki/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// summarize runs h and logs one line describing how it went.
func summarize(c tele.Context, name string, h tele.HandlerFunc, extra ...slog.Attr) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, name)
	var err error
	if h != nil {
		err = h(c)
	}

	replies, kb := tghelpers.Replies(c)
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.Int("replies", replies),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.Took(start)),
	}
	attrs = append(attrs, extra...)
	if err != nil {
		attrs[0] = slog.String("status", "fail")
		attrs = append(attrs,
			slog.String("err", logger.Clip(err.Error(), 256)),
			slog.String("err_type", fmt.Sprintf("%T", err)),
		)
		logger.Warn(ctx, "tg", "handler.done", attrs...)
		return err
	}
	logger.Info(ctx, "tg", "handler.done", attrs...)
	return nil
}
