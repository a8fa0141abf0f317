package middleware

import (
	"log/slog"

	"github.com/m3rciful/sroki/core/logger"
	"github.com/m3rciful/sroki/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/sroki/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// LoggerMiddleware scopes the update's context and logs its receipt at debug level.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		attrs := []slog.Attr{slog.String("status", "ok")}
		if chat := c.Chat(); chat != nil {
			attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
		}
		if user := c.Sender(); user != nil && user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.Clip(user.Username, 64)))
		}
		switch upd := c.Update(); {
		case upd.Callback != nil:
			key, payload := callbacks.Parse(upd.Callback)
			attrs = append(attrs,
				slog.String("kind", "callback"),
				slog.String("cb_key", logger.Clip(key, 64)),
				slog.String("payload", logger.Clip(payload, 128)),
			)
		case upd.Message != nil && upd.Message.Document != nil:
			attrs = append(attrs, slog.String("kind", "document"))
		case upd.Message != nil:
			attrs = append(attrs,
				slog.String("kind", "message"),
				slog.Int("text_len", len([]rune(upd.Message.Text))),
			)
		}
		logger.Debug(ctx, "tg", "update.received", attrs...)
		return next(c)
	}
}
