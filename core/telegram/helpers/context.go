package helpers

import (
	"context"

	"github.com/m3rciful/sroki/core/logger"

	tele "gopkg.in/telebot.v4"
)

const ctxKey = "sroki.ctx"

// BuildContext returns the request context stored on c, creating one scoped to the
// update, chat and user the first time it is asked for.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(ctxKey).(context.Context); ok {
		return ctx
	}
	s := logger.Scope{UpdateID: c.Update().ID}
	if chat := c.Chat(); chat != nil {
		s.ChatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		s.UserID = user.ID
	}
	s.RID = logger.UpdateRID(s.UpdateID, s.ChatID, s.UserID)
	ctx := logger.WithScope(context.Background(), s)
	c.Set(ctxKey, ctx)
	return ctx
}

// WithHandler records the serving handler's name in the stored context.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := logger.WithHandler(BuildContext(c), handler)
	c.Set(ctxKey, ctx)
	return ctx
}
