package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/sroki/core/logger"
	"github.com/m3rciful/sroki/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

const (
	repliesKey  = "sroki.replies"
	keyboardKey = "sroki.keyboard"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes replies through d. With nil, replies are sent inline.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// Replies reports how many replies the handler queued for c and whether any carried a keyboard.
func Replies(c tele.Context) (int, bool) {
	n, _ := c.Get(repliesKey).(int)
	kb, _ := c.Get(keyboardKey).(bool)
	return n, kb
}

func countReply(c tele.Context, markup *tele.ReplyMarkup) {
	n, _ := c.Get(repliesKey).(int)
	c.Set(repliesKey, n+1)
	if markup != nil {
		c.Set(keyboardKey, true)
	}
}

func deliver(c tele.Context, action, endpoint string, markup *tele.ReplyMarkup, run func() error) error {
	countReply(c, markup)
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, endpoint, run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.bypass",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendText sends plain text to the chat of the current update.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var so *tele.SendOptions
	if len(opts) > 0 {
		so = opts[0]
	}
	var markup *tele.ReplyMarkup
	if so != nil {
		markup = so.ReplyMarkup
	}
	return deliver(c, "send.text", "sendMessage", markup, func() error {
		if so != nil {
			return c.Send(text, so)
		}
		return c.Send(text)
	})
}

// EditOrSendText replaces the text of the message a button sits under, falling back
// to a new message when there is nothing to edit.
func EditOrSendText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return deliver(c, "edit.text", "editMessageText", markup, func() error {
		return c.EditOrSend(text, &tele.SendOptions{ReplyMarkup: markup})
	})
}
