package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/m3rciful/sroki/core/logger"
	tgsender "github.com/m3rciful/sroki/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// ErrNotAttached is returned when a notice is sent before the bot is running.
var ErrNotAttached = errors.New("bot: channel notifier not attached")

// Sender is the part of *tele.Bot the notifier needs.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// ChannelNotifier delivers sweep notices to the fixed destination channel.
type ChannelNotifier struct {
	channel tele.ChatID
	sender  atomic.Pointer[senderBox]
	backoff time.Duration
	late    atomic.Int64
}

type senderBox struct{ s Sender }

// NewChannelNotifier returns a notifier for channelID; Attach it once the bot exists.
func NewChannelNotifier(channelID int64) *ChannelNotifier {
	return &ChannelNotifier{channel: tele.ChatID(channelID), backoff: 500 * time.Millisecond}
}

// Attach sets the live sender. Passing nil detaches it.
func (n *ChannelNotifier) Attach(s Sender) {
	if s == nil {
		n.sender.Store(nil)
		return
	}
	n.sender.Store(&senderBox{s: s})
}

// Notify sends text as a plain message. Transient network errors are retried
// until ctx expires; the call never outlives ctx.
//
// A send abandoned at the deadline may still reach Telegram. The caller sees
// a failure and keeps the reminder, so the channel can get the notice twice.
// Attach a client whose HTTP timeout matches the deadline to keep that window
// small; LateDeliveries counts the cases that still slip through.
func (n *ChannelNotifier) Notify(ctx context.Context, text string) error {
	box := n.sender.Load()
	if box == nil {
		return ErrNotAttached
	}
	for attempt := 1; ; attempt++ {
		err := n.sendOnce(ctx, box.s, text)
		if err == nil {
			return nil
		}
		if !tgsender.Retryable(err) || ctx.Err() != nil {
			return err
		}
		delay := n.backoff * time.Duration(attempt)
		if wait := tgsender.RetryAfter(err); wait > delay {
			delay = wait
		}
		logger.Debug(ctx, "tg.sender", "notify.retry",
			slog.Int("attempt", attempt),
			slog.String("error_kind", tgsender.Kind(err)),
			slog.String("err", tgsender.Redact(err)),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (n *ChannelNotifier) sendOnce(ctx context.Context, s Sender, text string) error {
	done := make(chan error, 1)
	go func() {
		_, err := s.Send(n.channel, text)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		go n.watchAbandoned(ctx, done)
		return ctx.Err()
	}
}

// LateDeliveries reports sends that succeeded after Notify had given up on them.
func (n *ChannelNotifier) LateDeliveries() int64 {
	return n.late.Load()
}

func (n *ChannelNotifier) watchAbandoned(ctx context.Context, done <-chan error) {
	if err := <-done; err != nil {
		return
	}
	n.late.Add(1)
	logger.Warn(context.WithoutCancel(ctx), "tg.sender", "notify.late",
		slog.String("status", "ok"),
		slog.String("outcome", "duplicate_possible"),
	)
}
