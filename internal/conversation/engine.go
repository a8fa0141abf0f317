// Package conversation drives the per-chat prompts that build reminders.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/sroki/core/logger"
	"github.com/m3rciful/sroki/internal/reminder"
)

// ErrNoConversation is returned by Advance when the chat has no active stage.
var ErrNoConversation = errors.New("conversation: no active stage")

// Keyboard tells the transport which markup to attach to a reply.
type Keyboard int

const (
	KeyboardNone Keyboard = iota
	// KeyboardUnits offers the unit choices as reply buttons.
	KeyboardUnits
	// KeyboardRemove hides the unit buttons again.
	KeyboardRemove
	// KeyboardMenu attaches the main menu.
	KeyboardMenu
)

// Reply is what the transport sends back to the chat after a step.
type Reply struct {
	Text     string
	Keyboard Keyboard
	// Done is set once the sequence finished, successfully or not.
	Done  bool
	Saved []reminder.Reminder
}

// Engine is the finite-state machine behind the capture sequences.
type Engine struct {
	store    reminder.Store
	sessions *Sessions
}

// New wires an engine to a store and a session manager.
func New(store reminder.Store, sessions *Sessions) *Engine {
	return &Engine{store: store, sessions: sessions}
}

// Start begins a flow for the chat, replacing any sequence in progress.
func (e *Engine) Start(ctx context.Context, chatID int64, flow Flow) Reply {
	step, text := StageAwaitText, msgAskText
	if flow == FlowBulk {
		step, text = StageAwaitBulkList, msgAskBulk
	}
	defer e.sessions.Lock(chatID)()
	e.sessions.Put(chatID, Session{Step: step})
	logger.Debug(ctx, "conversation", "start",
		slog.Int64("chat_id", chatID),
		slog.String("next_stage", string(step)),
	)
	return Reply{Text: text}
}

// InProgress reports whether the chat has an active stage.
func (e *Engine) InProgress(chatID int64) bool {
	return e.sessions.InProgress(chatID)
}

// Stage returns the active stage for the chat.
func (e *Engine) Stage(chatID int64) Stage {
	return e.sessions.GetState(chatID)
}

// Cancel drops the chat's session.
func (e *Engine) Cancel(ctx context.Context, chatID int64) Reply {
	defer e.sessions.Lock(chatID)()
	if !e.sessions.Clear(chatID) {
		return Reply{Text: msgNothingActive, Keyboard: KeyboardMenu}
	}
	logger.Debug(ctx, "conversation", "cancel", slog.Int64("chat_id", chatID))
	return Reply{Text: msgCancelled, Keyboard: KeyboardMenu, Done: true}
}

// Advance feeds one user reply into the chat's active stage.
// Validation problems come back as a same-stage re-prompt with a nil error;
// a non-nil error means storage failed and the session was reset.
// Replies from one chat are applied one at a time, so a stage is consumed once.
func (e *Engine) Advance(ctx context.Context, chatID int64, input string) (Reply, error) {
	defer e.sessions.Lock(chatID)()
	sess, ok := e.sessions.Get(chatID)
	if !ok {
		return Reply{}, ErrNoConversation
	}

	var (
		reply Reply
		err   error
		from  = sess.Step
	)
	switch sess.Step {
	case StageAwaitText:
		reply = e.onText(&sess, input)
	case StageAwaitStartDate:
		reply = e.onStartDate(&sess, input)
	case StageAwaitUnit:
		reply = e.onUnit(&sess, input)
	case StageAwaitQuantity:
		reply, err = e.onQuantity(ctx, chatID, &sess, input)
	case StageAwaitBulkList:
		reply, err = e.onBulk(ctx, chatID, &sess, input)
	default:
		e.sessions.Clear(chatID)
		return Reply{}, ErrNoConversation
	}

	if reply.Done {
		e.sessions.Clear(chatID)
		sess.Step = StageIdle
	} else {
		e.sessions.Put(chatID, sess)
	}

	attrs := []slog.Attr{
		slog.Int64("chat_id", chatID),
		slog.String("stage", string(from)),
		slog.String("next_stage", string(sess.Step)),
	}
	switch {
	case err != nil:
		logger.Error(ctx, "conversation", "advance",
			append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
	case reply.Done:
		logger.Info(ctx, "conversation", "complete",
			append(attrs, slog.String("status", "ok"), slog.Int("saved", len(reply.Saved)))...)
	default:
		logger.Debug(ctx, "conversation", "advance", append(attrs, slog.String("status", "ok"))...)
	}
	return reply, err
}

func (e *Engine) onText(sess *Session, input string) Reply {
	text := strings.TrimSpace(input)
	if text == "" {
		return Reply{Text: msgBlankText}
	}
	sess.Text = text
	sess.Step = StageAwaitStartDate
	return Reply{Text: msgAskDate}
}

func (e *Engine) onStartDate(sess *Session, input string) Reply {
	d, err := reminder.ParseDate(input)
	if err != nil {
		return Reply{Text: msgBadDate}
	}
	sess.StartDate = d
	sess.Step = StageAwaitUnit
	return Reply{Text: msgAskUnit, Keyboard: KeyboardUnits}
}

func (e *Engine) onUnit(sess *Session, input string) Reply {
	u, err := reminder.ParseUnit(input)
	if err != nil {
		return Reply{Text: msgBadUnit, Keyboard: KeyboardUnits}
	}
	sess.Unit = u
	sess.Step = StageAwaitQuantity
	return Reply{Text: askQuantity(u), Keyboard: KeyboardRemove}
}

func (e *Engine) onQuantity(ctx context.Context, chatID int64, sess *Session, input string) (Reply, error) {
	qty, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return Reply{Text: badQuantity(sess.Unit)}, nil
	}
	due, err := reminder.DueDate(sess.StartDate, sess.Unit, qty)
	if err != nil {
		return Reply{Text: badQuantity(sess.Unit)}, nil
	}
	r, err := reminder.New(chatID, sess.Text, due)
	if err != nil {
		// Text was validated on entry; a failure here means the session is corrupt.
		return failed(), fmt.Errorf("build reminder: %w", err)
	}
	saved, err := e.store.Insert(ctx, r)
	if err != nil {
		return failed(), err
	}
	return Reply{Text: msgAdded, Keyboard: KeyboardMenu, Done: true, Saved: []reminder.Reminder{saved}}, nil
}

func (e *Engine) onBulk(ctx context.Context, chatID int64, sess *Session, input string) (Reply, error) {
	items, bad := ParseBulk(chatID, input)
	if len(bad) > 0 || len(items) == 0 {
		return Reply{Text: badBulk(bad)}, nil
	}
	saved := make([]reminder.Reminder, 0, len(items))
	for _, r := range items {
		s, err := e.store.Insert(ctx, r)
		if err != nil {
			text := msgFailed
			if len(saved) > 0 {
				text = bulkPartial(len(saved), len(items))
			}
			return Reply{Text: text, Keyboard: KeyboardMenu, Done: true, Saved: saved},
				fmt.Errorf("bulk insert %d/%d: %w", len(saved)+1, len(items), err)
		}
		saved = append(saved, s)
	}
	return Reply{Text: msgBulkAdded, Keyboard: KeyboardMenu, Done: true, Saved: saved}, nil
}

func failed() Reply {
	return Reply{Text: msgFailed, Keyboard: KeyboardMenu, Done: true}
}

// ParseBulk validates every non-blank "label / DD.MM.YYYY" line.
// It returns the reminders when all lines are valid, otherwise the 1-based
// numbers of the offending lines; callers must not write a partial batch.
func ParseBulk(chatID int64, input string) ([]reminder.Reminder, []int) {
	var (
		items []reminder.Reminder
		bad   []int
	)
	for i, line := range strings.Split(input, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "/")
		if len(parts) != 2 {
			bad = append(bad, i+1)
			continue
		}
		due, err := reminder.ParseDate(parts[1])
		if err != nil {
			bad = append(bad, i+1)
			continue
		}
		r, err := reminder.New(chatID, parts[0], due)
		if err != nil {
			bad = append(bad, i+1)
			continue
		}
		items = append(items, r)
	}
	if len(bad) > 0 {
		return nil, bad
	}
	return items, nil
}
