package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/sroki/core/logger"
	"github.com/m3rciful/sroki/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/sroki/core/telegram/helpers"
	"github.com/m3rciful/sroki/core/telegram/keyboard"
	"github.com/m3rciful/sroki/internal/conversation"
	"github.com/m3rciful/sroki/internal/reminder"
	"github.com/m3rciful/sroki/internal/sweep"

	tele "gopkg.in/telebot.v4"
)

const cbCancel = "cancel"

// Sweeper runs one sweep cycle on demand.
type Sweeper interface {
	RunDue(ctx context.Context) (sweep.Result, error)
	RunLookahead(ctx context.Context) (sweep.Result, error)
}

// Options tune the handlers.
type Options struct {
	PageSize int
}

// Handlers implements the bot's commands, callbacks and conversation hand-off.
type Handlers struct {
	engine   *conversation.Engine
	store    reminder.Store
	sweeps   Sweeper
	pageSize int
}

// NewHandlers wires handlers to the conversation engine, the store and the sweeps.
func NewHandlers(engine *conversation.Engine, store reminder.Store, sweeps Sweeper, opts Options) *Handlers {
	size := opts.PageSize
	if size <= 0 {
		size = reminder.DefaultPageSize
	}
	return &Handlers{engine: engine, store: store, sweeps: sweeps, pageSize: size}
}

func chatID(c tele.Context) (int64, bool) {
	chat := c.Chat()
	if chat == nil {
		return 0, false
	}
	return chat.ID, true
}

// Start shows the main menu.
func (h *Handlers) Start(c tele.Context) error {
	return tghelpers.SendText(c, msgChooseAction, &tele.SendOptions{ReplyMarkup: mainMenu()})
}

// AddReminder opens the single reminder flow.
func (h *Handlers) AddReminder(c tele.Context) error {
	return h.startFlow(c, conversation.FlowSingle)
}

// AddReminderList opens the bulk flow.
func (h *Handlers) AddReminderList(c tele.Context) error {
	return h.startFlow(c, conversation.FlowBulk)
}

func (h *Handlers) startFlow(c tele.Context, flow conversation.Flow) error {
	id, ok := chatID(c)
	if !ok {
		return nil
	}
	return h.reply(c, h.engine.Start(tghelpers.BuildContext(c), id, flow))
}

// Cancel drops the chat's conversation, if any.
func (h *Handlers) Cancel(c tele.Context) error {
	id, ok := chatID(c)
	if !ok {
		return nil
	}
	return h.reply(c, h.engine.Cancel(tghelpers.BuildContext(c), id))
}

// ListReminders renders the first page and then runs the due sweep.
func (h *Handlers) ListReminders(c tele.Context) error {
	if err := h.showPage(c, 1, false); err != nil {
		return err
	}
	ctx := tghelpers.BuildContext(c)
	if _, err := h.sweeps.RunDue(ctx); err != nil {
		logger.Warn(ctx, "tg", "list.sweep",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	return nil
}

// ListPage handles the prev/next buttons under a listing.
func (h *Handlers) ListPage(c tele.Context) error {
	page, err := callbacks.PayloadInt(c)
	if err != nil || page < 1 {
		page = 1
	}
	return h.showPage(c, page, true)
}

func (h *Handlers) showPage(c tele.Context, page int, edit bool) error {
	ctx := tghelpers.BuildContext(c)
	total, err := h.store.Count(ctx)
	if err != nil {
		return h.storageFailed(c, err)
	}
	pages := pageCount(total, h.pageSize)
	if page > pages {
		page = pages
	}
	items, err := h.store.ListPage(ctx, page, h.pageSize)
	if err != nil {
		return h.storageFailed(c, err)
	}

	text := renderPage(items, page, pages)
	markup := pageMarkup(page, pages)
	if edit {
		return tghelpers.EditOrSendText(c, text, markup)
	}
	return tghelpers.SendText(c, text, &tele.SendOptions{ReplyMarkup: markup})
}

func (h *Handlers) storageFailed(c tele.Context, err error) error {
	_ = tghelpers.SendText(c, msgFailed)
	return fmt.Errorf("list reminders: %w", err)
}

// CheckDiscount runs the lookahead sweep now and reports the counts.
func (h *Handlers) CheckDiscount(c tele.Context) error {
	res, err := h.sweeps.RunLookahead(tghelpers.BuildContext(c))
	if err != nil {
		_ = tghelpers.SendText(c, msgFailed)
		return err
	}
	return tghelpers.SendText(c, sweepSummary(res))
}

// SweepDue runs the due sweep now. Admin only.
func (h *Handlers) SweepDue(c tele.Context) error {
	res, err := h.sweeps.RunDue(tghelpers.BuildContext(c))
	if err != nil {
		_ = tghelpers.SendText(c, msgFailed)
		return err
	}
	return tghelpers.SendText(c, sweepSummary(res))
}

func sweepSummary(res sweep.Result) string {
	if res.Skipped {
		return msgSweepBusy
	}
	switch res.Kind {
	case sweep.KindLookahead:
		return fmt.Sprintf("Проверка уценки: найдено %d, отправлено %d, ошибок %d.",
			res.Found, res.Delivered, res.Failed)
	default:
		return fmt.Sprintf("Просроченные напоминания: найдено %d, отправлено %d, удалено %d, ошибок %d.",
			res.Found, res.Delivered, res.Deleted, res.Failed)
	}
}

// InProgress reports whether chatID is in the middle of a conversation.
func (h *Handlers) InProgress(chatID int64) bool {
	return h.engine.InProgress(chatID)
}

// ManagerHandler feeds the message to the chat's conversation.
func (h *Handlers) ManagerHandler(c tele.Context) error {
	id, ok := chatID(c)
	if !ok {
		return nil
	}
	msg := c.Message()
	if msg == nil || msg.Text == "" {
		return tghelpers.SendText(c, msgTextExpected)
	}

	reply, err := h.engine.Advance(tghelpers.BuildContext(c), id, msg.Text)
	if errors.Is(err, conversation.ErrNoConversation) {
		return tghelpers.SendText(c, msgUnknownText)
	}
	sendErr := h.reply(c, reply)
	if err != nil {
		return err
	}
	return sendErr
}

// reply sends a conversation reply. Prompts without their own keyboard get a cancel button.
func (h *Handlers) reply(c tele.Context, r conversation.Reply) error {
	markup := replyMarkup(r.Keyboard)
	if markup == nil && !r.Done {
		markup = keyboard.Cancel(cbCancel)
	}
	if markup == nil {
		return tghelpers.SendText(c, r.Text)
	}
	return tghelpers.SendText(c, r.Text, &tele.SendOptions{ReplyMarkup: markup})
}

// UnknownText answers text that no command or conversation claims.
func (h *Handlers) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, msgUnknownText)
	}
}

// UnknownDocument answers files sent outside a conversation.
func (h *Handlers) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, msgUnknownFile)
	}
}

// UnknownCallback answers stale or foreign buttons.
func (h *Handlers) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: msgUnknownAction})
	}
}

// AdminRejected answers non-admin callers of operator commands.
func (h *Handlers) AdminRejected(c tele.Context) error {
	return tghelpers.SendText(c, msgAdminOnly)
}

// RateLimited answers users that send updates too quickly.
func (h *Handlers) RateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: msgRateLimited})
	}
	return tghelpers.SendText(c, msgRateLimited)
}
