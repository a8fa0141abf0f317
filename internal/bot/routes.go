package bot

import (
	"fmt"

	coreconfig "github.com/m3rciful/sroki/core/config"
	tg "github.com/m3rciful/sroki/core/telegram"
	"github.com/m3rciful/sroki/core/telegram/router"

	tele "gopkg.in/telebot.v4"
)

var (
	_ router.Fallbacks    = (*Handlers)(nil)
	_ router.Conversation = (*Handlers)(nil)
)

// Register adds every command and button of the bot to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	cmds := []struct {
		name string
		cmd  tg.Command
	}{
		{"/start", tg.Command{Description: "Главное меню", Handler: h.Start}},
		{"/add_reminder", tg.Command{Description: "Добавить напоминание", Handler: h.AddReminder}},
		{"/list_reminders", tg.Command{Description: "Просмотреть напоминания", Handler: h.ListReminders}},
		{"/check_discount", tg.Command{Description: "Проверить уценку", Handler: h.CheckDiscount}},
		{"/add_reminder_list", tg.Command{Description: "Добавить список напоминаний", Handler: h.AddReminderList}},
		{"/cancel", tg.Command{Description: "Отменить ввод", Handler: h.Cancel, Interrupts: true}},
		{"/sweep_due", tg.Command{Description: "Отправить просроченные напоминания", Handler: h.SweepDue, AdminOnly: true, Hidden: true}},
	}
	for _, c := range cmds {
		if err := reg.RegisterCommand(c.name, c.cmd); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}

	buttons := map[string]tele.HandlerFunc{
		cbAddReminder:     h.AddReminder,
		cbListReminders:   h.ListReminders,
		cbCheckDiscount:   h.CheckDiscount,
		cbAddReminderList: h.AddReminderList,
		cbListPage:        h.ListPage,
		cbCancel:          h.Cancel,
	}
	for key, fn := range buttons {
		if err := reg.RegisterCallback(key, fn); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}
	reg.SetCallbackNotFound(h.UnknownCallback())
	return nil
}

// Routes builds the full route table for reg.
func (h *Handlers) Routes(reg *tg.Registry, adminID int64) []tg.Route {
	return router.Routes(reg, router.Options{
		AdminID:       adminID,
		OnAdminReject: h.AdminRejected,
		Conversation:  h,
		Fallbacks:     h,
	})
}

// Middlewares returns the global middleware chain with the bot's rate-limit reply.
func (h *Handlers) Middlewares(cfg *coreconfig.Config) []tg.Middleware {
	return tg.DefaultMiddlewares(cfg, h.RateLimited)
}
