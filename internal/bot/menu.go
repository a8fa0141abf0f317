package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/sroki/core/telegram/keyboard"
	"github.com/m3rciful/sroki/internal/conversation"
	"github.com/m3rciful/sroki/internal/reminder"

	tele "gopkg.in/telebot.v4"
)

// Callback keys of the inline buttons.
const (
	cbAddReminder     = "add_reminder"
	cbListReminders   = "list_reminders"
	cbCheckDiscount   = "check_discount"
	cbAddReminderList = "add_reminder_list"
	cbListPage        = "list_page"
)

const (
	msgChooseAction  = "Выберите действие:"
	msgNoReminders   = "Нету напоминаний"
	msgUnknownText   = "Не понимаю. Нажмите /start, чтобы открыть меню."
	msgUnknownFile   = "Файлы не поддерживаются. Нажмите /start, чтобы открыть меню."
	msgTextExpected  = "Ожидается текстовое сообщение."
	msgUnknownAction = "Неизвестное действие"
	msgAdminOnly     = "Команда доступна только администратору."
	msgRateLimited   = "Слишком много запросов, подождите немного."
	msgFailed        = "Что-то пошло не так. Попробуйте ещё раз позже."
	msgSweepBusy     = "Проверка уже выполняется, попробуйте позже."
)

func menuButtons() []keyboard.Button {
	return []keyboard.Button{
		{Text: "Добавить напоминание", Unique: cbAddReminder},
		{Text: "Просмотреть напоминания", Unique: cbListReminders},
		{Text: "Проверить уценку", Unique: cbCheckDiscount},
		{Text: "Добавить список напоминаний", Unique: cbAddReminderList},
	}
}

func mainMenu() *tele.ReplyMarkup {
	return keyboard.Inline(keyboard.Grid(menuButtons(), 2)...)
}

func unitKeyboard() *tele.ReplyMarkup {
	rows := make([][]string, 0, len(reminder.Units))
	for _, u := range reminder.Units {
		rows = append(rows, []string{u.Label()})
	}
	return keyboard.Reply(rows...)
}

func replyMarkup(k conversation.Keyboard) *tele.ReplyMarkup {
	switch k {
	case conversation.KeyboardUnits:
		return unitKeyboard()
	case conversation.KeyboardRemove:
		return keyboard.Remove()
	case conversation.KeyboardMenu:
		return mainMenu()
	}
	return nil
}

func pageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// renderPage formats one listing page, one reminder per line.
func renderPage(items []reminder.Reminder, page, pages int) string {
	if len(items) == 0 {
		return msgNoReminders
	}
	var b strings.Builder
	for _, r := range items {
		fmt.Fprintf(&b, "Пользователь: %d, Позиция: %s, Время окончания: %s\n", r.ChatID, r.Text, r.DueDate)
	}
	if pages > 1 {
		fmt.Fprintf(&b, "\nСтраница %d из %d", page, pages)
	}
	return strings.TrimRight(b.String(), "\n")
}

// pageMarkup puts prev/next buttons above the main menu.
func pageMarkup(page, pages int) *tele.ReplyMarkup {
	var nav []keyboard.Button
	if page > 1 {
		nav = append(nav, keyboard.Button{Text: "◀️ Назад", Unique: cbListPage, Data: strconv.Itoa(page - 1)})
	}
	if page < pages {
		nav = append(nav, keyboard.Button{Text: "Вперёд ▶️", Unique: cbListPage, Data: strconv.Itoa(page + 1)})
	}
	rows := append([][]keyboard.Button{nav}, keyboard.Grid(menuButtons(), 2)...)
	return keyboard.Inline(rows...)
}
