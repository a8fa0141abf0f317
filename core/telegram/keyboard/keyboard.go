// Package keyboard builds reply and inline keyboards.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is an inline button: Unique routes the press, Data travels with it.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// CancelText labels the cancel button.
const CancelText = "❌ Отмена"

// Inline lays buttons out row by row.
func Inline(rows ...[]Button) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.InlineKeyboard = make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			line = append(line, *m.Data(b.Text, b.Unique, b.Data).Inline())
		}
		m.InlineKeyboard = append(m.InlineKeyboard, line)
	}
	return m
}

// Grid wraps buttons into rows of perRow.
func Grid(buttons []Button, perRow int) [][]Button {
	if perRow < 1 {
		perRow = 1
	}
	var rows [][]Button
	for len(buttons) > perRow {
		rows = append(rows, buttons[:perRow])
		buttons = buttons[perRow:]
	}
	if len(buttons) > 0 {
		rows = append(rows, buttons)
	}
	return rows
}

// Reply builds a resized reply keyboard with one row per slice of labels.
func Reply(rows ...[]string) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{ResizeKeyboard: true}
	built := make([]tele.Row, 0, len(rows))
	for _, labels := range rows {
		btns := make([]tele.Btn, 0, len(labels))
		for _, l := range labels {
			btns = append(btns, m.Text(l))
		}
		built = append(built, m.Row(btns...))
	}
	m.Reply(built...)
	return m
}

// Remove hides a reply keyboard.
func Remove() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// Cancel is a single cancel button routed to unique.
func Cancel(unique string) *tele.ReplyMarkup {
	return Inline([]Button{{Text: CancelText, Unique: unique}})
}
