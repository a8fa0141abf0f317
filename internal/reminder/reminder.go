// Package reminder holds the reminder model, date arithmetic and the durable store.
package reminder

import (
	"errors"
	"fmt"
	"strings"
)

// KindOneTime is the only reminder kind; the column is kept for future recurrence.
const KindOneTime = "One-time"

// Reminder is one persisted notice awaiting delivery.
type Reminder struct {
	ID      int64  `db:"id" json:"id"`
	ChatID  int64  `db:"chat_id" json:"chat_id"`
	Text    string `db:"reminder_text" json:"text"`
	DueDate Date   `db:"reminder_date" json:"due_date"`
	Kind    string `db:"reminder_type" json:"kind"`
}

// New builds a one-time reminder after validating its text.
func New(chatID int64, text string, due Date) (Reminder, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reminder{}, &ValidationError{Field: "text", Input: text}
	}
	if due.IsZero() {
		return Reminder{}, &ValidationError{Field: "date"}
	}
	return Reminder{ChatID: chatID, Text: text, DueDate: due, Kind: KindOneTime}, nil
}

// ValidationError reports malformed user input. It is always recoverable.
type ValidationError struct {
	Field string
	Input string
	Err   error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s %q", e.Field, e.Input)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StorageError wraps a failed store operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "reminder store: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStorage reports whether err is a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
