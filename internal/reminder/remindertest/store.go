// Package remindertest provides an in-memory reminder.Store for tests.
package remindertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m3rciful/sroki/internal/reminder"
)

// ErrInjected is the cause used when a test asks the store to fail.
var ErrInjected = errors.New("remindertest: injected failure")

// Store keeps reminders in insertion order.
type Store struct {
	mu     sync.Mutex
	nextID int64
	rows   []reminder.Reminder

	// FailInsertAfter makes Insert fail once this many inserts succeeded; negative disables.
	FailInsertAfter int
	// FailReads makes every query fail.
	FailReads bool
	// FailDelete makes Delete and DeleteExact fail.
	FailDelete bool

	inserts int
}

var _ reminder.Store = (*Store)(nil)

// New returns an empty store with failure injection disabled.
func New() *Store {
	return &Store{FailInsertAfter: -1}
}

func (s *Store) Insert(_ context.Context, r reminder.Reminder) (reminder.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailInsertAfter >= 0 && s.inserts >= s.FailInsertAfter {
		return reminder.Reminder{}, &reminder.StorageError{Op: "insert", Err: ErrInjected}
	}
	s.inserts++
	s.nextID++
	r.ID = s.nextID
	if r.Kind == "" {
		r.Kind = reminder.KindOneTime
	}
	s.rows = append(s.rows, r)
	return r, nil
}

func (s *Store) filter(op string, keep func(reminder.Reminder) bool) ([]reminder.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads {
		return nil, &reminder.StorageError{Op: op, Err: ErrInjected}
	}
	var out []reminder.Reminder
	for _, r := range s.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) DueOnOrBefore(_ context.Context, day reminder.Date) ([]reminder.Reminder, error) {
	return s.filter("due_on_or_before", func(r reminder.Reminder) bool {
		return !r.DueDate.After(day)
	})
}

func (s *Store) DueWithinWindow(_ context.Context, now reminder.Date, window time.Duration) ([]reminder.Reminder, error) {
	until := now.AddDays(int(window / (24 * time.Hour)))
	return s.filter("due_within_window", func(r reminder.Reminder) bool {
		return r.DueDate.After(now) && !r.DueDate.After(until)
	})
}

func (s *Store) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDelete {
		return false, &reminder.StorageError{Op: "delete", Err: ErrInjected}
	}
	for i, r := range s.rows {
		if r.ID == id {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DeleteExact(_ context.Context, chatID int64, text string, due reminder.Date) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDelete {
		return 0, &reminder.StorageError{Op: "delete_exact", Err: ErrInjected}
	}
	kept := s.rows[:0]
	var n int64
	for _, r := range s.rows {
		if r.ChatID == chatID && r.Text == text && r.DueDate.Equal(due) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.rows = kept
	return n, nil
}

func (s *Store) ListPage(_ context.Context, page, size int) ([]reminder.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads {
		return nil, &reminder.StorageError{Op: "list_page", Err: ErrInjected}
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = reminder.DefaultPageSize
	}
	start := (page - 1) * size
	if start >= len(s.rows) {
		return nil, nil
	}
	end := min(start+size, len(s.rows))
	return append([]reminder.Reminder(nil), s.rows[start:end]...), nil
}

func (s *Store) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads {
		return 0, &reminder.StorageError{Op: "count", Err: ErrInjected}
	}
	return len(s.rows), nil
}

// All returns a copy of every stored reminder.
func (s *Store) All() []reminder.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]reminder.Reminder(nil), s.rows...)
}
