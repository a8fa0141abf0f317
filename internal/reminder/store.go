package reminder

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// DefaultPageSize is used by ListPage when size is not positive.
const DefaultPageSize = 20

// Store is the durable reminder table. Every call is a single auto-committed statement.
type Store interface {
	Insert(ctx context.Context, r Reminder) (Reminder, error)
	// DueOnOrBefore returns reminders with due_date <= day, ordered by id.
	DueOnOrBefore(ctx context.Context, day Date) ([]Reminder, error)
	// DueWithinWindow returns reminders with now < due_date <= now+window, ordered by id.
	DueWithinWindow(ctx context.Context, now Date, window time.Duration) ([]Reminder, error)
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteExact(ctx context.Context, chatID int64, text string, due Date) (int64, error)
	// ListPage returns 1-based pages ordered by id.
	ListPage(ctx context.Context, page, size int) ([]Reminder, error)
	Count(ctx context.Context) (int, error)
}

// SQLStore implements Store on sqlx for PostgreSQL and SQLite.
type SQLStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an open connection whose schema is already migrated.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

const selectColumns = `SELECT id, chat_id, reminder_text, reminder_date, reminder_type FROM reminders`

func (s *SQLStore) Insert(ctx context.Context, r Reminder) (Reminder, error) {
	if r.Kind == "" {
		r.Kind = KindOneTime
	}
	q := s.db.Rebind(`INSERT INTO reminders (chat_id, reminder_text, reminder_date, reminder_type)
		VALUES (?, ?, ?, ?) RETURNING id`)
	if err := s.db.QueryRowxContext(ctx, q, r.ChatID, r.Text, r.DueDate, r.Kind).Scan(&r.ID); err != nil {
		return Reminder{}, &StorageError{Op: "insert", Err: err}
	}
	return r, nil
}

func (s *SQLStore) DueOnOrBefore(ctx context.Context, day Date) ([]Reminder, error) {
	var out []Reminder
	q := s.db.Rebind(selectColumns + ` WHERE reminder_date <= ? ORDER BY id`)
	if err := s.db.SelectContext(ctx, &out, q, day); err != nil {
		return nil, &StorageError{Op: "due_on_or_before", Err: err}
	}
	return out, nil
}

// DueWithinWindow truncates window to whole days.
func (s *SQLStore) DueWithinWindow(ctx context.Context, now Date, window time.Duration) ([]Reminder, error) {
	until := now.AddDays(int(window / (24 * time.Hour)))
	var out []Reminder
	q := s.db.Rebind(selectColumns + ` WHERE reminder_date > ? AND reminder_date <= ? ORDER BY id`)
	if err := s.db.SelectContext(ctx, &out, q, now, until); err != nil {
		return nil, &StorageError{Op: "due_within_window", Err: err}
	}
	return out, nil
}

func (s *SQLStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM reminders WHERE id = ?`), id)
	if err != nil {
		return false, &StorageError{Op: "delete", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &StorageError{Op: "delete", Err: err}
	}
	return n > 0, nil
}

func (s *SQLStore) DeleteExact(ctx context.Context, chatID int64, text string, due Date) (int64, error) {
	q := s.db.Rebind(`DELETE FROM reminders WHERE chat_id = ? AND reminder_text = ? AND reminder_date = ?`)
	res, err := s.db.ExecContext(ctx, q, chatID, text, due)
	if err != nil {
		return 0, &StorageError{Op: "delete_exact", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &StorageError{Op: "delete_exact", Err: err}
	}
	return n, nil
}

func (s *SQLStore) ListPage(ctx context.Context, page, size int) ([]Reminder, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	var out []Reminder
	q := s.db.Rebind(selectColumns + ` ORDER BY id LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &out, q, size, (page-1)*size); err != nil {
		return nil, &StorageError{Op: "list_page", Err: err}
	}
	return out, nil
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM reminders`); err != nil {
		return 0, &StorageError{Op: "count", Err: err}
	}
	return n, nil
}

// Ping checks that the backing database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}
