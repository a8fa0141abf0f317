package reminder

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

const (
	// InputLayout is the day.month.year form users type; leading zeros are optional.
	InputLayout = "2.1.2006"
	// StorageLayout is how due dates are persisted and displayed.
	StorageLayout = "2006-01-02"
)

// Date is a calendar day without time of day or zone.
type Date struct {
	t time.Time
}

// NewDate builds a Date; out-of-range parts normalize like time.Date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// Today returns the current calendar day in loc (UTC when loc is nil).
func Today(now time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(now.In(loc))
}

// ParseDate parses DD.MM.YYYY with calendar validation, so 31.02.2024 is rejected.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(InputLayout, s)
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Input: s, Err: err}
	}
	return DateOf(t), nil
}

// ParseStorageDate parses the persisted YYYY-MM-DD form.
func ParseStorageDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(StorageLayout) {
		s = s[:len(StorageLayout)]
	}
	t, err := time.Parse(StorageLayout, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool { return d.t.IsZero() }

func (d Date) Year() int { return d.t.Year() }

func (d Date) Month() time.Month { return d.t.Month() }

func (d Date) Day() int { return d.t.Day() }

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time { return d.t }

// AddDays shifts by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// AddMonths shifts by n calendar months keeping the day of month,
// clamped to the last day of a shorter target month (31 Jan + 1 = 28/29 Feb).
func (d Date) AddMonths(n int) Date {
	y, m, day := d.t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return NewDate(first.Year(), first.Month(), day)
}

func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }

func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

func (d Date) After(o Date) bool { return d.t.After(o.t) }

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(StorageLayout)
}

// Display formats the date the way users type it.
func (d Date) Display() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format("02.01.2006")
}

// Value stores the date as YYYY-MM-DD text, which both SQLite and PostgreSQL DATE accept.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan accepts the shapes drivers return for a date column.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
		return nil
	case string:
		parsed, err := ParseStorageDate(v)
		if err != nil {
			return fmt.Errorf("scan date %q: %w", v, err)
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	case nil:
		*d = Date{}
		return nil
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseStorageDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
