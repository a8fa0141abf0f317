package logger

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode"
)

type scopeKey struct{}

// Scope carries the correlation fields every log line inside a request or sweep inherits.
type Scope struct {
	RID      string
	UpdateID int
	UserID   int64
	ChatID   int64
	Handler  string
}

// WithScope stores s in ctx, replacing any scope already there.
func WithScope(ctx context.Context, s Scope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope stored in ctx, or the zero Scope.
func ScopeFrom(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}

// WithRID sets the correlation id and keeps the other scope fields.
func WithRID(ctx context.Context, rid string) context.Context {
	s := ScopeFrom(ctx)
	s.RID = rid
	return WithScope(ctx, s)
}

// RIDFrom returns the correlation id stored in ctx.
func RIDFrom(ctx context.Context) string {
	return ScopeFrom(ctx).RID
}

// WithHandler names the handler serving the current update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		return ctx
	}
	s := ScopeFrom(ctx)
	s.Handler = handler
	return WithScope(ctx, s)
}

// UpdateRID builds a short correlation id for a Telegram update: update, chat and
// user ids in base36 joined by dots.
func UpdateRID(updateID int, chatID, userID int64) string {
	parts := []string{
		strconv.FormatInt(int64(updateID), 36),
		strconv.FormatInt(chatID, 36),
		strconv.FormatInt(userID, 36),
	}
	return strings.Join(parts, ".")
}

// Clip drops control characters from s and cuts it to max runes.
func Clip(s string, max int) string {
	if max <= 0 || s == "" {
		return ""
	}
	var b strings.Builder
	n := 0
	for _, r := range s {
		if r == 0x7F || (r != '\n' && r != '\t' && (unicode.IsControl(r) || unicode.Is(unicode.Cf, r))) {
			continue
		}
		if n == max {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// Took returns the time since start rounded to milliseconds.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds d to whole milliseconds. Negative durations become zero.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// Preview joins at most limit values and reports whether some were left out.
func Preview(values []string, limit int) (string, bool) {
	if len(values) <= limit {
		return strings.Join(values, ", "), false
	}
	if limit <= 0 {
		return "", true
	}
	return strings.Join(values[:limit], ", "), true
}
