package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const tsLayout = "2006-01-02T15:04:05.000Z07:00"

// leadKeys are written first, in this order. Everything else follows in the
// order the attributes were added.
var leadKeys = []string{
	"ts", "level", "component", "event", "status",
	"rid", "update_id", "chat_id", "user_id", "handler",
}

type field struct {
	key string
	val any
}

// record is an insertion-ordered set of fields; a repeated key overwrites in place.
type record struct {
	fields []field
	index  map[string]int
}

func newRecord() *record {
	return &record{index: make(map[string]int, 16)}
}

func (r *record) set(key string, val any) {
	if i, ok := r.index[key]; ok {
		r.fields[i].val = val
		return
	}
	r.index[key] = len(r.fields)
	r.fields = append(r.fields, field{key: key, val: val})
}

func (r *record) setDefault(key string, val any) {
	if _, ok := r.index[key]; !ok {
		r.set(key, val)
	}
}

func (r *record) get(key string) (any, bool) {
	i, ok := r.index[key]
	if !ok {
		return nil, false
	}
	return r.fields[i].val, true
}

func (r *record) ordered() []field {
	out := make([]field, 0, len(r.fields))
	lead := make(map[string]bool, len(leadKeys))
	for _, k := range leadKeys {
		lead[k] = true
		if v, ok := r.get(k); ok {
			out = append(out, field{key: k, val: v})
		}
	}
	for _, f := range r.fields {
		if !lead[f.key] {
			out = append(out, f)
		}
	}
	return out
}

// lineHandler renders one line per record, as JSON or as key=value pairs.
type lineHandler struct {
	level  slog.Leveler
	out    *asyncWriter
	errOut *asyncWriter // receives WARN and above as well, when set
	json   bool

	attrs  []slog.Attr
	prefix string
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *lineHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.out == nil {
		return fmt.Errorf("logger: writer not initialized")
	}

	rec := newRecord()
	rec.set("ts", r.Time.UTC().Truncate(time.Millisecond).Format(tsLayout))
	rec.set("level", levelName(r.Level))
	for _, a := range h.attrs {
		h.add(rec, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.add(rec, h.prefix, a)
		return true
	})

	s := ScopeFrom(ctx)
	if s.RID != "" {
		rec.setDefault("rid", s.RID)
	}
	if s.UpdateID != 0 {
		rec.setDefault("update_id", int64(s.UpdateID))
	}
	if s.ChatID != 0 {
		rec.setDefault("chat_id", s.ChatID)
	}
	if s.UserID != 0 {
		rec.setDefault("user_id", s.UserID)
	}
	if s.Handler != "" {
		rec.setDefault("handler", s.Handler)
	}

	event := r.Message
	if event == "" {
		event = "unknown"
	}
	rec.setDefault("event", event)
	rec.setDefault("component", "app")
	if v, ok := rec.get("status"); ok {
		if st, isStr := v.(string); isStr {
			rec.set("status", strings.ToLower(st))
		}
	}

	line, err := h.encode(rec.ordered())
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if h.errOut != nil && r.Level >= slog.LevelWarn {
		if err := h.errOut.Write(line); err != nil {
			return err
		}
	}
	return h.out.Write(line)
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if h.prefix == "" {
		clone.prefix = name
	} else {
		clone.prefix = h.prefix + "." + name
	}
	return &clone
}

// add flattens groups into dotted keys and normalizes the value.
func (h *lineHandler) add(rec *record, prefix string, a slog.Attr) {
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			h.add(rec, key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := normalize(key, v); ok {
		rec.set(k, val)
	}
}

// normalize converts a value into something both encoders print the same way.
// Durations always land in integer milliseconds under a *_ms key.
func normalize(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		s := strings.TrimSpace(v.String())
		return key, s, s != ""
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		return key, v.Uint64(), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return msKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return msKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		s := x.String()
		return key, s, s != ""
	default:
		return key, fmt.Sprint(x), true
	}
}

func msKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func (h *lineHandler) encode(fields []field) ([]byte, error) {
	var b strings.Builder
	if h.json {
		b.WriteByte('{')
		for i, f := range fields {
			data, err := json.Marshal(f.val)
			if err != nil {
				return nil, fmt.Errorf("logger: encode %s: %w", f.key, err)
			}
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(f.key))
			b.WriteByte(':')
			b.Write(data)
		}
		b.WriteByte('}')
		return []byte(b.String()), nil
	}
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(kvValue(f.val))
	}
	return []byte(b.String()), nil
}

func kvValue(v any) string {
	s := fmt.Sprint(v)
	if strings.IndexFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) >= 0 {
		return strconv.Quote(s)
	}
	return s
}
