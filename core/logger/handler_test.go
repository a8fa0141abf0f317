package logger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestLogger(t *testing.T, json bool, errSink io.Writer) (*slog.Logger, *bytes.Buffer, func()) {
	t.Helper()
	buf := &bytes.Buffer{}
	h := &lineHandler{level: slog.LevelDebug, out: newAsyncWriter([]io.Writer{buf}, 1024), json: json}
	if errSink != nil {
		h.errOut = newAsyncWriter([]io.Writer{errSink}, 1024)
	}
	closeAll := func() {
		for _, w := range []*asyncWriter{h.out, h.errOut} {
			if w == nil {
				continue
			}
			if err := w.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
		}
	}
	return slog.New(h), buf, closeAll
}

func TestLineHandlerKVOrder(t *testing.T) {
	log, buf, closeAll := newTestLogger(t, false, nil)
	ctx := WithScope(context.Background(), Scope{RID: "a.b.c", UpdateID: 42, ChatID: 9, UserID: 7})

	log.LogAttrs(ctx, slog.LevelInfo, "sweep.done",
		slog.Int("found", 3),
		slog.String("status", "OK"),
		slog.String("component", "sweep"),
	)
	closeAll()

	tokens := strings.Fields(strings.TrimSpace(buf.String()))
	want := []string{"ts=", "level=INFO", "component=sweep", "event=sweep.done", "status=ok",
		"rid=a.b.c", "update_id=42", "chat_id=9", "user_id=7", "found=3"}
	if len(tokens) != len(want) {
		t.Fatalf("tokens = %v", tokens)
	}
	for i, prefix := range want {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, want prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestLineHandlerJSON(t *testing.T) {
	log, buf, closeAll := newTestLogger(t, true, nil)
	ctx := WithRID(context.Background(), "sweep-1")

	log.LogAttrs(ctx, slog.LevelError, "deliver",
		slog.String("component", "sweep"),
		slog.Any("err", errors.New("chat not found")),
		slog.Duration("took", 1500*time.Microsecond),
		slog.Group("reminder", slog.Int64("id", 5)),
		slog.String("empty", "  "),
	)
	closeAll()

	line := strings.TrimSpace(buf.String())
	order := []string{`{"ts":`, `"level":"ERROR"`, `"component":"sweep"`, `"event":"deliver"`,
		`"rid":"sweep-1"`, `"err":"chat not found"`, `"took_ms":2`, `"reminder.id":5`}
	pos := -1
	for _, part := range order {
		idx := strings.Index(line, part)
		if idx <= pos {
			t.Fatalf("%s missing or out of order in %s", part, line)
		}
		pos = idx
	}
	if strings.Contains(line, "empty") {
		t.Fatalf("blank string kept: %s", line)
	}
}

func TestLineHandlerWithAttrsAndGroups(t *testing.T) {
	log, buf, closeAll := newTestLogger(t, false, nil)
	log.With("component", "tg").WithGroup("send").Info("queued", "endpoint", "sendMessage")
	closeAll()

	line := buf.String()
	for _, part := range []string{"component=tg", "event=queued", "send.endpoint=sendMessage"} {
		if !strings.Contains(line, part) {
			t.Fatalf("%s missing in %s", part, line)
		}
	}
}

func TestLineHandlerMirrorsWarningsToErrorSink(t *testing.T) {
	errs := &bytes.Buffer{}
	log, out, closeAll := newTestLogger(t, false, errs)
	log.Info("sweep.due", "component", "sweep")
	log.Warn("sweep.deliver", "status", "fail")
	closeAll()

	if got := strings.Count(out.String(), "\n"); got != 2 {
		t.Fatalf("main sink lines = %d:\n%s", got, out.String())
	}
	line := strings.TrimSpace(errs.String())
	if strings.Contains(line, "\n") || !strings.Contains(line, "event=sweep.deliver") {
		t.Fatalf("error sink = %q", line)
	}
}

func TestScopeHelpers(t *testing.T) {
	ctx := WithScope(context.Background(), Scope{UpdateID: 1, ChatID: 2})
	ctx = WithRID(ctx, "r")
	ctx = WithHandler(ctx, "/start")
	s := ScopeFrom(ctx)
	if s.RID != "r" || s.UpdateID != 1 || s.ChatID != 2 || s.Handler != "/start" {
		t.Fatalf("scope = %+v", s)
	}
	if ScopeFrom(context.Background()) != (Scope{}) {
		t.Fatal("empty context has a scope")
	}
	if got := UpdateRID(36, 35, -1); got != "10.z.-1" {
		t.Fatalf("UpdateRID = %q", got)
	}
}

func TestClipAndPreview(t *testing.T) {
	if got := Clip("a\x00b\u200bcdef", 4); got != "abcd" {
		t.Fatalf("Clip = %q", got)
	}
	if got := Clip("привет", 3); got != "при" {
		t.Fatalf("Clip runes = %q", got)
	}
	if got, cut := Preview([]string{"a", "b", "c"}, 2); got != "a, b" || !cut {
		t.Fatalf("Preview = %q %v", got, cut)
	}
	if got, cut := Preview([]string{"a"}, 2); got != "a" || cut {
		t.Fatalf("Preview = %q %v", got, cut)
	}
}

func TestMsKey(t *testing.T) {
	cases := map[string]string{
		"duration":   "duration_ms",
		"backoff_ms": "backoff_ms",
		"took":       "took_ms",
	}
	for in, want := range cases {
		if got := msKey(in); got != want {
			t.Errorf("msKey(%q) = %q, want %q", in, got, want)
		}
	}
}
