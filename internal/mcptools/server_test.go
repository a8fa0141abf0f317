package mcptools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/m3rciful/sroki/internal/reminder"
	"github.com/m3rciful/sroki/internal/reminder/remindertest"
	"github.com/m3rciful/sroki/internal/sweep"
)

type stubSweeper struct{ kinds []sweep.Kind }

func (s *stubSweeper) RunDue(context.Context) (sweep.Result, error) {
	s.kinds = append(s.kinds, sweep.KindDue)
	return sweep.Result{Kind: sweep.KindDue, Found: 1, Delivered: 1, Deleted: 1}, nil
}

func (s *stubSweeper) RunLookahead(context.Context) (sweep.Result, error) {
	s.kinds = append(s.kinds, sweep.KindLookahead)
	return sweep.Result{Kind: sweep.KindLookahead}, nil
}

func newDeps(t *testing.T) (Deps, *remindertest.Store) {
	t.Helper()
	store := remindertest.New()
	return Deps{
		Store:    store,
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC) },
	}, store
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T", res.Content[0])
	}
	return tc.Text
}

func seed(t *testing.T, store *remindertest.Store, text string, due reminder.Date) {
	t.Helper()
	r, err := reminder.New(1, text, due)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Insert(context.Background(), r); err != nil {
		t.Fatal(err)
	}
}

func TestAddReminderTool(t *testing.T) {
	deps, store := newDeps(t)
	h := addReminder(deps)

	res, err := h(context.Background(), call("add_reminder", map[string]any{
		"chat_id": float64(-100500),
		"text":    "  Молоко ",
		"date":    "31.03.2024",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	var saved reminder.Reminder
	if err := json.Unmarshal([]byte(resultText(t, res)), &saved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if saved.ID == 0 || saved.ChatID != -100500 || saved.Text != "Молоко" || saved.DueDate.String() != "2024-03-31" {
		t.Fatalf("saved = %+v", saved)
	}
	if len(store.All()) != 1 {
		t.Fatalf("store has %d rows", len(store.All()))
	}
}

func TestAddReminderToolRejectsBadInput(t *testing.T) {
	deps, store := newDeps(t)
	h := addReminder(deps)

	for name, args := range map[string]map[string]any{
		"missing chat": {"text": "x", "date": "01.01.2024"},
		"bad date":     {"chat_id": float64(1), "text": "x", "date": "31.02.2024"},
		"blank text":   {"chat_id": float64(1), "text": "   ", "date": "01.01.2024"},
	} {
		res, err := h(context.Background(), call("add_reminder", args))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !res.IsError {
			t.Fatalf("%s: expected tool error", name)
		}
	}
	if len(store.All()) != 0 {
		t.Fatalf("invalid input was stored")
	}
}

func TestListRemindersTool(t *testing.T) {
	deps, store := newDeps(t)
	for _, text := range []string{"a", "b", "c"} {
		seed(t, store, text, reminder.NewDate(2024, time.April, 1))
	}

	res, err := listReminders(deps)(context.Background(), call("list_reminders", map[string]any{"page": 2, "size": 2}))
	if err != nil {
		t.Fatal(err)
	}
	var items []reminder.Reminder
	if err := json.Unmarshal([]byte(resultText(t, res)), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Text != "c" {
		t.Fatalf("page 2 = %+v", items)
	}
}

func TestDueRemindersTool(t *testing.T) {
	deps, store := newDeps(t)
	seed(t, store, "overdue", reminder.NewDate(2024, time.February, 20))
	seed(t, store, "today", reminder.NewDate(2024, time.March, 1))
	seed(t, store, "soon", reminder.NewDate(2024, time.March, 10))
	seed(t, store, "later", reminder.NewDate(2024, time.April, 10))

	texts := func(res *mcp.CallToolResult) string {
		var items []reminder.Reminder
		if err := json.Unmarshal([]byte(resultText(t, res)), &items); err != nil {
			t.Fatal(err)
		}
		var out []string
		for _, r := range items {
			out = append(out, r.Text)
		}
		return strings.Join(out, ",")
	}

	h := dueReminders(deps)
	res, err := h(context.Background(), call("due_reminders", nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := texts(res); got != "overdue,today" {
		t.Fatalf("due = %s", got)
	}

	res, err = h(context.Background(), call("due_reminders", map[string]any{"window_days": 14}))
	if err != nil {
		t.Fatal(err)
	}
	if got := texts(res); got != "soon" {
		t.Fatalf("window = %s", got)
	}
}

func TestStoreFailureIsToolError(t *testing.T) {
	deps, store := newDeps(t)
	store.FailReads = true
	res, err := dueReminders(deps)(context.Background(), call("due_reminders", nil))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error")
	}
}

func TestRunSweepTool(t *testing.T) {
	deps, _ := newDeps(t)
	sw := &stubSweeper{}
	deps.Sweeper = sw
	h := runSweep(deps)

	res, err := h(context.Background(), call("run_sweep", map[string]any{"kind": "due"}))
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if out["deleted"] != float64(1) {
		t.Fatalf("result = %v", out)
	}

	res, _ = h(context.Background(), call("run_sweep", map[string]any{"kind": "weekly"}))
	if !res.IsError {
		t.Fatalf("unknown kind should be a tool error")
	}
	if len(sw.kinds) != 1 || sw.kinds[0] != sweep.KindDue {
		t.Fatalf("sweeps = %v", sw.kinds)
	}
}

func TestNewServerRegistersSweepOnlyWithSweeper(t *testing.T) {
	deps, _ := newDeps(t)
	if _, ok := NewServer(deps).ListTools()["run_sweep"]; ok {
		t.Fatalf("run_sweep registered without a sweeper")
	}
	deps.Sweeper = &stubSweeper{}
	if _, ok := NewServer(deps).ListTools()["run_sweep"]; !ok {
		t.Fatalf("run_sweep missing")
	}
}
