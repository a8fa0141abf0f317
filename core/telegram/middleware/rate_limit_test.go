package middleware

import (
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestLimiterAllow(t *testing.T) {
	l := &limiter{interval: time.Second, seen: make(map[int64]time.Time)}
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if !l.allow(1, t0) {
		t.Fatal("first update blocked")
	}
	if l.allow(1, t0.Add(500*time.Millisecond)) {
		t.Fatal("burst not limited")
	}
	if !l.allow(2, t0.Add(500*time.Millisecond)) {
		t.Fatal("other user limited")
	}
	if !l.allow(1, t0.Add(1500*time.Millisecond)) {
		t.Fatal("user still limited after the interval")
	}
}

func TestLimiterForgetsIdleUsers(t *testing.T) {
	l := &limiter{interval: time.Second, seen: make(map[int64]time.Time)}
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for id := int64(1); id <= 5; id++ {
		l.allow(id, t0)
	}
	l.allow(9, t0.Add(2*time.Minute))
	if len(l.seen) != 1 {
		t.Fatalf("seen = %d entries, want 1", len(l.seen))
	}
}

func TestUpdateKind(t *testing.T) {
	cases := map[string]tele.Update{
		"callback":     {Callback: &tele.Callback{}},
		"message":      {Message: &tele.Message{}},
		"inline_query": {Query: &tele.Query{}},
		"other":        {},
	}
	for want, u := range cases {
		if got := updateKind(u); got != want {
			t.Errorf("updateKind = %q, want %q", got, want)
		}
	}
}
