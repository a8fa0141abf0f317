package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/sroki/internal/reminder"
	"github.com/m3rciful/sroki/internal/reminder/remindertest"
)

type recorder struct {
	mu   sync.Mutex
	sent []string
	fail map[string]bool
}

func (r *recorder) Notify(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[text] {
		return errors.New("channel unavailable")
	}
	r.sent = append(r.sent, text)
	return nil
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func fixedNow(y int, m time.Month, d int) func() time.Time {
	return func() time.Time { return time.Date(y, m, d, 9, 0, 0, 0, time.UTC) }
}

func insert(t *testing.T, s reminder.Store, text string, due reminder.Date) reminder.Reminder {
	t.Helper()
	r, err := s.Insert(context.Background(), reminder.Reminder{ChatID: 1, Text: text, DueDate: due})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return r
}

func TestRunDueDeliversAndDeletes(t *testing.T) {
	store := remindertest.New()
	insert(t, store, "Pay rent", reminder.NewDate(2024, 1, 1))
	insert(t, store, "Later", reminder.NewDate(2024, 1, 3))
	rec := &recorder{}
	s := New(store, rec, Options{Now: fixedNow(2024, 1, 2), Location: time.UTC})

	res, err := s.RunDue(context.Background())
	if err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if res.Found != 1 || res.Delivered != 1 || res.Deleted != 1 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}
	if got := rec.messages(); len(got) != 1 || got[0] != "Pay rent" {
		t.Fatalf("sent = %v", got)
	}
	left := store.All()
	if len(left) != 1 || left[0].Text != "Later" {
		t.Fatalf("store = %+v", left)
	}
}

func TestRunDueIncludesToday(t *testing.T) {
	store := remindertest.New()
	insert(t, store, "today", reminder.NewDate(2024, 1, 2))
	rec := &recorder{}
	s := New(store, rec, Options{Now: fixedNow(2024, 1, 2), Location: time.UTC})
	if res, _ := s.RunDue(context.Background()); res.Delivered != 1 {
		t.Fatalf("result = %+v, want today's reminder delivered", res)
	}
}

func TestRunDueKeepsUndelivered(t *testing.T) {
	store := remindertest.New()
	insert(t, store, "a", reminder.NewDate(2024, 1, 1))
	insert(t, store, "b", reminder.NewDate(2024, 1, 1))
	insert(t, store, "c", reminder.NewDate(2024, 1, 1))
	rec := &recorder{fail: map[string]bool{"b": true}}
	s := New(store, rec, Options{Now: fixedNow(2024, 1, 5), Location: time.UTC})

	res, err := s.RunDue(context.Background())
	if err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if res.Delivered != 2 || res.Failed != 1 || res.Deleted != 2 {
		t.Fatalf("result = %+v", res)
	}
	var derr *DeliveryError
	if !errors.As(res.Err(), &derr) {
		t.Fatalf("Err() = %v, want DeliveryError", res.Err())
	}
	if got := rec.messages(); len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("sent = %v", got)
	}
	left := store.All()
	if len(left) != 1 || left[0].Text != "b" || left[0].ID != derr.ReminderID {
		t.Fatalf("store = %+v, want only b", left)
	}
}

func TestRunDueDeleteFailureKeepsGoing(t *testing.T) {
	store := remindertest.New()
	store.FailDelete = true
	insert(t, store, "a", reminder.NewDate(2024, 1, 1))
	insert(t, store, "b", reminder.NewDate(2024, 1, 1))
	rec := &recorder{}
	s := New(store, rec, Options{Now: fixedNow(2024, 1, 5), Location: time.UTC})

	res, _ := s.RunDue(context.Background())
	if res.Delivered != 2 || res.Deleted != 0 || len(res.Errors) != 2 {
		t.Fatalf("result = %+v", res)
	}
}

func TestRunDueStoreFailure(t *testing.T) {
	store := remindertest.New()
	store.FailReads = true
	s := New(store, &recorder{}, Options{})
	if _, err := s.RunDue(context.Background()); !reminder.IsStorage(err) {
		t.Fatalf("err = %v, want StorageError", err)
	}
}

func TestRunLookaheadRepeatsWithoutDeleting(t *testing.T) {
	store := remindertest.New()
	insert(t, store, "Cheese", reminder.NewDate(2024, 3, 11))
	insert(t, store, "Today", reminder.NewDate(2024, 3, 1))
	insert(t, store, "Far", reminder.NewDate(2024, 4, 1))
	rec := &recorder{}
	s := New(store, rec, Options{
		Now:             fixedNow(2024, 3, 1),
		Location:        time.UTC,
		LookaheadWindow: 14 * 24 * time.Hour,
	})

	for i := 0; i < 2; i++ {
		res, err := s.RunLookahead(context.Background())
		if err != nil {
			t.Fatalf("RunLookahead: %v", err)
		}
		if res.Found != 1 || res.Delivered != 1 || res.Deleted != 0 {
			t.Fatalf("run %d result = %+v", i, res)
		}
	}
	got := rec.messages()
	if len(got) != 2 || got[0] != "Cheese (уценка)" || got[1] != "Cheese (уценка)" {
		t.Fatalf("sent = %v", got)
	}
	if n := len(store.All()); n != 3 {
		t.Fatalf("store has %d reminders, want 3", n)
	}
}

func TestDeliveryIsBounded(t *testing.T) {
	store := remindertest.New()
	insert(t, store, "slow", reminder.NewDate(2024, 1, 1))
	insert(t, store, "fast", reminder.NewDate(2024, 1, 1))
	notifier := NotifierFunc(func(ctx context.Context, text string) error {
		if text == "slow" {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	s := New(store, notifier, Options{
		Now:         fixedNow(2024, 1, 2),
		Location:    time.UTC,
		SendTimeout: 20 * time.Millisecond,
	})

	start := time.Now()
	res, err := s.RunDue(context.Background())
	if err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("slow delivery stalled the sweep")
	}
	if res.Failed != 1 || res.Delivered != 1 {
		t.Fatalf("result = %+v", res)
	}
	if !errors.Is(res.Err(), context.DeadlineExceeded) {
		t.Fatalf("Err() = %v, want deadline exceeded", res.Err())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := remindertest.New()
	rec := &recorder{}
	s := New(store, rec, Options{
		DueInterval:       5 * time.Millisecond,
		LookaheadInterval: 5 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	insert(t, store, "late", reminder.NewDate(2000, 1, 1))
	deadline := time.Now().Add(2 * time.Second)
	for len(rec.messages()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if got := rec.messages(); len(got) == 0 || got[0] != "late" {
		t.Fatalf("sent = %v, want the ticker to pick up the late reminder", got)
	}
}

func TestOverlappingRunsAreSkipped(t *testing.T) {
	store := remindertest.New()
	insert(t, store, "a", reminder.NewDate(2024, 1, 1))
	entered := make(chan struct{})
	release := make(chan struct{})
	notifier := NotifierFunc(func(ctx context.Context, text string) error {
		close(entered)
		<-release
		return nil
	})
	s := New(store, notifier, Options{Now: fixedNow(2024, 1, 2), Location: time.UTC, SendTimeout: time.Minute})

	first := make(chan Result, 1)
	go func() {
		res, _ := s.RunDue(context.Background())
		first <- res
	}()
	<-entered

	second, err := s.RunDue(context.Background())
	if err != nil || !second.Skipped || second.Delivered != 0 {
		t.Fatalf("overlapping run = %+v, %v; want skipped", second, err)
	}
	lookahead, _ := s.RunLookahead(context.Background())
	if lookahead.Skipped {
		t.Fatal("lookahead must not be blocked by a due run")
	}

	close(release)
	if res := <-first; res.Delivered != 1 || res.Deleted != 1 {
		t.Fatalf("first run = %+v", res)
	}
}
