package state

import (
	"sync"
	"testing"
	"time"
)

type testSession struct {
	step State
	note string
}

func (s testSession) Stage() State { return s.step }

func TestManagerPutGetClear(t *testing.T) {
	m := NewMemoryManager[testSession](time.Minute)
	if m.InProgress(1) {
		t.Fatal("fresh manager reports progress")
	}
	m.Put(1, testSession{step: "await_text", note: "x"})
	got, ok := m.Get(1)
	if !ok || got.note != "x" {
		t.Fatalf("Get() = %+v, %v", got, ok)
	}
	if m.GetState(1) != "await_text" {
		t.Fatalf("GetState() = %q", m.GetState(1))
	}
	if m.InProgress(2) {
		t.Fatal("sessions leak across chats")
	}
	if !m.Clear(1) {
		t.Fatal("Clear() reported no active session")
	}
	if m.Clear(1) {
		t.Fatal("second Clear() reported an active session")
	}
}

func TestManagerPutIdleDrops(t *testing.T) {
	m := NewMemoryManager[testSession](time.Minute)
	m.Put(1, testSession{step: "await_text"})
	m.Put(1, testSession{step: StateIdle})
	if m.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", m.Len())
	}
}

func TestManagerExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryManager[testSession](30 * time.Minute)
	m.SetClock(func() time.Time { return now })

	m.Put(1, testSession{step: "await_unit"})
	m.Put(2, testSession{step: "await_unit"})

	now = now.Add(20 * time.Minute)
	m.Put(2, testSession{step: "await_quantity"})

	now = now.Add(15 * time.Minute)
	if m.InProgress(1) {
		t.Fatal("expired session still in progress")
	}
	if !m.InProgress(2) {
		t.Fatal("refreshed session expired")
	}

	m.Put(3, testSession{step: "await_text"})
	now = now.Add(31 * time.Minute)
	if removed := m.Prune(); removed != 2 {
		t.Fatalf("Prune() = %d, want 2", removed)
	}
	if m.Len() != 0 {
		t.Fatalf("Len() = %d after prune", m.Len())
	}
}

func TestManagerNoTTL(t *testing.T) {
	now := time.Now()
	m := NewMemoryManager[testSession](0)
	m.SetClock(func() time.Time { return now })
	m.Put(1, testSession{step: "await_text"})
	now = now.Add(1000 * time.Hour)
	if !m.InProgress(1) {
		t.Fatal("ttl <= 0 must disable expiry")
	}
}

func TestManagerLockSerializesOneChat(t *testing.T) {
	m := NewMemoryManager[testSession](time.Minute)
	m.Put(1, testSession{step: "await_text"})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer m.Lock(1)()
			s, _ := m.Get(1)
			time.Sleep(time.Millisecond)
			s.note += "x"
			m.Put(1, s)
		}()
	}
	wg.Wait()

	got, _ := m.Get(1)
	if len(got.note) != 20 {
		t.Fatalf("lost updates: note has %d marks, want 20", len(got.note))
	}
	m.locksMu.Lock()
	left := len(m.locks)
	m.locksMu.Unlock()
	if left != 0 {
		t.Fatalf("%d chat locks left behind", left)
	}
}

func TestManagerLockLeavesOtherChatsFree(t *testing.T) {
	m := NewMemoryManager[testSession](time.Minute)
	unlock := m.Lock(1)
	defer unlock()

	done := make(chan struct{})
	go func() {
		m.Lock(2)()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on chat 1 blocked chat 2")
	}
}
