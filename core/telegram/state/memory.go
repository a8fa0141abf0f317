package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/sroki/core/logger"
)

type entry[T any] struct {
	value   T
	touched time.Time
}

// Manager stores one session per chat in memory. Sessions untouched for longer
// than the TTL are treated as absent and removed lazily or by Prune.
type Manager[T Session] struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[int64]entry[T]

	locksMu sync.Mutex
	locks   map[int64]*chatLock
}

// chatLock is dropped from the map once nobody holds or waits for it.
type chatLock struct {
	mu   sync.Mutex
	refs int
}

// NewMemoryManager constructs an in-memory Manager. A ttl <= 0 disables expiry.
func NewMemoryManager[T Session](ttl time.Duration) *Manager[T] {
	return &Manager[T]{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[int64]entry[T]),
		locks:    make(map[int64]*chatLock),
	}
}

// Lock serializes work on one chat's session and returns the unlock func.
// Updates run concurrently, so a read-modify-write of a session must hold it
// from Get through Put or Clear. Other chats are not blocked.
func (m *Manager[T]) Lock(chatID int64) (unlock func()) {
	m.locksMu.Lock()
	l, ok := m.locks[chatID]
	if !ok {
		l = &chatLock{}
		m.locks[chatID] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.locksMu.Lock()
		if l.refs--; l.refs == 0 {
			delete(m.locks, chatID)
		}
		m.locksMu.Unlock()
	}
}

// SetClock replaces the time source; used by tests.
func (m *Manager[T]) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now == nil {
		now = time.Now
	}
	m.now = now
}

func (m *Manager[T]) expired(e entry[T], now time.Time) bool {
	return m.ttl > 0 && now.Sub(e.touched) > m.ttl
}

// Get returns the live session for a chat.
func (m *Manager[T]) Get(chatID int64) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[chatID]
	if !ok {
		var zero T
		return zero, false
	}
	if m.expired(e, m.now()) {
		delete(m.sessions, chatID)
		var zero T
		return zero, false
	}
	return e.value, true
}

// Put stores the session and refreshes its TTL. Idle sessions are dropped instead.
func (m *Manager[T]) Put(chatID int64, v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.Stage() == StateIdle || v.Stage() == "" {
		delete(m.sessions, chatID)
		return
	}
	m.sessions[chatID] = entry[T]{value: v, touched: m.now()}
}

// Clear removes the session and reports whether one was active.
func (m *Manager[T]) Clear(chatID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[chatID]
	delete(m.sessions, chatID)
	return ok && !m.expired(e, m.now())
}

// GetState returns the current step for a chat, or StateIdle.
func (m *Manager[T]) GetState(chatID int64) State {
	if v, ok := m.Get(chatID); ok {
		return v.Stage()
	}
	return StateIdle
}

// InProgress reports whether the chat has an active, non-idle session.
func (m *Manager[T]) InProgress(chatID int64) bool {
	return m.GetState(chatID) != StateIdle
}

// Len returns the number of stored sessions, expired ones included until pruned.
func (m *Manager[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Prune drops expired sessions and returns how many were removed.
func (m *Manager[T]) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for id, e := range m.sessions {
		if m.expired(e, now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// RunJanitor prunes expired sessions every interval until ctx is done.
func (m *Manager[T]) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Prune(); n > 0 {
				logger.Debug(ctx, "tg", "fsm.prune",
					slog.String("status", "ok"),
					slog.Int("removed", n),
				)
			}
		}
	}
}
