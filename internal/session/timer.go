package session

import (
	"sync"
	"time"
)

// Timer is a cancellable one-shot timer owned by the component that
// created it. At most one callback is pending at a time: scheduling
// replaces any earlier pending fire. After Dispose, Schedule is a no-op,
// so a stale fire can never run against a torn-down session.
type Timer struct {
	mu       sync.Mutex
	timer    *time.Timer
	disposed bool
}

// Schedule arranges fn to run after d, replacing any pending fire.
func (t *Timer) Schedule(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		disposed := t.disposed
		t.mu.Unlock()
		if disposed {
			return
		}
		fn()
	})
}

// Stop cancels any pending fire without disposing the timer.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Dispose cancels any pending fire and refuses all future schedules.
func (t *Timer) Dispose() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disposed = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
