package session

import (
	"sync"
	"time"

	"pairpad/internal/models"
	"pairpad/internal/transport"
)

// DefaultThrottleWindow is the minimum interval between outbound broadcast
// sends for one broadcaster.
const DefaultThrottleWindow = 75 * time.Millisecond

// Broadcaster rate-limits outbound broadcasts with last-value-wins
// coalescing. The first send in a quiet window goes out immediately;
// anything faster overwrites a single pending slot that is flushed when
// the window elapses. Intermediate payloads are deliberately lost: later
// snapshots supersede earlier ones.
type Broadcaster struct {
	mu       sync.Mutex
	ch       transport.Channel
	window   time.Duration
	lastSent time.Time
	pending  *models.Envelope
	timer    Timer
	now      func() time.Time
}

// NewBroadcaster wraps ch with a throttle window. A zero window selects
// the default. ch may be nil, in which case every send is dropped.
func NewBroadcaster(ch transport.Channel, window time.Duration) *Broadcaster {
	if window <= 0 {
		window = DefaultThrottleWindow
	}
	return &Broadcaster{ch: ch, window: window, now: time.Now}
}

// Send transmits env now if the window allows, otherwise parks it in the
// pending slot for the deferred flush. Calls with no channel attached are
// dropped silently; there is no buffering across reconnects.
func (b *Broadcaster) Send(env models.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch == nil {
		return
	}

	now := b.now()
	elapsed := now.Sub(b.lastSent)
	if elapsed >= b.window {
		b.lastSent = now
		b.pending = nil
		env.Stamp(now.UnixMilli())
		b.ch.Publish(env)
		return
	}

	b.pending = &env
	b.timer.Schedule(b.window-elapsed, b.flush)
}

// flush sends the pending payload, if one survived until the deferred
// fire. Finding the slot empty (an immediate send reset the window in the
// meantime) is the normal defensive case, not an error.
func (b *Broadcaster) flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil || b.ch == nil {
		return
	}
	env := *b.pending
	b.pending = nil
	now := b.now()
	b.lastSent = now
	env.Stamp(now.UnixMilli())
	b.ch.Publish(env)
}

// Close drops any pending payload and cancels the deferred flush. The
// broadcaster cannot be reused afterwards.
func (b *Broadcaster) Close() {
	b.timer.Dispose()
	b.mu.Lock()
	b.pending = nil
	b.ch = nil
	b.mu.Unlock()
}
