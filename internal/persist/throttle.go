package persist

import (
	"sync"
	"time"
)

// DefaultSaveInterval is the minimum spacing between physical snapshot writes.
const DefaultSaveInterval = 10 * time.Second

// Throttler coalesces bursts of triggers into at most one run per interval.
// The policy is trailing-edge only: the first trigger in a quiet period arms a
// timer instead of running immediately, further triggers while armed are
// absorbed, and the run that eventually fires sees the state of the last
// trigger. A pending run is never dropped.
type Throttler struct {
	mu       sync.Mutex
	interval time.Duration
	fn       func()
	timer    *time.Timer
	stopped  bool
}

// NewThrottler creates a throttler that invokes fn at most once per interval.
// interval <= 0 falls back to DefaultSaveInterval.
func NewThrottler(interval time.Duration, fn func()) *Throttler {
	if interval <= 0 {
		interval = DefaultSaveInterval
	}
	return &Throttler{interval: interval, fn: fn}
}

// Trigger requests a run. If no run is pending, one is scheduled a full
// interval from now; otherwise the already-pending run covers this trigger.
func (t *Throttler) Trigger() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.timer != nil {
		return
	}
	t.timer = time.AfterFunc(t.interval, t.fire)
}

func (t *Throttler) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	fn := t.fn
	t.mu.Unlock()

	// Run outside the lock so fn may trigger again without deadlocking
	fn()
}

// Flush runs a pending save immediately, if any. Used when a session stops
// and the final state should reach durable storage without waiting.
func (t *Throttler) Flush() {
	t.mu.Lock()
	if t.stopped || t.timer == nil {
		t.mu.Unlock()
		return
	}
	t.timer.Stop()
	t.timer = nil
	fn := t.fn
	t.mu.Unlock()

	fn()
}

// Stop cancels any pending run and ignores further triggers
func (t *Throttler) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Pending reports whether a run is currently scheduled
func (t *Throttler) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}
