package pairing

import (
	"sync"
	"time"
)

// ExpiryTimer schedules a single callback at an absolute deadline. The
// deadline is the source of truth for artifact validity; any visible
// countdown is derived by sampling Remaining, never by decrementing.
type ExpiryTimer struct {
	mu       sync.Mutex
	timer    *time.Timer
	deadline time.Time
}

// Arm schedules fn to run once at deadline. Re-arming supersedes the
// previous schedule: the old callback is cancelled before the new one is
// installed.
func (t *ExpiryTimer) Arm(deadline time.Time, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.deadline = deadline
	t.timer = time.AfterFunc(time.Until(deadline), fn)
}

// Cancel stops any pending schedule. Safe to call repeatedly and on a
// timer that was never armed.
func (t *ExpiryTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.deadline = time.Time{}
}

// Deadline returns the currently armed deadline, zero if not armed.
func (t *ExpiryTimer) Deadline() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deadline
}

// Remaining derives the countdown for a deadline: max(0, deadline-now).
// Repeated sampling is monotonically non-increasing and exactly zero once
// the deadline has passed.
func Remaining(deadline, now time.Time) time.Duration {
	if deadline.IsZero() {
		return 0
	}
	remaining := deadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
