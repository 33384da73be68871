package pairing

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpiryTimer_FiresAtDeadline(t *testing.T) {
	var fired atomic.Int32
	var timer ExpiryTimer

	timer.Arm(time.Now().Add(20*time.Millisecond), func() { fired.Add(1) })

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)

	// A fired schedule does not fire again.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestExpiryTimer_CancelIsIdempotent(t *testing.T) {
	var fired atomic.Int32
	var timer ExpiryTimer

	timer.Cancel() // never armed

	timer.Arm(time.Now().Add(30*time.Millisecond), func() { fired.Add(1) })
	timer.Cancel()
	timer.Cancel()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.True(t, timer.Deadline().IsZero())
}

func TestExpiryTimer_RearmSupersedes(t *testing.T) {
	var first, second atomic.Int32
	var timer ExpiryTimer

	timer.Arm(time.Now().Add(30*time.Millisecond), func() { first.Add(1) })
	deadline := time.Now().Add(60 * time.Millisecond)
	timer.Arm(deadline, func() { second.Add(1) })

	assert.Equal(t, deadline, timer.Deadline())

	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), first.Load(), "superseded schedule must not fire")
}

func TestExpiryTimer_PastDeadlineFiresImmediately(t *testing.T) {
	var fired atomic.Int32
	var timer ExpiryTimer

	timer.Arm(time.Now().Add(-time.Second), func() { fired.Add(1) })
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestRemaining(t *testing.T) {
	now := time.Now()

	t.Run("zero deadline", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), Remaining(time.Time{}, now))
	})

	t.Run("future deadline", func(t *testing.T) {
		assert.Equal(t, 45*time.Second, Remaining(now.Add(45*time.Second), now))
	})

	t.Run("past deadline clamps to zero", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), Remaining(now.Add(-time.Millisecond), now))
		assert.Equal(t, time.Duration(0), Remaining(now.Add(-time.Hour), now))
	})

	t.Run("monotone under repeated sampling", func(t *testing.T) {
		deadline := now.Add(time.Second)
		prev := Remaining(deadline, now)
		for _, offset := range []time.Duration{100, 400, 900, 1000, 1500} {
			cur := Remaining(deadline, now.Add(offset*time.Millisecond))
			assert.LessOrEqual(t, cur, prev)
			prev = cur
		}
		assert.Equal(t, time.Duration(0), prev)
	})
}
