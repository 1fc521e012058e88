// Package client implements the real-time session client core.
// File: client/timer.go
package client

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"iron-verdict/logger"
)

// defaultTickInterval is how often a running countdown recomputes and
// reports its remaining time.
const defaultTickInterval = 100 * time.Millisecond

// TickFunc receives countdown updates. expired is true on the final tick
// only, when secondsLeft has reached zero.
type TickFunc func(secondsLeft int, expired bool)

// CountdownTimer is a wall-clock countdown. The remaining time is
// recomputed from an absolute deadline on every tick rather than
// decremented, so a paused or throttled process cannot drift the clock.
// At most one countdown is active per timer; starting a new one
// supersedes the old.
type CountdownTimer struct {
	clock clockwork.Clock

	// TickInterval overrides the tick cadence; tests shrink it.
	TickInterval time.Duration

	mu         sync.Mutex
	generation int
	cancel     context.CancelFunc
}

// NewCountdownTimer returns a timer driven by the given clock. A nil
// clock means the real wall clock.
func NewCountdownTimer(clock clockwork.Clock) *CountdownTimer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CountdownTimer{clock: clock}
}

// Start begins a countdown of the given duration, superseding any
// countdown already running. onTick fires every tick interval; the final
// tick reports (0, true) exactly once and the timer stops itself.
func (t *CountdownTimer) Start(remaining time.Duration, onTick TickFunc) {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.generation++
	gen := t.generation
	deadline := t.clock.Now().Add(remaining)
	interval := t.interval()
	t.mu.Unlock()

	logger.Debug.Printf("[CountdownTimer] starting %v countdown (gen=%d)", remaining, gen)

	ticker := t.clock.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				t.mu.Lock()
				left := deadline.Sub(t.clock.Now())
				if left < 0 {
					left = 0
				}
				secs := int((left + time.Second - 1) / time.Second)
				expired := secs == 0
				// the staleness check is the last thing before delivery:
				// a Start during the computation supersedes this tick
				if t.generation != gen {
					t.mu.Unlock()
					return
				}
				if expired && t.cancel != nil {
					t.cancel()
					t.cancel = nil
				}
				t.mu.Unlock()

				onTick(secs, expired)
				if expired {
					logger.Debug.Printf("[CountdownTimer] countdown expired (gen=%d)", gen)
					return
				}
			}
		}
	}()
}

// Stop cancels the active countdown, if any. It is safe to call with no
// countdown running and safe to call repeatedly.
func (t *CountdownTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.generation++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Active reports whether a countdown is currently running.
func (t *CountdownTimer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

func (t *CountdownTimer) interval() time.Duration {
	if t.TickInterval > 0 {
		return t.TickInterval
	}
	return defaultTickInterval
}
