// Package client - shared display state machine.
// File: client/display.go
package client

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"iron-verdict/logger"
	"iron-verdict/models"
)

// DisplayPhase is the shared display's rendering phase.
type DisplayPhase string

// Idle waits for judges; Votes renders a result snapshot.
const (
	DisplayPhaseIdle  DisplayPhase = "idle"
	DisplayPhaseVotes DisplayPhase = "votes"
)

// waitingStatus is shown while no results are up.
const waitingStatus = "Waiting for judges..."

// DisplaySnapshot is everything the display renders in the Votes phase.
type DisplaySnapshot struct {
	Votes            models.ResultSet
	Reasons          map[models.JudgePosition]string
	ShowExplanations bool
	LiftType         string
}

// DisplayStateMachine holds the shared display's phase. Every transition
// cancels any scheduled phase advance so a stale callback can never fire
// against newer state.
type DisplayStateMachine struct {
	clock clockwork.Clock

	mu            sync.Mutex
	phase         DisplayPhase
	snapshot      DisplaySnapshot
	status        string
	advanceCancel context.CancelFunc
	advanceGen    int
}

// NewDisplayStateMachine returns a display machine in the Idle phase. A
// nil clock means the real wall clock.
func NewDisplayStateMachine(clock clockwork.Clock) *DisplayStateMachine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DisplayStateMachine{
		clock:  clock,
		phase:  DisplayPhaseIdle,
		status: waitingStatus,
	}
}

// Phase returns the current phase.
func (d *DisplayStateMachine) Phase() DisplayPhase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

// Status returns the status line shown alongside the phase.
func (d *DisplayStateMachine) Status() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Snapshot returns the currently rendered result snapshot.
func (d *DisplayStateMachine) Snapshot() DisplaySnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot
}

// IsValidLift reports whether the rendered result set is a passed lift.
func (d *DisplayStateMachine) IsValidLift() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot.Votes.IsValidLift()
}

// ShowVotes transitions to the Votes phase with the given snapshot,
// cancelling any pending phase advance first.
func (d *DisplayStateMachine) ShowVotes(snapshot DisplaySnapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelAdvanceLocked()
	d.phase = DisplayPhaseVotes
	d.snapshot = snapshot
	d.status = ""
	logger.Debug.Printf("[display] showing votes (lift=%s, valid=%v)",
		snapshot.LiftType, snapshot.Votes.IsValidLift())
}

// Reset transitions back to Idle, cancelling any pending phase advance
// and clearing the rendered snapshot.
func (d *DisplayStateMachine) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelAdvanceLocked()
	d.phase = DisplayPhaseIdle
	d.snapshot = DisplaySnapshot{}
	d.status = waitingStatus
}

// ScheduleAdvance arranges for fn to run after the given delay, replacing
// any advance already pending. The callback is dropped, not fired, if any
// transition happens first.
func (d *DisplayStateMachine) ScheduleAdvance(delay time.Duration, fn func()) {
	d.mu.Lock()
	d.cancelAdvanceLocked()
	ctx, cancel := context.WithCancel(context.Background())
	d.advanceCancel = cancel
	d.advanceGen++
	gen := d.advanceGen
	d.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-d.clock.After(delay):
			d.mu.Lock()
			stale := d.advanceGen != gen
			if !stale {
				d.advanceCancel = nil
			}
			d.mu.Unlock()
			if !stale {
				fn()
			}
		}
	}()
}

func (d *DisplayStateMachine) cancelAdvanceLocked() {
	d.advanceGen++
	if d.advanceCancel != nil {
		d.advanceCancel()
		d.advanceCancel = nil
	}
}
