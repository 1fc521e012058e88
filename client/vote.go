// Package client - per-judge vote state machine.
// File: client/vote.go
package client

import (
	"iron-verdict/logger"
	"iron-verdict/models"
)

// VotePhase is the judge's progress through one lift's verdict.
type VotePhase string

// Idle -> SelectingColor -> SelectingReason -> Locked. SelectingReason is
// skipped for white. Locked collapses back to Idle only via an external
// reset.
const (
	VotePhaseIdle            VotePhase = "idle"
	VotePhaseSelectingColor  VotePhase = "selecting_color"
	VotePhaseSelectingReason VotePhase = "selecting_reason"
	VotePhaseLocked          VotePhase = "locked"
)

// VoteStateMachine drives one judge's verdict submission for the current
// lift. Once locked, the vote is immutable until the server sends
// reset_for_next_lift.
type VoteStateMachine struct {
	phase  VotePhase
	color  models.VoteColor
	reason string

	// requireReasons reads the session's current setting; a colored card
	// cannot lock without a reason while it returns true.
	requireReasons func() bool

	// emit carries the lock intent outward.
	emit func(models.VoteLockMessage)
}

// NewVoteStateMachine wires a vote machine to its session context.
func NewVoteStateMachine(requireReasons func() bool, emit func(models.VoteLockMessage)) *VoteStateMachine {
	if requireReasons == nil {
		requireReasons = func() bool { return false }
	}
	if emit == nil {
		emit = func(models.VoteLockMessage) {}
	}
	return &VoteStateMachine{
		phase:          VotePhaseIdle,
		requireReasons: requireReasons,
		emit:           emit,
	}
}

// Phase returns the current phase.
func (v *VoteStateMachine) Phase() VotePhase { return v.phase }

// Color returns the selected color, empty if none.
func (v *VoteStateMachine) Color() models.VoteColor { return v.color }

// Reason returns the selected reason, empty if none.
func (v *VoteStateMachine) Reason() string { return v.reason }

// Locked reports whether the vote has been locked for this lift.
func (v *VoteStateMachine) Locked() bool { return v.phase == VotePhaseLocked }

// SelectColor picks a verdict color, clearing any previously selected
// reason. A white card is immediately ready to lock; any other color
// moves on to reason selection. No-op while locked.
func (v *VoteStateMachine) SelectColor(c models.VoteColor) {
	if v.phase == VotePhaseLocked {
		return
	}
	if !c.Valid() {
		logger.Warn.Printf("[vote] ignoring invalid color %q", c)
		return
	}
	v.color = c
	v.reason = ""
	if c == models.VoteWhite {
		v.phase = VotePhaseSelectingColor
	} else {
		v.phase = VotePhaseSelectingReason
	}
}

// SelectReason records a reason for the current colored card. Only
// meaningful while in the reason-selection step.
func (v *VoteStateMachine) SelectReason(reason string) {
	if v.phase != VotePhaseSelectingReason {
		return
	}
	v.reason = reason
}

// GoBack returns from reason selection to color selection, clearing the
// chosen reason.
func (v *VoteStateMachine) GoBack() {
	if v.phase != VotePhaseSelectingReason {
		return
	}
	v.phase = VotePhaseSelectingColor
	v.reason = ""
}

// CanLock reports whether the vote can be locked: a color is selected,
// the vote is not already locked, and a colored card has a reason
// whenever the session requires one.
func (v *VoteStateMachine) CanLock() bool {
	if v.color == "" || v.phase == VotePhaseLocked {
		return false
	}
	if v.color == models.VoteWhite {
		return true
	}
	if v.requireReasons() {
		return v.reason != ""
	}
	return true
}

// Lock locks the vote and emits the vote_lock intent. The reason is null
// for white cards. Calling Lock while already locked is a no-op.
func (v *VoteStateMachine) Lock() {
	if !v.CanLock() {
		return
	}
	v.phase = VotePhaseLocked

	var reason *string
	if v.color != models.VoteWhite && v.reason != "" {
		r := v.reason
		reason = &r
	}
	logger.Info.Printf("[vote] locking %s (reason=%v)", v.color, v.reason)
	v.emit(models.VoteLockMessage{
		Type:   models.KindVoteLock,
		Color:  v.color,
		Reason: reason,
	})
}

// Reset clears the machine back to Idle. Only the externally-driven
// reset_for_next_lift path calls this.
func (v *VoteStateMachine) Reset() {
	v.phase = VotePhaseIdle
	v.color = ""
	v.reason = ""
}

// RestoreLocked adopts a locked vote from a server snapshot after a
// reconnect, without re-emitting the lock intent.
func (v *VoteStateMachine) RestoreLocked(color models.VoteColor, reason string) {
	v.phase = VotePhaseLocked
	v.color = color
	if color == models.VoteWhite {
		reason = ""
	}
	v.reason = reason
}
