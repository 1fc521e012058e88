// Package models defines data structures used across the application.
// File: models/session.go
package models

// ----------------------- roles -----------------------

// Role identifies what kind of client joined a session. It is fixed for
// the lifetime of a connection.
type Role string

// The four client roles.
const (
	RoleLeftJudge   Role = "left_judge"
	RoleCenterJudge Role = "center_judge"
	RoleRightJudge  Role = "right_judge"
	RoleDisplay     Role = "display"
)

// JudgePosition is the platform position of a judge role.
type JudgePosition string

// Judge positions, left to right as seen from the audience.
const (
	PositionLeft   JudgePosition = "left"
	PositionCenter JudgePosition = "center"
	PositionRight  JudgePosition = "right"
)

// JudgePositions lists all positions in display order.
var JudgePositions = []JudgePosition{PositionLeft, PositionCenter, PositionRight}

// IsJudge reports whether the role is one of the three judge roles.
func (r Role) IsJudge() bool {
	return r == RoleLeftJudge || r == RoleCenterJudge || r == RoleRightJudge
}

// Position returns the judge position derived from a judge role.
// The second return value is false for non-judge roles.
func (r Role) Position() (JudgePosition, bool) {
	switch r {
	case RoleLeftJudge:
		return PositionLeft, true
	case RoleCenterJudge:
		return PositionCenter, true
	case RoleRightJudge:
		return PositionRight, true
	}
	return "", false
}

// Valid reports whether the role is one of the four known roles.
func (r Role) Valid() bool {
	return r.IsJudge() || r == RoleDisplay
}

// DisplayName returns a human readable name for a role.
func (r Role) DisplayName() string {
	switch r {
	case RoleLeftJudge:
		return "Left Judge"
	case RoleCenterJudge:
		return "Center Judge (Head)"
	case RoleRightJudge:
		return "Right Judge"
	case RoleDisplay:
		return "Display"
	}
	return string(r)
}

// ----------------------- verdict colors -----------------------

// VoteColor is a judge's verdict color.
type VoteColor string

// White is a good lift; red, blue and yellow are fault categories.
const (
	VoteWhite  VoteColor = "white"
	VoteRed    VoteColor = "red"
	VoteBlue   VoteColor = "blue"
	VoteYellow VoteColor = "yellow"
)

// Valid reports whether the color is one of the four verdict colors.
func (c VoteColor) Valid() bool {
	switch c {
	case VoteWhite, VoteRed, VoteBlue, VoteYellow:
		return true
	}
	return false
}

// ----------------------- session model -----------------------

// Settings are the head-judge-controlled session settings.
type Settings struct {
	ShowExplanations bool   `json:"show_explanations"`
	LiftType         string `json:"lift_type"`
	RequireReasons   bool   `json:"require_reasons"`
}

// Session holds the client's view of the joined session. It is replaced
// wholesale on every join_success or settings update.
type Session struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Settings Settings `json:"settings"`
}

// Vote is a single judge's locked verdict.
type Vote struct {
	Color  VoteColor `json:"color"`
	Reason string    `json:"reason,omitempty"` // empty when Color is white
}

// JudgeSlot is the per-position judge view held by displays and the head
// judge: connectivity plus the locked vote for the current lift, if any.
type JudgeSlot struct {
	Position    JudgePosition `json:"position"`
	Connected   bool          `json:"connected"`
	Locked      bool          `json:"locked"`
	CurrentVote *Vote         `json:"current_vote,omitempty"`
}

// ResultSet maps each judge position to its locked vote. A nil entry means
// that judge never locked a vote for the lift.
type ResultSet map[JudgePosition]*Vote

// IsValidLift reports whether the lift passed: at least two of the three
// recorded colors must be white.
func (rs ResultSet) IsValidLift() bool {
	whites := 0
	for _, v := range rs {
		if v != nil && v.Color == VoteWhite {
			whites++
		}
	}
	return whites >= 2
}
