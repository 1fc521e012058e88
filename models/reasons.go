// Package models - the card reason catalogue.
// File: models/reasons.go
package models

// LiftTypes lists the lifts a session can score.
var LiftTypes = []string{"squat", "bench", "deadlift"}

// CardReasons maps lift type -> verdict color -> the reasons a judge may
// attach to that card. White needs no reason and has no entry.
var CardReasons = map[string]map[VoteColor][]string{
	"squat": {
		VoteRed: {"Depth"},
		VoteBlue: {
			"Soft knees",
			"Downward movement",
		},
		VoteYellow: {
			"Incomplete lift",
			"Skipped signal",
			"Foot movement",
			"Dropped bar",
			"Supporting contact on legs",
			"Spotter contact",
		},
	},
	"bench": {
		VoteRed: {
			"Elbow depth",
			"No chest contact",
		},
		VoteBlue: {
			"Downward movement",
			"Arms not locked",
		},
		VoteYellow: {
			"Incomplete lift",
			"Skipped signal",
			"Buttocks up",
			"Head up",
			"Feet up",
			"Spotter contact",
			"Shoulder / Hand movement",
			"Heaving / Body thrust",
			"Feet touched bench or supports",
			"Deliberate bar contact with rack supports",
		},
	},
	"deadlift": {
		VoteRed: {
			"Soft knees",
			"Shoulders not back",
		},
		VoteBlue: {
			"Hitching",
			"Downward movement",
		},
		VoteYellow: {
			"Incomplete lift",
			"Dropped bar",
			"Skipped signal",
			"Foot movement",
			"Spotter contact",
		},
	},
}

// ReasonsFor returns the valid reasons for the given lift and card color.
// The result is nil for white cards and unknown lift types.
func ReasonsFor(liftType string, color VoteColor) []string {
	byColor, ok := CardReasons[liftType]
	if !ok {
		return nil
	}
	return byColor[color]
}

// ValidLiftType reports whether the given lift type is known.
func ValidLiftType(liftType string) bool {
	for _, lt := range LiftTypes {
		if lt == liftType {
			return true
		}
	}
	return false
}
