// client/display_test.go
package client

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"iron-verdict/models"
)

func white() *models.Vote { return &models.Vote{Color: models.VoteWhite} }

func red(reason string) *models.Vote {
	return &models.Vote{Color: models.VoteRed, Reason: reason}
}

func TestDisplay_InitialStateIsIdle(t *testing.T) {
	d := NewDisplayStateMachine(nil)
	assert.Equal(t, DisplayPhaseIdle, d.Phase())
	assert.Equal(t, "Waiting for judges...", d.Status())
}

func TestDisplay_ShowVotesThenReset(t *testing.T) {
	d := NewDisplayStateMachine(nil)

	snapshot := DisplaySnapshot{
		Votes: models.ResultSet{
			models.PositionLeft:   white(),
			models.PositionCenter: red("Depth"),
			models.PositionRight:  white(),
		},
		Reasons:          map[models.JudgePosition]string{models.PositionCenter: "Depth"},
		ShowExplanations: true,
		LiftType:         "squat",
	}
	d.ShowVotes(snapshot)

	assert.Equal(t, DisplayPhaseVotes, d.Phase())
	assert.Empty(t, d.Status())
	assert.Equal(t, snapshot, d.Snapshot())
	assert.True(t, d.IsValidLift(), "two whites out of three is a good lift")

	d.Reset()
	assert.Equal(t, DisplayPhaseIdle, d.Phase())
	assert.Equal(t, "Waiting for judges...", d.Status())
	assert.Empty(t, d.Snapshot().Votes)
}

func TestDisplay_LiftValidity(t *testing.T) {
	cases := []struct {
		name  string
		votes models.ResultSet
		valid bool
	}{
		{
			name: "two whites pass",
			votes: models.ResultSet{
				models.PositionLeft:   white(),
				models.PositionCenter: red("Depth"),
				models.PositionRight:  white(),
			},
			valid: true,
		},
		{
			name: "one white fails",
			votes: models.ResultSet{
				models.PositionLeft:   red("Depth"),
				models.PositionCenter: {Color: models.VoteBlue, Reason: "Soft knees"},
				models.PositionRight:  white(),
			},
			valid: false,
		},
		{
			name: "missing vote counts against",
			votes: models.ResultSet{
				models.PositionLeft:  white(),
				models.PositionRight: nil,
			},
			valid: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, tc.votes.IsValidLift())
		})
	}
}

func TestDisplay_TransitionCancelsScheduledAdvance(t *testing.T) {
	d := NewDisplayStateMachine(nil)
	var fired atomic.Int32

	d.ScheduleAdvance(30*time.Millisecond, func() { fired.Add(1) })
	d.ShowVotes(DisplaySnapshot{LiftType: "bench"})

	time.Sleep(80 * time.Millisecond)
	assert.EqualValues(t, 0, fired.Load(), "a transition must drop the pending advance")
}

func TestDisplay_ScheduleAdvanceReplacesPending(t *testing.T) {
	d := NewDisplayStateMachine(nil)
	var first, second atomic.Int32

	d.ScheduleAdvance(30*time.Millisecond, func() { first.Add(1) })
	d.ScheduleAdvance(30*time.Millisecond, func() { second.Add(1) })

	time.Sleep(80 * time.Millisecond)
	assert.EqualValues(t, 0, first.Load(), "replaced advance must not fire")
	assert.EqualValues(t, 1, second.Load())
}

func TestDisplay_AdvanceFiresWhenUndisturbed(t *testing.T) {
	d := NewDisplayStateMachine(nil)
	fired := make(chan struct{}, 1)

	d.ScheduleAdvance(10*time.Millisecond, func() { fired <- struct{}{} })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("scheduled advance never fired")
	}
}
