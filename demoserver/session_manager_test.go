// demoserver/session_manager_test.go
package demoserver

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iron-verdict/models"
)

func newTestManager() (*SessionManager, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return NewSessionManager(clock), clock
}

func TestCreateSessionCodeShape(t *testing.T) {
	m, _ := newTestManager()

	code := m.CreateSession("Friday Night Meet")
	require.Len(t, code, sessionCodeLength)
	for _, r := range code {
		assert.Contains(t, sessionCodeAlphabet, string(r))
	}

	// codes are unique
	other := m.CreateSession("Second")
	assert.NotEqual(t, code, other)
}

func TestJoinRoles(t *testing.T) {
	m, _ := newTestManager()
	code := m.CreateSession("meet")

	res := m.Join(code, models.RoleCenterJudge, "")
	require.True(t, res.OK)
	assert.True(t, res.IsHead)
	assert.NotEmpty(t, res.ReconnectToken)

	res = m.Join(code, models.RoleLeftJudge, "")
	require.True(t, res.OK)
	assert.False(t, res.IsHead)

	// displays always succeed and get no token
	res = m.Join(code, models.RoleDisplay, "")
	require.True(t, res.OK)
	assert.Empty(t, res.ReconnectToken)

	// unknown session
	res = m.Join("NOPE1234", models.RoleLeftJudge, "")
	assert.False(t, res.OK)
	assert.Equal(t, "Session not found", res.Error)

	// bogus role
	res = m.Join(code, models.Role("coach"), "")
	assert.False(t, res.OK)
}

func TestJoinOccupiedSlot(t *testing.T) {
	m, _ := newTestManager()
	code := m.CreateSession("meet")

	first := m.Join(code, models.RoleLeftJudge, "")
	require.True(t, first.OK)

	// without the token the slot is refused
	res := m.Join(code, models.RoleLeftJudge, "")
	assert.False(t, res.OK)
	assert.Equal(t, errRoleTaken, res.Error)

	res = m.Join(code, models.RoleLeftJudge, "wrong-token")
	assert.False(t, res.OK)

	// the issued token reclaims the slot and rotates the token
	res = m.Join(code, models.RoleLeftJudge, first.ReconnectToken)
	require.True(t, res.OK)
	assert.NotEqual(t, first.ReconnectToken, res.ReconnectToken)
}

func TestLockVoteAllLocked(t *testing.T) {
	m, _ := newTestManager()
	code := m.CreateSession("meet")
	m.Join(code, models.RoleLeftJudge, "")
	m.Join(code, models.RoleCenterJudge, "")
	m.Join(code, models.RoleRightJudge, "")

	reason := "Depth"
	ok, all := m.LockVote(code, models.PositionLeft, models.VoteRed, &reason)
	require.True(t, ok)
	assert.False(t, all)

	ok, all = m.LockVote(code, models.PositionCenter, models.VoteWhite, nil)
	require.True(t, ok)
	assert.False(t, all)

	ok, all = m.LockVote(code, models.PositionRight, models.VoteWhite, nil)
	require.True(t, ok)
	assert.True(t, all, "last connected judge completes the round")

	votes, reasons, _, found := m.Results(code)
	require.True(t, found)
	assert.Equal(t, models.VoteRed, *votes[models.PositionLeft])
	assert.Equal(t, "Depth", *reasons[models.PositionLeft])
	assert.Nil(t, reasons[models.PositionCenter])
}

func TestAllLockedIgnoresDisconnectedJudges(t *testing.T) {
	m, _ := newTestManager()
	code := m.CreateSession("meet")
	m.Join(code, models.RoleLeftJudge, "")
	m.Join(code, models.RoleCenterJudge, "")

	_, all := m.LockVote(code, models.PositionLeft, models.VoteWhite, nil)
	assert.False(t, all)
	_, all = m.LockVote(code, models.PositionCenter, models.VoteWhite, nil)
	assert.True(t, all, "right judge never joined so two locks complete the round")
}

func TestResetForNextLift(t *testing.T) {
	m, _ := newTestManager()
	code := m.CreateSession("meet")
	m.Join(code, models.RoleLeftJudge, "")
	m.LockVote(code, models.PositionLeft, models.VoteRed, nil)
	m.StartTimer(code)

	require.True(t, m.ResetForNextLift(code))

	snap, found := m.Snapshot(code)
	require.True(t, found)
	left := snap.Judges[models.PositionLeft]
	assert.True(t, left.Connected, "connectivity survives the reset")
	assert.False(t, left.Locked)
	assert.Nil(t, left.CurrentVote)
	assert.Zero(t, snap.TimeRemainingMs)
}

func TestSnapshotTimerCountdown(t *testing.T) {
	m, clock := newTestManager()
	code := m.CreateSession("meet")

	remaining, ok := m.StartTimer(code)
	require.True(t, ok)
	assert.Equal(t, liftClockDuration, remaining)

	clock.Advance(15 * time.Second)
	snap, found := m.Snapshot(code)
	require.True(t, found)
	assert.Equal(t, int64(45000), snap.TimeRemainingMs)

	// long past expiry the snapshot clamps at zero
	clock.Advance(2 * time.Minute)
	snap, _ = m.Snapshot(code)
	assert.Zero(t, snap.TimeRemainingMs)
}

func TestUpdateSettings(t *testing.T) {
	m, _ := newTestManager()
	code := m.CreateSession("meet")

	got, ok := m.UpdateSettings(code, models.Settings{
		ShowExplanations: true,
		LiftType:         "deadlift",
		RequireReasons:   true,
	})
	require.True(t, ok)
	assert.Equal(t, "deadlift", got.LiftType)

	// invalid lift type is rejected, settings unchanged
	_, ok = m.UpdateSettings(code, models.Settings{LiftType: "curl"})
	assert.False(t, ok)
	snap, _ := m.Snapshot(code)
	assert.Equal(t, "deadlift", snap.Settings.LiftType)
}

func TestDeleteSession(t *testing.T) {
	m, _ := newTestManager()
	code := m.CreateSession("meet")
	m.DeleteSession(code)

	_, found := m.Snapshot(code)
	assert.False(t, found)
	res := m.Join(code, models.RoleLeftJudge, "")
	assert.False(t, res.OK)
}
