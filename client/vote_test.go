// client/vote_test.go
package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iron-verdict/models"
)

// voteEmitRecorder captures emitted vote_lock intents.
type voteEmitRecorder struct {
	emitted []models.VoteLockMessage
}

func (r *voteEmitRecorder) emit(msg models.VoteLockMessage) {
	r.emitted = append(r.emitted, msg)
}

func newVoteMachine(requireReasons bool) (*VoteStateMachine, *voteEmitRecorder) {
	rec := &voteEmitRecorder{}
	vm := NewVoteStateMachine(func() bool { return requireReasons }, rec.emit)
	return vm, rec
}

// Scenario: red card with reason "Depth" locks and emits the reason.
func TestVote_ColoredCardWithReasonLocks(t *testing.T) {
	vm, rec := newVoteMachine(true)

	vm.SelectColor(models.VoteRed)
	assert.Equal(t, VotePhaseSelectingReason, vm.Phase())
	assert.False(t, vm.CanLock(), "reason required but not yet selected")

	vm.SelectReason("Depth")
	require.True(t, vm.CanLock())

	vm.Lock()
	assert.Equal(t, VotePhaseLocked, vm.Phase())
	require.Len(t, rec.emitted, 1)
	assert.Equal(t, models.KindVoteLock, rec.emitted[0].Type)
	assert.Equal(t, models.VoteRed, rec.emitted[0].Color)
	require.NotNil(t, rec.emitted[0].Reason)
	assert.Equal(t, "Depth", *rec.emitted[0].Reason)
}

// Scenario: white card is lockable immediately; the emitted reason is null.
func TestVote_WhiteCardLocksWithoutReason(t *testing.T) {
	vm, rec := newVoteMachine(true)

	vm.SelectColor(models.VoteWhite)
	assert.Equal(t, VotePhaseSelectingColor, vm.Phase(), "white skips the reason step")
	require.True(t, vm.CanLock())

	vm.Lock()
	require.Len(t, rec.emitted, 1)
	assert.Equal(t, models.VoteWhite, rec.emitted[0].Color)
	assert.Nil(t, rec.emitted[0].Reason)
}

func TestVote_CanLockRules(t *testing.T) {
	vm, _ := newVoteMachine(true)
	assert.False(t, vm.CanLock(), "no color selected")

	vm.SelectColor(models.VoteBlue)
	assert.False(t, vm.CanLock(), "reason required for colored card")

	vm.SelectReason("Downward movement")
	assert.True(t, vm.CanLock())

	// without the requirement a colored card locks reason-free
	relaxed, _ := newVoteMachine(false)
	relaxed.SelectColor(models.VoteYellow)
	assert.True(t, relaxed.CanLock())
}

func TestVote_LockedVoteIsImmutableUntilReset(t *testing.T) {
	vm, rec := newVoteMachine(false)

	vm.SelectColor(models.VoteRed)
	vm.SelectReason("Depth")
	vm.Lock()
	require.Len(t, rec.emitted, 1)

	// nothing changes the recorded vote while locked
	vm.SelectColor(models.VoteWhite)
	vm.SelectReason("something else")
	vm.Lock()
	assert.Equal(t, models.VoteRed, vm.Color())
	assert.Equal(t, "Depth", vm.Reason())
	assert.Len(t, rec.emitted, 1, "lock is idempotent")

	// only the external reset unlocks
	vm.Reset()
	assert.Equal(t, VotePhaseIdle, vm.Phase())
	assert.Empty(t, vm.Color())
	assert.Empty(t, vm.Reason())
}

func TestVote_GoBackClearsReason(t *testing.T) {
	vm, _ := newVoteMachine(true)

	vm.SelectColor(models.VoteYellow)
	vm.SelectReason("Dropped bar")
	vm.GoBack()

	assert.Equal(t, VotePhaseSelectingColor, vm.Phase())
	assert.Empty(t, vm.Reason())
	assert.False(t, vm.CanLock(), "reason was cleared by going back")
}

func TestVote_SelectColorClearsPriorReason(t *testing.T) {
	vm, _ := newVoteMachine(true)

	vm.SelectColor(models.VoteRed)
	vm.SelectReason("Depth")
	vm.SelectColor(models.VoteBlue)

	assert.Empty(t, vm.Reason(), "switching colors discards the old reason")
	assert.Equal(t, VotePhaseSelectingReason, vm.Phase())
}

func TestVote_RestoreLockedDoesNotEmit(t *testing.T) {
	vm, rec := newVoteMachine(true)

	vm.RestoreLocked(models.VoteRed, "Depth")
	assert.True(t, vm.Locked())
	assert.Equal(t, models.VoteRed, vm.Color())
	assert.Empty(t, rec.emitted, "resync restore must not re-submit the vote")

	// a restored white vote never carries a reason
	vm2, _ := newVoteMachine(true)
	vm2.RestoreLocked(models.VoteWhite, "stale reason")
	assert.Empty(t, vm2.Reason())
}
