// Package demoserver is a loopback session server: a single-process
// implementation of the server contract the client core talks to. It
// backs demo mode and the integration tests.
// File: demoserver/session_manager.go
package demoserver

import (
	"crypto/rand"
	"math/big"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"iron-verdict/logger"
	"iron-verdict/models"
)

const sessionCodeLength = 8

const sessionCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// liftClockDuration is the fixed attempt clock length.
const liftClockDuration int64 = 60000

// judgeState holds one judge slot's server-side state.
type judgeState struct {
	Connected      bool
	IsHead         bool
	Locked         bool
	CurrentVote    *models.VoteColor
	CurrentReason  *string
	ReconnectToken string
}

// sessionState holds per-session, in-memory data.
type sessionState struct {
	Code     string
	Name     string
	Settings models.Settings
	Judges   map[models.JudgePosition]*judgeState

	// TimerStartedAtMs is the clock reading when the attempt clock was
	// started, in unix milliseconds; zero means no running clock.
	TimerStartedAtMs int64
}

// JoinResult is the outcome of a join attempt.
type JoinResult struct {
	OK     bool
	IsHead bool
	// Error is the client-facing join_error message when !OK.
	Error string
	// ReconnectToken is issued on successful judge joins.
	ReconnectToken string
}

// errRoleTaken is the transient join error a client retries through.
const errRoleTaken = "Role already taken"

// SessionManager owns all live sessions. All methods are safe for
// concurrent use.
type SessionManager struct {
	clock clockwork.Clock

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// NewSessionManager builds an empty manager on the given clock.
func NewSessionManager(clock clockwork.Clock) *SessionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SessionManager{
		clock:    clock,
		sessions: make(map[string]*sessionState),
	}
}

// CreateSession allocates a new session and returns its code.
func (m *SessionManager) CreateSession(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	code := m.generateCodeLocked()
	judges := make(map[models.JudgePosition]*judgeState)
	for _, pos := range models.JudgePositions {
		judges[pos] = &judgeState{IsHead: pos == models.PositionCenter}
	}
	m.sessions[code] = &sessionState{
		Code: code,
		Name: name,
		Settings: models.Settings{
			LiftType: "squat",
		},
		Judges: judges,
	}
	logger.Info.Printf("[demoserver] created session %s (%q)", code, name)
	return code
}

// generateCodeLocked returns a fresh 8-character code not in use.
func (m *SessionManager) generateCodeLocked() string {
	for {
		buf := make([]byte, sessionCodeLength)
		for i := range buf {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(sessionCodeAlphabet))))
			if err != nil {
				logger.Error.Printf("[demoserver] code generation failed: %v", err)
				n = big.NewInt(0)
			}
			buf[i] = sessionCodeAlphabet[n.Int64()]
		}
		code := string(buf)
		if _, exists := m.sessions[code]; !exists {
			return code
		}
	}
}

// Join binds a role in a session. Display roles always succeed for an
// existing session; a judge slot already marked connected fails with
// errRoleTaken unless the caller presents that slot's reconnect token,
// in which case the slot is handed over.
func (m *SessionManager) Join(code string, role models.Role, reconnectToken string) JoinResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !role.Valid() {
		return JoinResult{Error: "Invalid role"}
	}
	sess, ok := m.sessions[code]
	if !ok {
		return JoinResult{Error: "Session not found"}
	}

	if role == models.RoleDisplay {
		return JoinResult{OK: true}
	}

	pos, _ := role.Position()
	judge := sess.Judges[pos]
	if judge.Connected {
		if reconnectToken == "" || reconnectToken != judge.ReconnectToken {
			return JoinResult{Error: errRoleTaken}
		}
		// valid token: the old connection is superseded
		logger.Warn.Printf("[demoserver] %s reclaiming %s in session %s", role, pos, code)
	}

	judge.Connected = true
	judge.ReconnectToken = uuid.NewString()
	logger.Info.Printf("[demoserver] %s joined session %s", role, code)
	return JoinResult{OK: true, IsHead: judge.IsHead, ReconnectToken: judge.ReconnectToken}
}

// SetDisconnected clears a judge slot's connected flag. Reports whether
// the session still exists.
func (m *SessionManager) SetDisconnected(code string, pos models.JudgePosition) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[code]
	if !ok {
		return false
	}
	sess.Judges[pos].Connected = false
	return true
}

// LockVote records a judge's locked verdict. The second return reports
// whether every connected judge has now locked.
func (m *SessionManager) LockVote(code string, pos models.JudgePosition, color models.VoteColor, reason *string) (ok, allLocked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, found := m.sessions[code]
	if !found {
		return false, false
	}
	judge := sess.Judges[pos]
	judge.CurrentVote = &color
	judge.CurrentReason = reason
	judge.Locked = true

	allLocked = true
	for _, j := range sess.Judges {
		if j.Connected && !j.Locked {
			allLocked = false
			break
		}
	}
	return true, allLocked
}

// Results returns the locked votes and reasons of every connected judge.
func (m *SessionManager) Results(code string) (votes map[models.JudgePosition]*models.VoteColor, reasons map[models.JudgePosition]*string, settings models.Settings, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, found := m.sessions[code]
	if !found {
		return nil, nil, models.Settings{}, false
	}
	votes = make(map[models.JudgePosition]*models.VoteColor)
	reasons = make(map[models.JudgePosition]*string)
	for pos, j := range sess.Judges {
		if !j.Connected {
			continue
		}
		votes[pos] = j.CurrentVote
		reasons[pos] = j.CurrentReason
	}
	return votes, reasons, sess.Settings, true
}

// ResetForNextLift clears every judge's vote and the attempt clock.
func (m *SessionManager) ResetForNextLift(code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[code]
	if !ok {
		return false
	}
	for _, j := range sess.Judges {
		j.CurrentVote = nil
		j.CurrentReason = nil
		j.Locked = false
	}
	sess.TimerStartedAtMs = 0
	return true
}

// UpdateSettings replaces the session's display settings.
func (m *SessionManager) UpdateSettings(code string, settings models.Settings) (models.Settings, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[code]
	if !ok {
		return models.Settings{}, false
	}
	if !models.ValidLiftType(settings.LiftType) {
		return sess.Settings, false
	}
	sess.Settings = settings
	return sess.Settings, true
}

// StartTimer marks the attempt clock as started now and returns the
// full clock duration in milliseconds.
func (m *SessionManager) StartTimer(code string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[code]
	if !ok {
		return 0, false
	}
	sess.TimerStartedAtMs = m.clock.Now().UnixMilli()
	return liftClockDuration, true
}

// ResetTimer clears the attempt clock.
func (m *SessionManager) ResetTimer(code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[code]
	if !ok {
		return false
	}
	sess.TimerStartedAtMs = 0
	return true
}

// DeleteSession drops a session from memory.
func (m *SessionManager) DeleteSession(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[code]; ok {
		delete(m.sessions, code)
		logger.Info.Printf("[demoserver] deleted session %s", code)
	}
}

// Snapshot builds the authoritative session state sent on join_success.
// Reconnect tokens are never exposed in snapshots.
func (m *SessionManager) Snapshot(code string) (*models.SessionSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[code]
	if !ok {
		return nil, false
	}

	judges := make(map[models.JudgePosition]*models.JudgeSnapshot)
	for pos, j := range sess.Judges {
		judges[pos] = &models.JudgeSnapshot{
			Connected:     j.Connected,
			Locked:        j.Locked,
			CurrentVote:   j.CurrentVote,
			CurrentReason: j.CurrentReason,
		}
	}

	var remaining int64
	if sess.TimerStartedAtMs > 0 {
		elapsed := m.clock.Now().UnixMilli() - sess.TimerStartedAtMs
		remaining = liftClockDuration - elapsed
		if remaining < 0 {
			remaining = 0
		}
	}

	return &models.SessionSnapshot{
		Name:            sess.Name,
		Settings:        sess.Settings,
		TimeRemainingMs: remaining,
		Judges:          judges,
	}, true
}
