// Package client - inbound message dispatch.
// File: client/router.go
package client

import (
	"encoding/json"

	"iron-verdict/logger"
	"iron-verdict/models"
)

// Screen is the client's top-level UI surface.
type Screen string

// Landing is the pre-session screen; Judge and Display are the in-session
// screens derived from the bound role.
const (
	ScreenLanding Screen = "landing"
	ScreenJudge   Screen = "judge"
	ScreenDisplay Screen = "display"
)

// roleAlreadyTaken is the one join rejection treated as transient: the
// server closes the socket and the transport's own reconnect loop retries.
const roleAlreadyTaken = "Role already taken"

// ClientState is the mutable session context the router's handlers
// operate on. Handlers receive it explicitly rather than closing over an
// implicit shared object, so each handler can be unit tested in
// isolation.
type ClientState struct {
	Role           models.Role
	IsHead         bool
	Screen         Screen
	Session        models.Session
	ReconnectToken string

	ServerRestarting bool
	ResultsShown     bool

	// what the judges' own screens render after show_results
	Results models.ResultSet
	Reasons map[models.JudgePosition]string

	// live connectivity per judge position
	JudgeConnected map[models.JudgePosition]bool

	// derived countdown state, not persisted
	TimerSeconds int
	TimerExpired bool
}

// NewClientState returns the pre-session state for a client with the
// given role and session code.
func NewClientState(role models.Role, sessionCode string) *ClientState {
	return &ClientState{
		Role:           role,
		Screen:         ScreenLanding,
		Session:        models.Session{Code: sessionCode},
		JudgeConnected: make(map[models.JudgePosition]bool),
	}
}

// RouterHooks are the orchestrator actions handlers may trigger. Every
// hook is optional; a nil hook is skipped.
type RouterHooks struct {
	// Notify surfaces text to the user. Payload strings pass through as
	// plain text only, never as markup.
	Notify func(text string)

	// PushSettings re-broadcasts the head judge's locally cached settings
	// after join_success, reconciling the server with local storage.
	PushSettings func()

	// PersistToken stores a freshly issued reconnect token.
	PersistToken func(token string)

	// CloseTransport force-stops the connection (fatal join errors,
	// session end).
	CloseTransport func()

	// StartCountdown starts the lift countdown from a remaining-ms value;
	// StopCountdown halts it in place; ResetCountdown stops it and
	// restores the configured default display.
	StartCountdown func(remainingMs int64)
	StopCountdown  func()
	ResetCountdown func()
}

// Router maps inbound message kinds onto state mutation. Unknown kinds
// are ignored so newer servers stay compatible with older clients.
type Router struct {
	State   *ClientState
	Votes   *VoteStateMachine
	Display *DisplayStateMachine
	Hooks   RouterHooks
}

// HandleRaw decodes a frame and dispatches it. Malformed frames are
// logged and dropped.
func (r *Router) HandleRaw(data []byte) {
	var msg models.InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Warn.Printf("[router] invalid frame: %v", err)
		return
	}
	r.Dispatch(&msg)
}

// Dispatch applies one inbound message to the client state.
func (r *Router) Dispatch(msg *models.InboundMessage) {
	switch msg.Type {
	case models.KindJoinSuccess:
		r.handleJoinSuccess(msg)
	case models.KindJoinError:
		r.handleJoinError(msg)
	case models.KindError:
		r.notify("Error: " + msg.Message)
	case models.KindShowResults:
		r.handleShowResults(msg)
	case models.KindResetForNextLift:
		r.handleResetForNextLift()
	case models.KindTimerStart:
		if r.Hooks.StartCountdown != nil {
			r.Hooks.StartCountdown(msg.TimeRemainingMs)
		}
	case models.KindTimerReset:
		if r.Hooks.ResetCountdown != nil {
			r.Hooks.ResetCountdown()
		}
	case models.KindSessionEnded:
		r.handleSessionEnded()
	case models.KindSettingsUpdate:
		r.handleSettingsUpdate(msg)
	case models.KindServerRestarting:
		r.State.ServerRestarting = true
	case models.KindJudgeStatusUpdate:
		r.State.JudgeConnected[msg.Position] = msg.Connected
	default:
		// forward-compatible no-op
		logger.Debug.Printf("[router] ignoring unknown message kind %q", msg.Type)
	}
}

// handleJoinSuccess adopts the authoritative session snapshot. After any
// reconnect the snapshot fully supersedes local guesses about lock and
// connectivity state.
func (r *Router) handleJoinSuccess(msg *models.InboundMessage) {
	st := r.State
	st.IsHead = msg.IsHead
	if st.Role == models.RoleDisplay {
		st.Screen = ScreenDisplay
	} else {
		st.Screen = ScreenJudge
	}

	snap := msg.SessionState
	if snap != nil {
		st.Session.Name = snap.Name
		if st.IsHead {
			// the head judge's local settings cache wins over the
			// snapshot; only require_reasons is adopted, and the cache
			// goes back out via PushSettings below
			st.Session.Settings.RequireReasons = snap.Settings.RequireReasons
		} else {
			st.Session.Settings = snap.Settings
		}

		for pos, judge := range snap.Judges {
			if judge != nil {
				st.JudgeConnected[pos] = judge.Connected
			}
		}

		// restore this judge's own locked vote from before the reconnect
		if pos, ok := st.Role.Position(); ok {
			if judge := snap.Judges[pos]; judge != nil && judge.Locked && judge.CurrentVote != nil {
				reason := ""
				if judge.CurrentReason != nil {
					reason = *judge.CurrentReason
				}
				r.Votes.RestoreLocked(*judge.CurrentVote, reason)
			}
		}
	}

	if msg.ReconnectToken != "" {
		st.ReconnectToken = msg.ReconnectToken
		if r.Hooks.PersistToken != nil {
			r.Hooks.PersistToken(msg.ReconnectToken)
		}
	}

	// loop-breaker: the head judge pushes its cached settings back out so
	// server state and local storage reconcile
	if st.IsHead && r.Hooks.PushSettings != nil {
		r.Hooks.PushSettings()
	}

	if snap != nil && snap.TimeRemainingMs > 0 && r.Hooks.StartCountdown != nil {
		r.Hooks.StartCountdown(snap.TimeRemainingMs)
	}
	logger.Info.Printf("[router] joined session %q as %s (head=%v)",
		st.Session.Name, st.Role, st.IsHead)
}

// handleJoinError distinguishes the transient role-taken race from fatal
// rejections. The transient case relies on the reconnect loop to retry.
func (r *Router) handleJoinError(msg *models.InboundMessage) {
	if msg.Message == roleAlreadyTaken {
		logger.Debug.Printf("[router] role taken; leaving retry to the reconnect loop")
		return
	}
	if r.Hooks.CloseTransport != nil {
		r.Hooks.CloseTransport()
	}
	r.State.ReconnectToken = ""
	r.State.Screen = ScreenLanding
	r.notify("Failed to join session: " + msg.Message)
}

func (r *Router) handleShowResults(msg *models.InboundMessage) {
	st := r.State
	st.ResultsShown = true

	results := make(models.ResultSet, len(models.JudgePositions))
	reasons := make(map[models.JudgePosition]string, len(models.JudgePositions))
	for _, pos := range models.JudgePositions {
		if color := msg.Votes[pos]; color != nil {
			vote := &models.Vote{Color: *color}
			if reason := msg.Reasons[pos]; reason != nil && *color != models.VoteWhite {
				vote.Reason = *reason
				reasons[pos] = *reason
			}
			results[pos] = vote
		}
	}
	st.Results = results
	st.Reasons = reasons

	if r.Hooks.StopCountdown != nil {
		r.Hooks.StopCountdown()
	}

	if st.Role == models.RoleDisplay {
		snapshot := DisplaySnapshot{
			Votes:    results,
			Reasons:  reasons,
			LiftType: st.Session.Settings.LiftType,
		}
		if msg.ShowExplanations != nil {
			snapshot.ShowExplanations = *msg.ShowExplanations
		}
		if msg.LiftType != nil {
			snapshot.LiftType = *msg.LiftType
		}
		r.Display.ShowVotes(snapshot)
	}
}

func (r *Router) handleResetForNextLift() {
	st := r.State
	r.Votes.Reset()
	st.Results = nil
	st.Reasons = nil
	st.ResultsShown = false
	if r.Hooks.ResetCountdown != nil {
		r.Hooks.ResetCountdown()
	}
	if st.Role == models.RoleDisplay {
		r.Display.Reset()
	}
}

func (r *Router) handleSessionEnded() {
	r.notify("Session ended")
	if r.Hooks.CloseTransport != nil {
		r.Hooks.CloseTransport()
	}
	r.State.ReconnectToken = ""
	r.State.Screen = ScreenLanding
}

// handleSettingsUpdate applies the fields present in the payload; absent
// fields are left unchanged.
func (r *Router) handleSettingsUpdate(msg *models.InboundMessage) {
	settings := &r.State.Session.Settings
	if msg.ShowExplanations != nil {
		settings.ShowExplanations = *msg.ShowExplanations
	}
	if msg.LiftType != nil {
		settings.LiftType = *msg.LiftType
	}
	if msg.RequireReasons != nil {
		settings.RequireReasons = *msg.RequireReasons
	}
}

func (r *Router) notify(text string) {
	if r.Hooks.Notify != nil {
		r.Hooks.Notify(text)
	}
}
