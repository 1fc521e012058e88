// Package client - top-level session client orchestrator.
// File: client/session_client.go
package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"iron-verdict/logger"
	"iron-verdict/models"
)

// Settings store keys, shared with the web client this protocol grew out
// of.
const (
	keyShowExplanations = "showExplanations"
	keyLiftType         = "liftType"
	keyRequireReasons   = "requireReasons"
	keyReconnectToken   = "reconnectToken"
)

// defaultTimerSeconds is the displayed value when no countdown runs.
const defaultTimerSeconds = 60

// KV is the local settings store contract: read once at startup, written
// whenever the head judge changes settings.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// Config configures a SessionClient.
type Config struct {
	// ServerURL is the WebSocket endpoint, e.g. ws://host:8080/ws.
	ServerURL   string
	SessionCode string
	Role        models.Role

	// Notify surfaces plain-text alerts to the user; nil logs only.
	Notify func(text string)

	// Store persists settings and the reconnect token; nil disables
	// persistence.
	Store KV

	// Clock drives the countdown timer, backoff waits and scheduled
	// display advances; nil means the real wall clock.
	Clock clockwork.Clock

	// TimerSeconds is the displayed countdown default; zero means 60.
	TimerSeconds int
}

// SessionClient composes the transport, router, state machines and timer
// for one client instance. Every client owns exactly one transport and
// one timer; nothing is shared between instances, so independent clients
// (tests, demo windows) coexist safely in one process.
//
// All handler execution - inbound frames, timer ticks, user intents - is
// serialized through one mutex, so no two handlers ever run concurrently
// for the same client.
type SessionClient struct {
	mu sync.Mutex

	role models.Role
	code string

	state     *ClientState
	votes     *VoteStateMachine
	display   *DisplayStateMachine
	timer     *CountdownTimer
	router    *Router
	transport *ReconnectingTransport

	store        KV
	notifyFn     func(string)
	timerSeconds int

	// intentionalClose suppresses the connection-dropped alert when the
	// user is deliberately navigating away.
	intentionalClose bool
}

// NewSessionClient wires up a client for the given session and role.
func NewSessionClient(cfg Config) (*SessionClient, error) {
	if cfg.SessionCode == "" {
		return nil, fmt.Errorf("session code is required")
	}
	if !cfg.Role.Valid() {
		return nil, fmt.Errorf("invalid role %q", cfg.Role)
	}

	c := &SessionClient{
		role:         cfg.Role,
		code:         cfg.SessionCode,
		state:        NewClientState(cfg.Role, cfg.SessionCode),
		store:        cfg.Store,
		notifyFn:     cfg.Notify,
		timerSeconds: cfg.TimerSeconds,
	}
	if c.timerSeconds <= 0 {
		c.timerSeconds = defaultTimerSeconds
	}
	c.state.TimerSeconds = c.timerSeconds

	c.loadStoredSettings()

	c.timer = NewCountdownTimer(cfg.Clock)
	c.display = NewDisplayStateMachine(cfg.Clock)
	c.votes = NewVoteStateMachine(
		func() bool { return c.state.Session.Settings.RequireReasons },
		func(msg models.VoteLockMessage) { c.send(msg) },
	)
	c.router = &Router{
		State:   c.state,
		Votes:   c.votes,
		Display: c.display,
		Hooks: RouterHooks{
			Notify:         c.notify,
			PushSettings:   c.pushSettings,
			PersistToken:   c.persistToken,
			CloseTransport: func() { c.closeTransport(false) },
			StartCountdown: c.startCountdown,
			StopCountdown:  c.stopCountdown,
			ResetCountdown: c.resetCountdown,
		},
	}

	c.transport = NewReconnectingTransport(cfg.ServerURL, cfg.Clock)
	c.transport.OnOpen = c.onOpen
	c.transport.OnMessage = c.onFrame
	c.transport.OnDropped = c.onDropped
	c.transport.OnError = func(err error) {
		logger.Warn.Printf("[session] transport error: %v", err)
	}
	return c, nil
}

// Connect opens the transport. The join intent is issued automatically
// on every successful (re)open.
func (c *SessionClient) Connect() {
	c.transport.Open()
}

// Disconnect is the user's deliberate exit: it suppresses the dropped
// alert and stops the transport for good.
func (c *SessionClient) Disconnect() {
	c.mu.Lock()
	c.intentionalClose = true
	c.mu.Unlock()
	c.closeTransport(true)
	c.timer.Stop()
}

// Transport exposes the transport for connection-state queries.
func (c *SessionClient) Transport() *ReconnectingTransport { return c.transport }

// Role returns the role this client is bound to.
func (c *SessionClient) Role() models.Role { return c.role }

// ----------------------- transport wiring -----------------------

// onOpen runs on every successful (re)open, before any inbound frame:
// the client re-issues its join intent so a fresh authoritative snapshot
// supersedes whatever it guessed locally during the outage.
func (c *SessionClient) onOpen() {
	c.mu.Lock()
	c.state.ServerRestarting = false
	join := models.JoinMessage{
		Type:           models.KindJoin,
		SessionCode:    c.code,
		Role:           c.role,
		ReconnectToken: c.state.ReconnectToken,
	}
	c.mu.Unlock()
	c.send(join)
}

func (c *SessionClient) onFrame(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.router.HandleRaw(data)
}

func (c *SessionClient) onDropped(err error) {
	c.mu.Lock()
	suppress := c.intentionalClose || c.state.ServerRestarting
	c.mu.Unlock()
	if suppress {
		logger.Debug.Printf("[session] connection dropped (suppressed): %v", err)
		return
	}
	c.notify("Connection lost, reconnecting...")
}

// ----------------------- user intents -----------------------

// SelectColor picks a verdict color for the current lift.
func (c *SessionClient) SelectColor(color models.VoteColor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.votes.SelectColor(color)
}

// SelectReason records the reason for a colored card.
func (c *SessionClient) SelectReason(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.votes.SelectReason(reason)
}

// GoBack returns from reason selection to color selection.
func (c *SessionClient) GoBack() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.votes.GoBack()
}

// CanLock reports whether the current selection can be locked.
func (c *SessionClient) CanLock() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.votes.CanLock()
}

// LockVote locks the current selection and submits it.
func (c *SessionClient) LockVote() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.votes.Lock()
}

// AvailableReasons lists the valid reasons for the currently selected
// card under the session's lift type.
func (c *SessionClient) AvailableReasons() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.ReasonsFor(c.state.Session.Settings.LiftType, c.votes.Color())
}

// UpdateSettings changes the session settings. Only the head judge may
// do this; for any other client it is a no-op. The new settings are
// persisted locally and broadcast to the server.
func (c *SessionClient) UpdateSettings(settings models.Settings) {
	c.mu.Lock()
	if !c.state.IsHead {
		c.mu.Unlock()
		logger.Warn.Printf("[session] settings update ignored for non-head role %s", c.role)
		return
	}
	c.state.Session.Settings = settings
	c.mu.Unlock()

	c.saveSettings(settings)
	c.sendSettings(settings)
}

// StartTimer asks the server to start the lift countdown everywhere.
func (c *SessionClient) StartTimer() {
	c.send(models.SimpleMessage{Type: models.KindTimerStart})
}

// ResetTimer asks the server to reset the lift countdown everywhere.
func (c *SessionClient) ResetTimer() {
	c.send(models.SimpleMessage{Type: models.KindTimerReset})
}

// NextLift asks the server to reset all judges for the next lift.
func (c *SessionClient) NextLift() {
	c.send(models.SimpleMessage{Type: models.KindNextLift})
}

// EndSession tells the server to end the session for everyone. The
// caller is responsible for confirming with the user first.
func (c *SessionClient) EndSession() {
	c.send(models.SimpleMessage{Type: models.KindEndSessionConfirmed})
}

// ----------------------- state accessors -----------------------

// StateSnapshot returns a copy of the client state for rendering.
func (c *SessionClient) StateSnapshot() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := *c.state
	snapshot.JudgeConnected = make(map[models.JudgePosition]bool, len(c.state.JudgeConnected))
	for pos, connected := range c.state.JudgeConnected {
		snapshot.JudgeConnected[pos] = connected
	}
	return snapshot
}

// VotePhase returns the judge vote machine's phase.
func (c *SessionClient) VotePhase() VotePhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.votes.Phase()
}

// Display exposes the display state machine (display-role clients).
func (c *SessionClient) Display() *DisplayStateMachine { return c.display }

// ----------------------- internals -----------------------

func (c *SessionClient) send(msg interface{}) {
	// sends while disconnected are fire-and-forget by design
	if err := c.transport.Send(msg); err != nil {
		logger.Warn.Printf("[session] send failed: %v", err)
	}
}

func (c *SessionClient) notify(text string) {
	logger.Info.Printf("[session] user alert: %s", text)
	if c.notifyFn != nil {
		c.notifyFn(text)
	}
}

func (c *SessionClient) closeTransport(external bool) {
	if external {
		logger.Info.Printf("[session] closing transport (user initiated)")
	}
	c.transport.Close()
}

// pushSettings re-broadcasts the head judge's cached settings after a
// successful join.
func (c *SessionClient) pushSettings() {
	settings := c.state.Session.Settings
	c.saveSettings(settings)
	c.sendSettings(settings)
}

func (c *SessionClient) sendSettings(settings models.Settings) {
	c.send(models.SettingsUpdateMessage{
		Type:             models.KindSettingsUpdate,
		ShowExplanations: settings.ShowExplanations,
		LiftType:         settings.LiftType,
		RequireReasons:   settings.RequireReasons,
	})
}

func (c *SessionClient) persistToken(token string) {
	if c.store == nil {
		return
	}
	if err := c.store.Set(keyReconnectToken, token); err != nil {
		logger.Warn.Printf("[session] failed to persist reconnect token: %v", err)
	}
}

// loadStoredSettings seeds the session settings and reconnect token from
// the local store, once, at startup.
func (c *SessionClient) loadStoredSettings() {
	settings := &c.state.Session.Settings
	settings.LiftType = "squat"
	if c.store == nil {
		return
	}
	if v, ok := c.store.Get(keyShowExplanations); ok {
		settings.ShowExplanations = v == "true"
	}
	if v, ok := c.store.Get(keyLiftType); ok && v != "" {
		settings.LiftType = v
	}
	if v, ok := c.store.Get(keyRequireReasons); ok {
		settings.RequireReasons = v == "true"
	}
	if v, ok := c.store.Get(keyReconnectToken); ok {
		c.state.ReconnectToken = v
	}
}

func (c *SessionClient) saveSettings(settings models.Settings) {
	if c.store == nil {
		return
	}
	set := func(key, value string) {
		if err := c.store.Set(key, value); err != nil {
			logger.Warn.Printf("[session] failed to save %s: %v", key, err)
		}
	}
	set(keyShowExplanations, fmt.Sprintf("%t", settings.ShowExplanations))
	set(keyLiftType, settings.LiftType)
	set(keyRequireReasons, fmt.Sprintf("%t", settings.RequireReasons))
}

// ----------------------- countdown wiring -----------------------

func (c *SessionClient) startCountdown(remainingMs int64) {
	c.timer.Start(time.Duration(remainingMs)*time.Millisecond, c.onTick)
}

func (c *SessionClient) stopCountdown() {
	c.timer.Stop()
}

func (c *SessionClient) resetCountdown() {
	c.timer.Stop()
	c.state.TimerSeconds = c.timerSeconds
	c.state.TimerExpired = false
}

// onTick runs on the timer goroutine; it takes the client mutex so tick
// handling is serialized with frame handling and user intents.
func (c *SessionClient) onTick(secondsLeft int, expired bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.TimerSeconds = secondsLeft
	c.state.TimerExpired = expired
}
