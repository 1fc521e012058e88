// Package demoserver - HTTP + WebSocket surface of the loopback server.
// File: demoserver/server.go
package demoserver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"iron-verdict/logger"
	"iron-verdict/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// loopback server, joined only by in-process clients and tests
		return true
	},
}

// clientFrame is the decoded form of every client -> server frame. The
// wire uses flat tagged objects, so one struct covers all kinds.
type clientFrame struct {
	Type models.MessageKind `json:"type"`

	// join
	SessionCode    string      `json:"session_code"`
	Role           models.Role `json:"role"`
	ReconnectToken string      `json:"reconnect_token"`

	// vote_lock
	Color  models.VoteColor `json:"color"`
	Reason *string          `json:"reason"`

	// settings_update
	ShowExplanations bool   `json:"showExplanations"`
	LiftType         string `json:"liftType"`
	RequireReasons   bool   `json:"requireReasons"`
}

// clientConn wraps a connection with a write mutex so broadcasts and
// direct sends never interleave frames.
type clientConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *clientConn) writeJSON(v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

// Server serves session creation over HTTP and the session protocol
// over WebSocket.
type Server struct {
	Manager *SessionManager

	mu sync.Mutex
	// session code -> connection key -> conn. Judge keys are the role
	// strings; each display gets a unique key so several can watch.
	conns map[string]map[string]*clientConn
}

// NewServer builds a server around the given session manager.
func NewServer(manager *SessionManager) *Server {
	return &Server{
		Manager: manager,
		conns:   make(map[string]map[string]*clientConn),
	}
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/api/sessions", s.createSession)
	router.GET("/ws", s.serveWs)
	return router
}

func (s *Server) createSession(c *gin.Context) {
	var body struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	code := s.Manager.CreateSession(body.Name)
	c.JSON(http.StatusOK, gin.H{"session_code": code})
}

// serveWs upgrades the connection and reads frames until it drops.
func (s *Server) serveWs(c *gin.Context) {
	defer func() {
		if err := recover(); err != nil {
			logger.Error.Printf("[demoserver] recovered from panic: %v", err)
		}
	}()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error.Printf("[demoserver] upgrade error: %v", err)
		return
	}
	logger.Debug.Printf("[demoserver] connected: %v", conn.RemoteAddr())
	go s.readLoop(&clientConn{conn: conn})
}

func (s *Server) readLoop(cc *clientConn) {
	// filled in by a successful join
	var (
		sessionCode string
		connKey     string
		role        models.Role
	)

	defer func() {
		_ = cc.conn.Close()
		if sessionCode == "" {
			return
		}
		// clean up only if this conn still owns its slot; a reconnect
		// may have replaced it already
		if !s.dropConn(sessionCode, connKey, cc) {
			logger.Debug.Printf("[demoserver] stale disconnect for %s in %s", connKey, sessionCode)
			return
		}
		logger.Info.Printf("[demoserver] %s left session %s", role, sessionCode)
		if pos, ok := role.Position(); ok {
			if s.Manager.SetDisconnected(sessionCode, pos) {
				s.broadcast(sessionCode, models.InboundMessage{
					Type:      models.KindJudgeStatusUpdate,
					Position:  pos,
					Connected: false,
				})
			}
		}
	}()

	for {
		_, raw, err := cc.conn.ReadMessage()
		if err != nil {
			logger.Debug.Printf("[demoserver] read error: %v", err)
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			_ = cc.writeJSON(models.InboundMessage{Type: models.KindError, Message: "Invalid JSON format"})
			continue
		}

		switch frame.Type {
		case models.KindJoin:
			code, key, ok := s.handleJoin(cc, frame)
			if !ok {
				return
			}
			sessionCode, connKey, role = code, key, frame.Role

		case models.KindVoteLock:
			if sessionCode == "" {
				continue
			}
			s.handleVoteLock(cc, sessionCode, role, frame)

		case models.KindTimerStart:
			if !s.requireHead(cc, sessionCode, role, "Only head judge can control timer") {
				continue
			}
			if remaining, ok := s.Manager.StartTimer(sessionCode); ok {
				s.broadcast(sessionCode, models.InboundMessage{
					Type:            models.KindTimerStart,
					TimeRemainingMs: remaining,
				})
			}

		case models.KindTimerReset:
			if !s.requireHead(cc, sessionCode, role, "Only head judge can control timer") {
				continue
			}
			if s.Manager.ResetTimer(sessionCode) {
				s.broadcast(sessionCode, models.InboundMessage{Type: models.KindTimerReset})
			}

		case models.KindNextLift:
			if !s.requireHead(cc, sessionCode, role, "Only head judge can advance to next lift") {
				continue
			}
			if s.Manager.ResetForNextLift(sessionCode) {
				s.broadcast(sessionCode, models.InboundMessage{Type: models.KindResetForNextLift})
			}

		case models.KindEndSessionConfirmed:
			if !s.requireHead(cc, sessionCode, role, "Only head judge can end session") {
				continue
			}
			s.endSession(sessionCode)
			return

		case models.KindSettingsUpdate:
			if !s.requireHead(cc, sessionCode, role, "Only head judge can update settings") {
				continue
			}
			s.handleSettingsUpdate(cc, sessionCode, frame)

		default:
			// unknown kinds are ignored for forward compatibility
			logger.Debug.Printf("[demoserver] ignoring frame kind %q", frame.Type)
		}
	}
}

// handleJoin validates the join, registers the connection and sends
// join_success with the authoritative snapshot. A fatal join error
// closes the connection (ok=false).
func (s *Server) handleJoin(cc *clientConn, frame clientFrame) (code, key string, ok bool) {
	code = frame.SessionCode
	if code == "" || frame.Role == "" {
		_ = cc.writeJSON(models.InboundMessage{Type: models.KindError, Message: "Missing required fields"})
		return "", "", true
	}

	result := s.Manager.Join(code, frame.Role, frame.ReconnectToken)
	if !result.OK {
		logger.Warn.Printf("[demoserver] join failed for %s in %s: %s", frame.Role, code, result.Error)
		_ = cc.writeJSON(models.InboundMessage{Type: models.KindJoinError, Message: result.Error})
		return "", "", false
	}

	if frame.Role == models.RoleDisplay {
		key = "display_" + uuid.NewString()[:8]
	} else {
		key = string(frame.Role)
	}

	// a token reclaim replaces the previous connection for this slot
	if old := s.registerConn(code, key, cc); old != nil {
		logger.Warn.Printf("[demoserver] superseding old connection for %s in %s", key, code)
		_ = old.conn.Close()
	}

	snapshot, found := s.Manager.Snapshot(code)
	if !found {
		_ = cc.writeJSON(models.InboundMessage{Type: models.KindJoinError, Message: "Session not found"})
		return "", "", false
	}
	_ = cc.writeJSON(models.InboundMessage{
		Type:           models.KindJoinSuccess,
		IsHead:         result.IsHead,
		SessionState:   snapshot,
		ReconnectToken: result.ReconnectToken,
	})

	if pos, isJudge := frame.Role.Position(); isJudge {
		s.broadcastToOthers(code, key, models.InboundMessage{
			Type:      models.KindJudgeStatusUpdate,
			Position:  pos,
			Connected: true,
		})
	}
	return code, key, true
}

func (s *Server) handleVoteLock(cc *clientConn, sessionCode string, role models.Role, frame clientFrame) {
	pos, isJudge := role.Position()
	if !isJudge {
		return
	}
	if !frame.Color.Valid() {
		_ = cc.writeJSON(models.InboundMessage{Type: models.KindError, Message: "Invalid vote color"})
		return
	}

	_, _, settings, found := s.Manager.Results(sessionCode)
	if found && settings.RequireReasons && frame.Color != models.VoteWhite &&
		(frame.Reason == nil || *frame.Reason == "") {
		_ = cc.writeJSON(models.InboundMessage{Type: models.KindError, Message: "Reason required before locking in"})
		return
	}

	ok, allLocked := s.Manager.LockVote(sessionCode, pos, frame.Color, frame.Reason)
	if !ok {
		return
	}
	logger.Info.Printf("[demoserver] %s locked %s in %s (all=%v)", pos, frame.Color, sessionCode, allLocked)

	if !allLocked {
		return
	}
	votes, reasons, settings, found := s.Manager.Results(sessionCode)
	if !found {
		return
	}
	show := settings.ShowExplanations
	lift := settings.LiftType
	s.broadcast(sessionCode, models.InboundMessage{
		Type:             models.KindShowResults,
		Votes:            votes,
		Reasons:          reasons,
		ShowExplanations: &show,
		LiftType:         &lift,
	})
}

func (s *Server) handleSettingsUpdate(cc *clientConn, sessionCode string, frame clientFrame) {
	settings, ok := s.Manager.UpdateSettings(sessionCode, models.Settings{
		ShowExplanations: frame.ShowExplanations,
		LiftType:         frame.LiftType,
		RequireReasons:   frame.RequireReasons,
	})
	if !ok {
		_ = cc.writeJSON(models.InboundMessage{Type: models.KindError, Message: "Invalid lift type"})
		return
	}
	show := settings.ShowExplanations
	lift := settings.LiftType
	require := settings.RequireReasons
	s.broadcast(sessionCode, models.InboundMessage{
		Type:             models.KindSettingsUpdate,
		ShowExplanations: &show,
		LiftType:         &lift,
		RequireReasons:   &require,
	})
}

// endSession broadcasts session_ended, closes every connection in the
// session and drops the session from memory.
func (s *Server) endSession(sessionCode string) {
	logger.Info.Printf("[demoserver] ending session %s", sessionCode)
	s.broadcast(sessionCode, models.InboundMessage{Type: models.KindSessionEnded})

	s.mu.Lock()
	conns := s.conns[sessionCode]
	delete(s.conns, sessionCode)
	s.mu.Unlock()

	for _, cc := range conns {
		_ = cc.conn.Close()
	}
	s.Manager.DeleteSession(sessionCode)
}

// Shutdown announces a restart to every connected client and closes
// all connections. Session state is kept so clients can rejoin.
func (s *Server) Shutdown() {
	s.mu.Lock()
	all := make([]*clientConn, 0)
	for _, conns := range s.conns {
		for _, cc := range conns {
			all = append(all, cc)
		}
	}
	s.conns = make(map[string]map[string]*clientConn)
	s.mu.Unlock()

	logger.Warn.Printf("[demoserver] shutting down, notifying %d clients", len(all))
	for _, cc := range all {
		_ = cc.writeJSON(models.InboundMessage{Type: models.KindServerRestarting})
		_ = cc.conn.Close()
	}
}

// requireHead rejects non-head callers with an error frame.
func (s *Server) requireHead(cc *clientConn, sessionCode string, role models.Role, message string) bool {
	if sessionCode == "" {
		return false
	}
	if role != models.RoleCenterJudge {
		_ = cc.writeJSON(models.InboundMessage{Type: models.KindError, Message: message})
		return false
	}
	return true
}

// ----------------------- connection registry -----------------------

// registerConn stores the conn under (sessionCode, key) and returns the
// connection it displaced, if any.
func (s *Server) registerConn(sessionCode, key string, cc *clientConn) *clientConn {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conns[sessionCode] == nil {
		s.conns[sessionCode] = make(map[string]*clientConn)
	}
	old := s.conns[sessionCode][key]
	s.conns[sessionCode][key] = cc
	if old == cc {
		return nil
	}
	return old
}

// dropConn removes the conn if it still owns its slot. Reports whether
// it did.
func (s *Server) dropConn(sessionCode, key string, cc *clientConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.conns[sessionCode]
	if !ok || conns[key] != cc {
		return false
	}
	delete(conns, key)
	if len(conns) == 0 {
		delete(s.conns, sessionCode)
	}
	return true
}

// broadcast sends a frame to every connection in a session.
func (s *Server) broadcast(sessionCode string, msg models.InboundMessage) {
	s.broadcastToOthers(sessionCode, "", msg)
}

// broadcastToOthers sends a frame to every connection in a session
// except the one registered under excludeKey.
func (s *Server) broadcastToOthers(sessionCode, excludeKey string, msg models.InboundMessage) {
	s.mu.Lock()
	targets := make([]*clientConn, 0, len(s.conns[sessionCode]))
	for key, cc := range s.conns[sessionCode] {
		if key == excludeKey {
			continue
		}
		targets = append(targets, cc)
	}
	s.mu.Unlock()

	for _, cc := range targets {
		if err := cc.writeJSON(msg); err != nil {
			logger.Warn.Printf("[demoserver] broadcast failed: %v", err)
		}
	}
}
