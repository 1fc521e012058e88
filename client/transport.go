// Package client - reconnecting transport over a single WebSocket.
// File: client/transport.go
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"iron-verdict/logger"
)

// ConnectionState is the lifecycle state of a ReconnectingTransport.
type ConnectionState string

// Stopped is terminal: a stopped transport must be replaced, not reused.
const (
	StateConnecting   ConnectionState = "connecting"
	StateOpen         ConnectionState = "open"
	StateReconnecting ConnectionState = "reconnecting"
	StateStopped      ConnectionState = "stopped"
)

// Reconnect backoff: 1s doubling to a 16s cap, reset on successful open.
const (
	baseReconnectDelay = 1000 * time.Millisecond
	maxReconnectDelay  = 16000 * time.Millisecond
)

// WSConn is the subset of a WebSocket connection the transport needs.
type WSConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DialFunc opens a WebSocket connection to the given URL.
type DialFunc func(url string) (WSConn, error)

func gorillaDial(url string) (WSConn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// ReconnectingTransport owns one logical connection to the session server
// and keeps it alive: any closure not caused by Close schedules a redial
// after an exponential backoff delay. Messages sent while not open are
// dropped rather than queued; after a long outage it is better to lose a
// stale intent than to replay it.
type ReconnectingTransport struct {
	url   string
	clock clockwork.Clock

	// overridable knobs (tests shrink the delays)
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Dial      DialFunc

	// owner notifications; all optional. OnOpen fires on every successful
	// (re)open before any inbound frame is delivered, so the owner can
	// re-issue its join intent.
	OnOpen    func()
	OnMessage func(data []byte)
	OnDropped func(err error)
	OnError   func(err error)

	mu          sync.Mutex
	writeMu     sync.Mutex
	state       ConnectionState
	conn        WSConn
	gen         int
	delay       time.Duration
	retryCancel context.CancelFunc
}

// NewReconnectingTransport returns a transport for the given URL. A nil
// clock means the real wall clock. The transport does not connect until
// Open is called.
func NewReconnectingTransport(url string, clock clockwork.Clock) *ReconnectingTransport {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ReconnectingTransport{
		url:   url,
		clock: clock,
		Dial:  gorillaDial,
		state: StateConnecting,
	}
}

// State returns the current connection state.
func (t *ReconnectingTransport) State() ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Open starts the first connection attempt. It is a no-op on a stopped
// transport.
func (t *ReconnectingTransport) Open() {
	t.mu.Lock()
	if t.state == StateStopped {
		t.mu.Unlock()
		logger.Warn.Printf("[transport] Open called on stopped transport; ignoring")
		return
	}
	t.state = StateConnecting
	if t.delay == 0 {
		t.delay = t.baseDelay()
	}
	t.mu.Unlock()
	go t.connect()
}

// Close transitions the transport to stopped, cancels any pending
// reconnect attempt and closes the live connection. Stopped is terminal.
func (t *ReconnectingTransport) Close() {
	t.mu.Lock()
	if t.state == StateStopped {
		t.mu.Unlock()
		return
	}
	t.state = StateStopped
	if t.retryCancel != nil {
		t.retryCancel()
		t.retryCancel = nil
	}
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	logger.Info.Printf("[transport] stopped (url=%s)", t.url)
}

// Send serializes msg and transmits it if the transport is open. While
// connecting or reconnecting the message is silently discarded; the
// returned error covers serialization and write failures only.
func (t *ReconnectingTransport) Send(msg interface{}) error {
	t.mu.Lock()
	conn := t.conn
	open := t.state == StateOpen
	t.mu.Unlock()

	if !open || conn == nil {
		logger.Debug.Printf("[transport] dropping outbound message while not open")
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// connect performs one dial attempt. Failure counts as a dropped cycle
// and schedules the next attempt with a doubled delay.
func (t *ReconnectingTransport) connect() {
	conn, err := t.Dial(t.url)

	t.mu.Lock()
	if t.state == StateStopped {
		t.mu.Unlock()
		if err == nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		t.mu.Unlock()
		logger.Warn.Printf("[transport] dial failed: %v", err)
		t.dropped(err)
		return
	}

	t.conn = conn
	t.state = StateOpen
	t.delay = t.baseDelay() // successful open resets the backoff
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	logger.Info.Printf("[transport] connection open (url=%s)", t.url)
	if t.OnOpen != nil {
		t.OnOpen()
	}
	go t.readLoop(conn, gen)
}

// readLoop delivers inbound frames until the connection dies.
func (t *ReconnectingTransport) readLoop(conn WSConn, gen int) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err == nil && messageType != websocket.TextMessage {
			// reported but never a reconnect trigger
			t.reportError(fmt.Errorf("unexpected frame type %d", messageType))
			continue
		}
		if err != nil {
			t.mu.Lock()
			stale := t.state == StateStopped || t.gen != gen
			if !stale {
				t.conn = nil
			}
			t.mu.Unlock()
			_ = conn.Close()
			if stale {
				return
			}
			logger.Warn.Printf("[transport] connection closed: %v", err)
			t.dropped(err)
			return
		}
		if t.OnMessage != nil {
			t.OnMessage(data)
		}
	}
}

// dropped notifies the owner, then schedules the next reconnect attempt
// after the current backoff delay.
func (t *ReconnectingTransport) dropped(err error) {
	t.mu.Lock()
	if t.state == StateStopped {
		t.mu.Unlock()
		return
	}
	t.state = StateReconnecting
	delay := t.delay
	t.delay = t.nextDelay(delay)
	ctx, cancel := context.WithCancel(context.Background())
	if t.retryCancel != nil {
		t.retryCancel()
	}
	t.retryCancel = cancel
	t.mu.Unlock()

	if t.OnDropped != nil {
		t.OnDropped(err)
	}
	logger.Info.Printf("[transport] reconnecting in %v", delay)

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-t.clock.After(delay):
			t.mu.Lock()
			if t.state != StateReconnecting {
				t.mu.Unlock()
				return
			}
			t.retryCancel = nil
			t.mu.Unlock()
			t.connect()
		}
	}()
}

// reportError surfaces a transport-level error without touching the
// connection; reconnection is driven only by closure.
func (t *ReconnectingTransport) reportError(err error) {
	logger.Warn.Printf("[transport] error: %v", err)
	if t.OnError != nil {
		t.OnError(err)
	}
}

func (t *ReconnectingTransport) baseDelay() time.Duration {
	if t.BaseDelay > 0 {
		return t.BaseDelay
	}
	return baseReconnectDelay
}

func (t *ReconnectingTransport) maxDelay() time.Duration {
	if t.MaxDelay > 0 {
		return t.MaxDelay
	}
	return maxReconnectDelay
}

func (t *ReconnectingTransport) nextDelay(current time.Duration) time.Duration {
	next := current * 2
	if max := t.maxDelay(); next > max {
		next = max
	}
	return next
}
