// Package signals maintains the long-lived WebSocket connection to a
// status-backend /signals endpoint. It owns reconnect-with-backoff and
// delivers message-notification events to a registered callback.
//
// The connection is an explicit state machine:
//
//	Idle -> Connecting -> Connected -> Closed
//	                 \-> Reconnecting -> Connecting (unexpected close)
//
// Close moves any state to Closed and cancels pending reconnects.
package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/openclaw/status-relay/internal/backend"
)

// State is the connection lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	// ReconnectBase is the delay before the first reconnect attempt.
	ReconnectBase = 1 * time.Second
	// ReconnectMax caps the exponential backoff.
	ReconnectMax = 30 * time.Second

	dialTimeout = 30 * time.Second

	// maxFrameSize caps inbound frames. Signal events are small JSON;
	// anything larger is likely malformed.
	maxFrameSize = 1 << 20

	// EventMessagesNew is the only signal type the relay acts on.
	EventMessagesNew = "messages.new"
)

// delayFor computes min(base * 2^attempt, max).
func delayFor(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Shifting past the cap would overflow; the cap applies anyway.
	if attempt >= 30 {
		return max
	}
	d := base << uint(attempt)
	if d > max || d <= 0 {
		return max
	}
	return d
}

// ReconnectDelay returns the backoff before reconnect attempt n with
// the default base and cap.
func ReconnectDelay(attempt int) time.Duration {
	return delayFor(attempt, ReconnectBase, ReconnectMax)
}

// Event is a raw signal frame from the backend.
type Event struct {
	Type  string          `json:"type"`
	Event json.RawMessage `json:"event"`
}

type messagesPayload struct {
	Messages []backend.Message `json:"messages"`
}

// Transport is one underlying push connection. The production
// implementation wraps *websocket.Conn; tests substitute scripted
// transports via Config.Dial.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Config configures a signal connection.
type Config struct {
	// URL of the /signals endpoint, e.g. ws://127.0.0.1:8545/signals.
	URL string

	// OnMessage receives each message from a messages.new event, one
	// at a time, in receipt order. Required.
	OnMessage func(backend.Message)

	// OnError is invoked with connection-level failures. The failure
	// does not by itself close the connection; the transport's own
	// close drives reconnection.
	OnError func(error)

	// OnReconnect is invoked before each scheduled reconnect with the
	// attempt number (0-based) and the computed delay.
	OnReconnect func(attempt int, delay time.Duration)

	Logger *slog.Logger

	// Dial overrides the WebSocket dialer. Nil means coder/websocket.
	Dial func(ctx context.Context, url string) (Transport, error)

	// Backoff overrides; zero means ReconnectBase/ReconnectMax.
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
}

// Conn is a handle to one signal connection. Safe for concurrent use.
type Conn struct {
	cfg  Config
	log  *slog.Logger
	base time.Duration
	max  time.Duration

	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	state     State
	attempts  int
	transport Transport
	closed    bool
}

// Connect starts a signal connection and returns immediately. All
// connection work happens asynchronously; failures surface through
// OnError and the reconnect loop, never through Connect itself.
func Connect(ctx context.Context, cfg Config) *Conn {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	c := &Conn{
		cfg:   cfg,
		log:   log,
		base:  cfg.ReconnectBase,
		max:   cfg.ReconnectMax,
		state: StateIdle,
		done:  make(chan struct{}),
	}
	if c.base <= 0 {
		c.base = ReconnectBase
	}
	if c.max <= 0 {
		c.max = ReconnectMax
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.run(runCtx)
	return c
}

// Connected reports whether the underlying connection is currently up.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close stops the connection and cancels any pending reconnect. It is
// idempotent and safe to call from any state; no reconnects occur
// after Close, even if a transport close event races in afterward.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	tr := c.transport
	c.transport = nil
	c.state = StateClosed
	c.mu.Unlock()

	c.cancel()
	if tr != nil {
		_ = tr.Close()
	}
	<-c.done
}

// Done is closed when the connection loop has fully stopped.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.state = StateClosed
		return
	}
	c.state = s
}

func (c *Conn) run(ctx context.Context) {
	defer close(c.done)
	defer c.setState(StateClosed)

	for {
		if ctx.Err() != nil || c.isClosed() {
			return
		}
		c.setState(StateConnecting)

		tr, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil || c.isClosed() {
				return
			}
			c.reportError(fmt.Errorf("dial signals: %w", err))
			if !c.waitReconnect(ctx) {
				return
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = tr.Close()
			return
		}
		c.transport = tr
		c.state = StateConnected
		c.attempts = 0
		c.mu.Unlock()
		c.log.Info("signals connected", "url", c.cfg.URL)

		err = c.readLoop(ctx, tr)

		c.mu.Lock()
		c.transport = nil
		c.mu.Unlock()
		_ = tr.Close()

		if ctx.Err() != nil || c.isClosed() {
			return
		}
		c.log.Warn("signals connection closed", "error", err)
		if !c.waitReconnect(ctx) {
			return
		}
	}
}

func (c *Conn) dial(ctx context.Context) (Transport, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if c.cfg.Dial != nil {
		return c.cfg.Dial(dialCtx, c.cfg.URL)
	}
	return dialWebSocket(dialCtx, c.cfg.URL)
}

// waitReconnect computes the backoff for the next attempt, sleeps for
// it, and reports whether the loop should continue.
func (c *Conn) waitReconnect(ctx context.Context) bool {
	c.mu.Lock()
	attempt := c.attempts
	c.attempts++
	if !c.closed {
		c.state = StateReconnecting
	}
	c.mu.Unlock()

	delay := delayFor(attempt, c.base, c.max)
	if c.cfg.OnReconnect != nil {
		c.cfg.OnReconnect(attempt, delay)
	}
	c.log.Warn("signals reconnecting", "attempt", attempt, "delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return !c.isClosed()
	}
}

func (c *Conn) readLoop(ctx context.Context, tr Transport) error {
	for {
		data, err := tr.Read(ctx)
		if err != nil {
			c.reportError(err)
			return err
		}
		c.handleFrame(data)
	}
}

func (c *Conn) handleFrame(data []byte) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
		c.log.Warn("dropping malformed signal frame", "error", err)
		return
	}
	if ev.Type != EventMessagesNew {
		return
	}
	var payload messagesPayload
	if err := json.Unmarshal(ev.Event, &payload); err != nil {
		c.log.Warn("dropping malformed messages.new payload", "error", err)
		return
	}
	for _, msg := range payload.Messages {
		c.cfg.OnMessage(msg)
	}
}

func (c *Conn) reportError(err error) {
	if c.cfg.OnError != nil && err != nil {
		c.cfg.OnError(err)
	}
}

type wsTransport struct {
	conn *websocket.Conn
}

func dialWebSocket(ctx context.Context, url string) (Transport, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxFrameSize)
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	return data, err
}

func (t *wsTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "")
}
