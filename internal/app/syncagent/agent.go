// Package syncagent manages one client's live connection to the platform.
// It subscribes to the broadcast stream, marks cached views stale when a
// notification names them, and recovers from disconnects with bounded
// exponential backoff.
//
// The agent never pushes payload data into caches. Notifications only
// invalidate; the next read of an invalidated view re-fetches from the
// authoritative store. A disconnected agent degrades to "last known
// state, explicitly stale" rather than presenting outdated data as fresh.
package syncagent

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the connection state machine.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StatePermanentlyDisconnected is entered after maxAttempts
	// consecutive failures; the agent stops retrying and the caller must
	// create a fresh agent (or call Connect again) to resume.
	StatePermanentlyDisconnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StatePermanentlyDisconnected:
		return "permanently_disconnected"
	default:
		return "unknown"
	}
}

// Conn is one live bidirectional connection. Implementations must unblock
// ReadMessage when Close is called.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens a connection to the server.
type Dialer func(ctx context.Context) (Conn, error)

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Injectable so backoff is testable without
// real sockets or sleeps.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Options configures the reconnect policy.
type Options struct {
	BaseDelay   time.Duration // first reconnect delay (default 500ms)
	MaxDelay    time.Duration // backoff cap (default 30s)
	MaxAttempts int           // consecutive failures before giving up (default 8)
	Clock       Clock         // nil selects the real clock
}

func (o *Options) fill() {
	if o.BaseDelay <= 0 {
		o.BaseDelay = 500 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 8
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
}

// frame is the {type, data} wire message.
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Agent is the per-client connection manager. Safe for concurrent use.
type Agent struct {
	dial  Dialer
	cache *Cache
	table InvalidationTable
	opts  Options
	log   *zap.Logger

	mu       sync.Mutex
	state    State
	conn     Conn
	attempt  int
	timer    Timer
	closed   bool
	onChange func(State)

	readerDone chan struct{}
}

// New creates an Agent. The invalidation table maps event types to the
// cached views a notification makes stale; events without a table entry
// are logged and ignored.
func New(dial Dialer, cache *Cache, table InvalidationTable, opts Options, logger *zap.Logger) *Agent {
	opts.fill()
	return &Agent{
		dial:  dial,
		cache: cache,
		table: table,
		opts:  opts,
		log:   logger,
		state: StateDisconnected,
	}
}

// OnStateChange registers a callback invoked (outside the agent's lock)
// after every transition. Must be called before Connect.
func (a *Agent) OnStateChange(f func(State)) {
	a.mu.Lock()
	a.onChange = f
	a.mu.Unlock()
}

// State returns the current connection state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) setState(s State) {
	a.state = s
	cb := a.onChange
	if cb != nil {
		// Callbacks run without the lock so they can call back into the
		// agent.
		go cb(s)
	}
}

// Connect starts the connection attempt. It returns immediately; observe
// progress via State / OnStateChange. Calling Connect on a permanently
// disconnected agent starts a fresh attempt cycle.
func (a *Agent) Connect() {
	a.mu.Lock()
	if a.closed || a.state == StateConnecting || a.state == StateConnected {
		a.mu.Unlock()
		return
	}
	a.attempt = 0
	a.setState(StateConnecting)
	a.mu.Unlock()

	go a.connectOnce()
}

func (a *Agent) connectOnce() {
	conn, err := a.dial(context.Background())

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		a.log.Warn("connect failed", zap.Int("attempt", a.attempt), zap.Error(err))
		a.scheduleReconnectLocked()
		a.mu.Unlock()
		return
	}

	a.conn = conn
	a.attempt = 0 // successful connection resets the backoff
	a.readerDone = make(chan struct{})
	a.setState(StateConnected)
	done := a.readerDone
	a.mu.Unlock()

	go a.readLoop(conn, done)
}

func (a *Agent) readLoop(conn Conn, done chan struct{}) {
	defer close(done)
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			a.handleDisconnect(conn, err)
			return
		}
		a.handleFrame(data)
	}
}

func (a *Agent) handleFrame(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		a.log.Warn("malformed frame", zap.Error(err))
		return
	}

	views, known := a.table.Resolve(f.Type, f.Data)
	if !known {
		// Forward compatible: newer servers may emit types this client
		// does not understand yet.
		a.log.Info("ignoring unknown event type", zap.String("type", f.Type))
		return
	}

	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return
	}

	for _, v := range views {
		a.cache.Invalidate(v)
	}
	a.log.Debug("views invalidated",
		zap.String("type", f.Type),
		zap.Strings("views", views))
}

func (a *Agent) handleDisconnect(conn Conn, cause error) {
	_ = conn.Close()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.conn != conn {
		return
	}
	a.conn = nil
	a.log.Warn("connection lost", zap.Error(cause))
	a.cache.InvalidateAll() // everything cached is now of unknown age
	a.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the backoff timer. Caller holds a.mu.
func (a *Agent) scheduleReconnectLocked() {
	if a.attempt >= a.opts.MaxAttempts {
		a.log.Error("reconnect attempts exhausted",
			zap.Int("max_attempts", a.opts.MaxAttempts))
		a.setState(StatePermanentlyDisconnected)
		return
	}

	delay := a.opts.BaseDelay << uint(a.attempt)
	if delay > a.opts.MaxDelay || delay <= 0 {
		delay = a.opts.MaxDelay
	}
	a.attempt++
	a.setState(StateDisconnected)

	a.log.Info("reconnect scheduled",
		zap.Duration("delay", delay),
		zap.Int("attempt", a.attempt))

	a.timer = a.opts.Clock.AfterFunc(delay, func() {
		a.mu.Lock()
		if a.closed || a.state != StateDisconnected {
			a.mu.Unlock()
			return
		}
		a.setState(StateConnecting)
		a.mu.Unlock()
		a.connectOnce()
	})
}

// Send writes one application message. When the agent is not connected
// this is a no-op with a warning; outbound messages are never queued
// across disconnects.
func (a *Agent) Send(msgType string, data any) error {
	a.mu.Lock()
	conn := a.conn
	state := a.state
	a.mu.Unlock()

	if state != StateConnected || conn == nil {
		a.log.Warn("send dropped: not connected",
			zap.String("type", msgType),
			zap.String("state", state.String()))
		return nil
	}

	payload, err := json.Marshal(map[string]any{"type": msgType, "data": data})
	if err != nil {
		return err
	}
	return conn.WriteMessage(payload)
}

// Close tears the agent down: the pending reconnect timer is cancelled
// and the active connection is closed. After Close returns, no reconnect
// fires and no further invalidation is applied.
func (a *Agent) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	conn := a.conn
	a.conn = nil
	a.setState(StateDisconnected)
	done := a.readerDone
	a.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		<-done // reader has exited; nothing fires after this point
	}
}
