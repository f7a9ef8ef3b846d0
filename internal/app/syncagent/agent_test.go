package syncagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

/* -------------------------------------------------------------------------- */
/* Fakes: clock, timer, connection                                            */
/* -------------------------------------------------------------------------- */

type fakeTimer struct {
	f       func()
	stopped bool
	mu      sync.Mutex
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *fakeTimer) fire() {
	t.mu.Lock()
	stopped := t.stopped
	f := t.f
	t.mu.Unlock()
	if !stopped {
		f()
	}
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
	delays []time.Duration
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{f: f}
	c.timers = append(c.timers, t)
	c.delays = append(c.delays, d)
	return t
}

// fireLast runs the most recently armed timer synchronously.
func (c *fakeClock) fireLast() {
	c.mu.Lock()
	if len(c.timers) == 0 {
		c.mu.Unlock()
		return
	}
	t := c.timers[len(c.timers)-1]
	c.mu.Unlock()
	t.fire()
}

func (c *fakeClock) delayCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.delays)
}

func (c *fakeClock) lastDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.delays) == 0 {
		return 0
	}
	return c.delays[len(c.delays)-1]
}

// fakeConn delivers frames pushed by the test and blocks otherwise.
type fakeConn struct {
	inbox  chan []byte
	sent   [][]byte
	mu     sync.Mutex
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbox:  make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbox:
		return data, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	c.mu.Lock()
	c.sent = append(c.sent, data)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(t *testing.T, msgType string, data any) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"type": msgType, "data": data})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	c.inbox <- payload
}

// waitState polls until the agent reaches want or the deadline passes.
func waitState(t *testing.T, a *Agent, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state: got %v, want %v", a.State(), want)
}

/* -------------------------------------------------------------------------- */
/* Tests                                                                      */
/* -------------------------------------------------------------------------- */

func newConnectedAgent(t *testing.T, cache *Cache) (*Agent, *fakeConn, *fakeClock) {
	t.Helper()
	clock := &fakeClock{}
	conn := newFakeConn()
	dial := func(ctx context.Context) (Conn, error) { return conn, nil }

	a := New(dial, cache, DefaultInvalidations(), Options{
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
		MaxAttempts: 3,
		Clock:       clock,
	}, zap.NewNop())
	a.Connect()
	waitState(t, a, StateConnected)
	return a, conn, clock
}

func TestLeaderboardUpdateMarksViewStaleAndRefetchesOnce(t *testing.T) {
	cache := NewCache()
	fetches := 0
	cache.Register(ViewLeaderboard(), func(ctx context.Context) (any, error) {
		fetches++
		return fmt.Sprintf("snapshot-%d", fetches), nil
	})

	a, conn, _ := newConnectedAgent(t, cache)
	defer a.Close()

	// Prime the cache.
	if _, err := cache.Get(context.Background(), ViewLeaderboard()); err != nil {
		t.Fatalf("prime: %v", err)
	}
	if fetches != 1 {
		t.Fatalf("prime fetches: got %d, want 1", fetches)
	}

	conn.push(t, "leaderboard_update", map[string]any{"user_id": "u1", "new_total": 40})

	deadline := time.Now().Add(2 * time.Second)
	for !cache.Stale(ViewLeaderboard()) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !cache.Stale(ViewLeaderboard()) {
		t.Fatal("leaderboard view not marked stale after leaderboard_update")
	}

	// The payload is never applied directly. Two reads after one
	// invalidation trigger exactly one re-fetch.
	got, err := cache.Get(context.Background(), ViewLeaderboard())
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if got != "snapshot-2" {
		t.Errorf("refetch data: got %v, want snapshot-2", got)
	}
	if _, err := cache.Get(context.Background(), ViewLeaderboard()); err != nil {
		t.Fatalf("cached read: %v", err)
	}
	if fetches != 2 {
		t.Errorf("fetches: got %d, want 2 (one prime + one refetch)", fetches)
	}
}

func TestRegistrationInvalidatesEnumeratedViews(t *testing.T) {
	cache := NewCache()
	cache.Register(ViewEventParticipants("e1"), func(ctx context.Context) (any, error) { return "p", nil })
	cache.Register(ViewUserDashboard("u1"), func(ctx context.Context) (any, error) { return "d", nil })
	cache.Register(ViewLeaderboard(), func(ctx context.Context) (any, error) { return "l", nil })

	ctx := context.Background()
	for _, v := range []string{ViewEventParticipants("e1"), ViewUserDashboard("u1"), ViewLeaderboard()} {
		if _, err := cache.Get(ctx, v); err != nil {
			t.Fatalf("prime %s: %v", v, err)
		}
	}

	a, conn, _ := newConnectedAgent(t, cache)
	defer a.Close()

	conn.push(t, "new_registration", map[string]string{"event_id": "e1", "user_id": "u1"})

	deadline := time.Now().Add(2 * time.Second)
	for !cache.Stale(ViewUserDashboard("u1")) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if !cache.Stale(ViewEventParticipants("e1")) {
		t.Error("eventParticipants(e1) should be stale")
	}
	if !cache.Stale(ViewUserDashboard("u1")) {
		t.Error("userDashboard(u1) should be stale")
	}
	if cache.Stale(ViewLeaderboard()) {
		t.Error("leaderboard should be untouched by new_registration")
	}
}

func TestUnknownEventTypeIsIgnored(t *testing.T) {
	cache := NewCache()
	cache.Register(ViewLeaderboard(), func(ctx context.Context) (any, error) { return "l", nil })
	if _, err := cache.Get(context.Background(), ViewLeaderboard()); err != nil {
		t.Fatal(err)
	}

	a, conn, _ := newConnectedAgent(t, cache)
	defer a.Close()

	conn.push(t, "totally_new_type", map[string]string{"x": "y"})
	conn.push(t, "announcement", map[string]string{"title": "t"})

	// The second (known) frame proves the first was processed and
	// skipped without killing the read loop.
	deadline := time.Now().Add(2 * time.Second)
	for a.State() == StateConnected && time.Now().Before(deadline) {
		if cache.Stale(ViewLeaderboard()) {
			t.Fatal("unknown type must not invalidate views")
		}
		time.Sleep(time.Millisecond)
		if len(conn.inbox) == 0 {
			break
		}
	}
	if a.State() != StateConnected {
		t.Errorf("agent should stay connected after unknown frame, state=%v", a.State())
	}
}

func TestReconnectBackoffDoublesAndGivesUp(t *testing.T) {
	clock := &fakeClock{}
	dialErr := errors.New("refused")
	var dials int
	var dialMu sync.Mutex
	dial := func(ctx context.Context) (Conn, error) {
		dialMu.Lock()
		dials++
		dialMu.Unlock()
		return nil, dialErr
	}

	base := 100 * time.Millisecond
	a := New(dial, NewCache(), DefaultInvalidations(), Options{
		BaseDelay:   base,
		MaxDelay:    10 * time.Second,
		MaxAttempts: 3,
		Clock:       clock,
	}, zap.NewNop())
	defer a.Close()

	a.Connect()

	// First failure schedules retry after base.
	deadline := time.Now().Add(2 * time.Second)
	for clock.lastDelay() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := clock.lastDelay(); got != base {
		t.Fatalf("first delay: got %v, want %v", got, base)
	}

	// Second failure doubles the delay.
	clock.fireLast()
	deadline = time.Now().Add(2 * time.Second)
	for clock.lastDelay() == base && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := clock.lastDelay(); got != 2*base {
		t.Fatalf("second delay: got %v, want %v", got, 2*base)
	}

	// Third failure schedules the last allowed attempt; after it fails
	// the agent reports persistent disconnection and stops dialing.
	clock.fireLast()
	deadline = time.Now().Add(2 * time.Second)
	for clock.lastDelay() == 2*base && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := clock.lastDelay(); got != 4*base {
		t.Fatalf("third delay: got %v, want %v", got, 4*base)
	}
	clock.fireLast()
	waitState(t, a, StatePermanentlyDisconnected)

	dialMu.Lock()
	finalDials := dials
	dialMu.Unlock()
	if finalDials != 4 { // initial + 3 retries
		t.Errorf("dials: got %d, want 4", finalDials)
	}
}

func TestBackoffDelayIsCapped(t *testing.T) {
	clock := &fakeClock{}
	dial := func(ctx context.Context) (Conn, error) { return nil, errors.New("refused") }

	a := New(dial, NewCache(), DefaultInvalidations(), Options{
		BaseDelay:   time.Second,
		MaxDelay:    2 * time.Second,
		MaxAttempts: 4,
		Clock:       clock,
	}, zap.NewNop())
	defer a.Close()

	a.Connect()
	deadline := time.Now().Add(2 * time.Second)
	for clock.lastDelay() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	clock.fireLast() // attempt 1 -> delay would be 2s (at cap)
	deadline = time.Now().Add(2 * time.Second)
	for clock.lastDelay() != 2*time.Second && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	clock.fireLast() // attempt 2 -> 4s uncapped, must clamp to 2s
	deadline = time.Now().Add(2 * time.Second)
	for clock.delayCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := clock.lastDelay(); got != 2*time.Second {
		t.Errorf("capped delay: got %v, want 2s", got)
	}
}

func TestSuccessfulReconnectResetsAttempts(t *testing.T) {
	clock := &fakeClock{}
	var dialMu sync.Mutex
	var conns []*fakeConn
	failFirst := true
	dial := func(ctx context.Context) (Conn, error) {
		dialMu.Lock()
		defer dialMu.Unlock()
		if failFirst {
			failFirst = false
			return nil, errors.New("refused")
		}
		c := newFakeConn()
		conns = append(conns, c)
		return c, nil
	}

	base := 100 * time.Millisecond
	a := New(dial, NewCache(), DefaultInvalidations(), Options{
		BaseDelay:   base,
		MaxDelay:    time.Second,
		MaxAttempts: 5,
		Clock:       clock,
	}, zap.NewNop())
	defer a.Close()

	a.Connect()
	deadline := time.Now().Add(2 * time.Second)
	for clock.lastDelay() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	clock.fireLast()
	waitState(t, a, StateConnected)

	// Drop the live connection: the next scheduled delay starts over at
	// base because connecting reset the attempt counter.
	dialMu.Lock()
	live := conns[0]
	dialMu.Unlock()
	live.Close()

	deadline = time.Now().Add(2 * time.Second)
	for clock.delayCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := clock.lastDelay(); got != base {
		t.Errorf("delay after successful connect: got %v, want %v (attempt counter reset)", got, base)
	}
}

func TestSendWhileDisconnectedIsDroppedNotQueued(t *testing.T) {
	clock := &fakeClock{}
	dial := func(ctx context.Context) (Conn, error) { return nil, errors.New("refused") }
	a := New(dial, NewCache(), DefaultInvalidations(), Options{Clock: clock}, zap.NewNop())
	defer a.Close()

	if err := a.Send("hello", map[string]string{"k": "v"}); err != nil {
		t.Errorf("send while disconnected should be a silent drop, got error %v", err)
	}
}

func TestCloseCancelsPendingReconnect(t *testing.T) {
	clock := &fakeClock{}
	var dialMu sync.Mutex
	dials := 0
	dial := func(ctx context.Context) (Conn, error) {
		dialMu.Lock()
		dials++
		dialMu.Unlock()
		return nil, errors.New("refused")
	}

	a := New(dial, NewCache(), DefaultInvalidations(), Options{
		BaseDelay:   100 * time.Millisecond,
		MaxAttempts: 5,
		Clock:       clock,
	}, zap.NewNop())

	a.Connect()
	deadline := time.Now().Add(2 * time.Second)
	for clock.lastDelay() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	a.Close()
	dialMu.Lock()
	before := dials
	dialMu.Unlock()

	// Firing the timer after teardown must not dial again.
	clock.fireLast()
	time.Sleep(20 * time.Millisecond)

	dialMu.Lock()
	after := dials
	dialMu.Unlock()
	if after != before {
		t.Errorf("dials after close: got %d extra", after-before)
	}
}

func TestCloseStopsInvalidation(t *testing.T) {
	cache := NewCache()
	cache.Register(ViewAnnouncements(), func(ctx context.Context) (any, error) { return "a", nil })
	if _, err := cache.Get(context.Background(), ViewAnnouncements()); err != nil {
		t.Fatal(err)
	}

	a, conn, _ := newConnectedAgent(t, cache)
	a.Close()

	// A frame racing teardown must not invalidate after Close returned.
	conn.push(t, "announcement", map[string]string{"title": "late"})
	time.Sleep(20 * time.Millisecond)
	if cache.Stale(ViewAnnouncements()) {
		t.Error("invalidation applied after Close")
	}
}

func TestDisconnectMarksEverythingStale(t *testing.T) {
	cache := NewCache()
	cache.Register(ViewLeaderboard(), func(ctx context.Context) (any, error) { return "l", nil })
	if _, err := cache.Get(context.Background(), ViewLeaderboard()); err != nil {
		t.Fatal(err)
	}

	a, conn, _ := newConnectedAgent(t, cache)
	defer a.Close()

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for !cache.Stale(ViewLeaderboard()) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !cache.Stale(ViewLeaderboard()) {
		t.Error("cached views should be explicitly stale after disconnect")
	}
}
