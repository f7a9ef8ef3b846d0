package hub

import (
	"sync"
	"testing"

	"go.uber.org/zap"
)

func newTestHub(buffer int) *Hub {
	return New(buffer, zap.NewNop())
}

func TestSubscribeReceivesPublished(t *testing.T) {
	h := newTestHub(4)
	defer h.Close()

	ch := h.Subscribe("conn-1")
	h.Publish(Message{Type: "announcement", Data: "hello"})

	msg := <-ch
	if msg.Type != "announcement" {
		t.Errorf("type: got %q, want %q", msg.Type, "announcement")
	}
}

func TestAllSubscribersReceiveAllTypes(t *testing.T) {
	h := newTestHub(4)
	defer h.Close()

	a := h.Subscribe("a")
	b := h.Subscribe("b")

	h.Publish(Message{Type: "new_registration"})
	h.Publish(Message{Type: "leaderboard_update"})

	for _, ch := range []<-chan Message{a, b} {
		if got := (<-ch).Type; got != "new_registration" {
			t.Errorf("first message: got %q, want new_registration", got)
		}
		if got := (<-ch).Type; got != "leaderboard_update" {
			t.Errorf("second message: got %q, want leaderboard_update", got)
		}
	}
}

func TestUnsubscribeClosesStream(t *testing.T) {
	h := newTestHub(4)
	defer h.Close()

	ch := h.Subscribe("conn-1")
	h.Unsubscribe("conn-1")

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after unsubscribe")
	}
	if n := h.SubscriberCount(); n != 0 {
		t.Errorf("subscriber count: got %d, want 0", n)
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	h := newTestHub(2)
	defer h.Close()

	var droppedMu sync.Mutex
	var dropped []string
	h.dropped = func(id string) {
		droppedMu.Lock()
		dropped = append(dropped, id)
		droppedMu.Unlock()
	}

	slow := h.Subscribe("slow")
	fast := h.Subscribe("fast")

	// Fill slow's buffer (nobody reading), then overflow it. The fast
	// subscriber keeps its buffer drained, so only slow is over the line
	// on the third publish. Publish must not block at any point.
	h.Publish(Message{Type: "announcement"})
	h.Publish(Message{Type: "announcement"})
	<-fast
	<-fast
	h.Publish(Message{Type: "announcement"})
	<-fast

	droppedMu.Lock()
	defer droppedMu.Unlock()
	if len(dropped) != 1 || dropped[0] != "slow" {
		t.Fatalf("dropped: got %v, want [slow]", dropped)
	}

	// The slow stream drains its buffered messages and then closes.
	count := 0
	for range slow {
		count++
	}
	if count != 2 {
		t.Errorf("buffered messages before drop: got %d, want 2", count)
	}
	if n := h.SubscriberCount(); n != 1 {
		t.Errorf("subscriber count after drop: got %d, want 1", n)
	}
}

func TestPublishOrderPreservedPerSubscriber(t *testing.T) {
	h := newTestHub(64)
	defer h.Close()

	ch := h.Subscribe("conn-1")
	for i := 0; i < 50; i++ {
		h.Publish(Message{Type: "leaderboard_update", Data: i})
	}

	for i := 0; i < 50; i++ {
		msg := <-ch
		if msg.Data.(int) != i {
			t.Fatalf("message %d: got %v out of order", i, msg.Data)
		}
	}
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	h := newTestHub(128)
	defer h.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.Publish(Message{Type: "announcement", Data: n})
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n))
			ch := h.Subscribe(id)
			go func() {
				for range ch {
				}
			}()
			h.Unsubscribe(id)
		}(i)
	}
	wg.Wait()
}

func TestCloseStopsDelivery(t *testing.T) {
	h := newTestHub(4)
	ch := h.Subscribe("conn-1")
	h.Close()

	if _, ok := <-ch; ok {
		t.Error("expected closed stream after hub close")
	}
	// Publishing after close must not panic.
	h.Publish(Message{Type: "announcement"})
	if got := h.Subscribe("conn-2"); got == nil {
		t.Error("Subscribe after close should return a closed channel, not nil")
	}
}
