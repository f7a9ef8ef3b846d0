package syncagent

import (
	"context"
	"errors"
	"testing"
)

func TestCacheGetFetchesOnceUntilInvalidated(t *testing.T) {
	c := NewCache()
	n := 0
	c.Register("roster", func(ctx context.Context) (any, error) {
		n++
		return n, nil
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		v, err := c.Get(ctx, "roster")
		if err != nil {
			t.Fatal(err)
		}
		if v != 1 {
			t.Fatalf("read %d: got %v, want 1", i, v)
		}
	}
	if n != 1 {
		t.Fatalf("fetches: got %d, want 1", n)
	}

	c.Invalidate("roster")
	v, err := c.Get(ctx, "roster")
	if err != nil {
		t.Fatal(err)
	}
	if v != 2 || n != 2 {
		t.Fatalf("after invalidate: value %v, fetches %d", v, n)
	}
}

func TestCacheFetchErrorLeavesViewStale(t *testing.T) {
	c := NewCache()
	fail := true
	c.Register("dash", func(ctx context.Context) (any, error) {
		if fail {
			return nil, errors.New("backend down")
		}
		return "ok", nil
	})

	ctx := context.Background()
	if _, err := c.Get(ctx, "dash"); err == nil {
		t.Fatal("expected fetch error")
	}
	if !c.Stale("dash") {
		t.Error("failed fetch should leave the view stale")
	}

	fail = false
	v, err := c.Get(ctx, "dash")
	if err != nil {
		t.Fatal(err)
	}
	if v != "ok" {
		t.Errorf("got %v, want ok", v)
	}
	if c.Stale("dash") {
		t.Error("successful fetch should clear staleness")
	}
}

func TestCacheGetUnknownView(t *testing.T) {
	c := NewCache()
	if _, err := c.Get(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unregistered view")
	}
}

func TestCacheInvalidateUnknownViewIsNoop(t *testing.T) {
	c := NewCache()
	c.Register("a", func(ctx context.Context) (any, error) { return 1, nil })
	c.Invalidate("missing") // must not panic
	c.InvalidateAll()
}

func TestInvalidationTableResolve(t *testing.T) {
	table := DefaultInvalidations()

	views, ok := table.Resolve("new_event", nil)
	if !ok {
		t.Fatal("new_event should be a known type")
	}
	if len(views) != 1 || views[0] != ViewEventList() {
		t.Errorf("new_event views: %v", views)
	}

	if _, ok := table.Resolve("mystery", nil); ok {
		t.Error("unknown type should resolve to not-ok")
	}

	views, ok = table.Resolve("new_registration", []byte(`{"event_id":"e9","user_id":"u9"}`))
	if !ok {
		t.Fatal("new_registration should be known")
	}
	want := map[string]bool{
		ViewEventParticipants("e9"): true,
		ViewUserDashboard("u9"):     true,
	}
	if len(views) != len(want) {
		t.Fatalf("views: %v", views)
	}
	for _, v := range views {
		if !want[v] {
			t.Errorf("unexpected view %q", v)
		}
	}
}
