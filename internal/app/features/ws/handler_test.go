package ws_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	wsfeature "github.com/calebdock/comphub/internal/app/features/ws"
	"github.com/calebdock/comphub/internal/app/hub"
	"github.com/calebdock/comphub/internal/app/system/identity"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func dialTestServer(t *testing.T, h *hub.Hub) *websocket.Conn {
	t.Helper()

	handler := wsfeature.NewHandler(h, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	header.Set(identity.HeaderUserID, primitive.NewObjectID().Hex())

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServeWS_DeliversPublishedFrames(t *testing.T) {
	h := hub.New(hub.DefaultSendBuffer, zap.NewNop())
	defer h.Close()

	conn := dialTestServer(t, h)

	// The subscription is registered during the upgrade handler; wait
	// for it to show up before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for h.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if h.SubscriberCount() != 1 {
		t.Fatalf("subscribers: got %d, want 1", h.SubscriberCount())
	}

	h.Publish(hub.Message{
		Type: "announcement",
		Data: map[string]string{"title": "hello"},
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var frame struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("parse frame %q: %v", raw, err)
	}
	if frame.Type != "announcement" {
		t.Errorf("type: got %q, want announcement", frame.Type)
	}
	var data map[string]string
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data["title"] != "hello" {
		t.Errorf("payload: got %v", data)
	}
}

func TestServeWS_RejectsMissingIdentity(t *testing.T) {
	h := hub.New(hub.DefaultSendBuffer, zap.NewNop())
	defer h.Close()

	handler := wsfeature.NewHandler(h, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestServeWS_ClientCloseRemovesSubscription(t *testing.T) {
	h := hub.New(hub.DefaultSendBuffer, zap.NewNop())
	defer h.Close()

	conn := dialTestServer(t, h)

	deadline := time.Now().Add(2 * time.Second)
	for h.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	_ = conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for h.SubscriberCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if h.SubscriberCount() != 0 {
		t.Error("subscription should be removed after the client disconnects")
	}
}
