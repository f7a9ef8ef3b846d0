// internal/app/features/ws/handler.go
package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/calebdock/comphub/internal/app/hub"
	"github.com/calebdock/comphub/internal/app/system/identity"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin enforcement happens at the edge along with identity.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP connections and bridges them to the hub.
//
// Each connection gets its own subscription keyed by a fresh UUID. If
// the connection cannot drain its buffer the hub drops the
// subscription; the write pump then observes the closed channel and
// shuts the socket down. Nothing is ever queued for a dead peer.
type Handler struct {
	Hub *hub.Hub
	Log *zap.Logger
}

// NewHandler constructs a ws Handler.
func NewHandler(h *hub.Hub, logger *zap.Logger) *Handler {
	return &Handler{
		Hub: h,
		Log: logger,
	}
}

// ServeWS handles GET /ws.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.UserID(r)
	if err != nil {
		http.Error(w, "missing or invalid identity", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	msgs := h.Hub.Subscribe(connID)

	h.Log.Info("websocket connected",
		zap.String("conn_id", connID),
		zap.String("user_id", userID.Hex()))

	go h.writePump(conn, connID, msgs)
	go h.readPump(conn, connID)
}

// writePump serializes hub messages onto the socket and keeps the
// connection alive with pings. It owns all writes.
func (h *Handler) writePump(conn *websocket.Conn, connID string, msgs <-chan hub.Message) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.Hub.Unsubscribe(connID)
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-msgs:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Dropped by the hub or the hub shut down.
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.Log.Debug("websocket write failed",
					zap.String("conn_id", connID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes inbound frames. Clients are listeners; inbound
// frames are logged and discarded.
func (h *Handler) readPump(conn *websocket.Conn, connID string) {
	defer func() {
		h.Hub.Unsubscribe(connID)
		_ = conn.Close()
	}()

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Log.Debug("websocket read failed",
					zap.String("conn_id", connID), zap.Error(err))
			}
			return
		}

		var frame hub.Message
		if err := json.Unmarshal(raw, &frame); err != nil {
			h.Log.Info("discarding malformed frame", zap.String("conn_id", connID))
			continue
		}
		h.Log.Info("discarding unexpected inbound frame",
			zap.String("conn_id", connID),
			zap.String("type", frame.Type))
	}
}
