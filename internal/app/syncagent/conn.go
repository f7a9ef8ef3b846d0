package syncagent

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

// wsConn adapts a gorilla websocket connection to the Conn interface.
type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.c.ReadMessage()
	return data, err
}

func (w *wsConn) WriteMessage(data []byte) error {
	return w.c.WriteMessage(websocket.TextMessage, data)
}

func (w *wsConn) Close() error {
	return w.c.Close()
}

// WebsocketDialer returns a Dialer for the platform's /ws endpoint. The
// user's externally-verified identity travels in the X-User-ID header;
// the agent performs no credential checks of its own.
func WebsocketDialer(url, userID string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		header := http.Header{}
		if userID != "" {
			header.Set("X-User-ID", userID)
		}
		c, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
		if err != nil {
			return nil, err
		}
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return &wsConn{c: c}, nil
	}
}
