package ws

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

// client is one live connection with its session state. roomID and username
// stay empty until a successful join_room; a connection joins at most one
// room for its lifetime.
type client struct {
	id       string
	username string
	roomID   string

	ws  *websocket.Conn
	out chan []byte
}

// Accept upgrades HTTP to websocket (allow all origins; CORS is enforced on
// the HTTP surface)
func Accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
}

func newClient(id string, ws *websocket.Conn) *client {
	return &client{
		id:  id,
		ws:  ws,
		out: make(chan []byte, 256),
	}
}

// send queues an outbound frame without blocking
func (c *client) send(b []byte) {
	select {
	case c.out <- b:
	default: // skip if send buffer is full
	}
}

// Read blocks until it receives a text/binary message
// Returns false if connection is closed
func (c *client) Read(ctx context.Context) ([]byte, bool) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			return nil, false
		}
		if typ == websocket.MessageText || typ == websocket.MessageBinary {
			return data, true
		}
	}
}

// WriteLoop sends outbound messages + periodic pings
// Exits when ctx is cancelled
func (c *client) WriteLoop(ctx context.Context) {
	t := time.NewTicker(20 * time.Second)
	defer t.Stop()

	for {
		select {
		case b := <-c.out:
			_ = c.ws.Write(ctx, websocket.MessageText, b)
		case <-t.C:
			_ = c.ws.Ping(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Close closes the WS connection normally
func (c *client) Close() error { return c.ws.Close(websocket.StatusNormalClosure, "bye") }
