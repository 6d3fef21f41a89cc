package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 16 * 1024
)

// clientConn wraps one websocket transport. Writes can come from the
// connection's own reader loop, broadcast fan-out, and the heartbeat
// ticker concurrently, so every write goes through the mutex.
type clientConn struct {
	id      string
	rawConn *websocket.Conn

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func newClientConn(rawConn *websocket.Conn) *clientConn {
	rawConn.SetReadLimit(maxFrameSize)
	return &clientConn{id: uuid.NewString(), rawConn: rawConn}
}

func (c *clientConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return websocket.ErrCloseSent
	}
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteMessage(websocket.TextMessage, data)
}

func (c *clientConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return websocket.ErrCloseSent
	}
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteJSON(v)
}

// close tears the transport down. Idempotent; the reader loop unblocks with
// an error and runs the normal teardown path.
func (c *clientConn) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		_ = c.rawConn.Close()
	})
}
