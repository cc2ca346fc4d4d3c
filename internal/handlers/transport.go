package handlers

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wirebus/wirebus/internal/models"
)

// wsTransport adapts a gorilla connection to the broker.Transport contract.
// A mutex serializes data-frame writes because the session writer goroutine,
// the session reader (acks, errors) and the registry's DISCONNECT path all
// send through it. Control frames use gorilla's own concurrency-safe path.
type wsTransport struct {
	conn      *websocket.Conn
	writeWait time.Duration

	mu     sync.Mutex
	closed atomic.Bool
}

func newWSTransport(conn *websocket.Conn, writeWait time.Duration) *wsTransport {
	return &wsTransport{conn: conn, writeWait: writeWait}
}

func (t *wsTransport) WriteFrame(frame models.ServerFrame) error {
	return t.writeJSON(frame)
}

func (t *wsTransport) writeJSON(v any) error {
	if t.closed.Load() {
		return net.ErrClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return net.ErrClosed
	}
	t.conn.SetWriteDeadline(time.Now().Add(t.writeWait))
	if err := t.conn.WriteJSON(v); err != nil {
		// A failed write leaves the connection unusable.
		t.closed.Store(true)
		return err
	}
	return nil
}

func (t *wsTransport) Close(code int, reason string) error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	deadline := time.Now().Add(t.writeWait)
	_ = t.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	return t.conn.Close()
}

func (t *wsTransport) IsOpen() bool { return !t.closed.Load() }

// Ping sends a protocol-level ping control frame.
func (t *wsTransport) Ping() error {
	if t.closed.Load() {
		return net.ErrClosed
	}
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.writeWait))
}

// markClosed flips the open flag when the reader observes a peer close,
// without emitting a close frame of our own.
func (t *wsTransport) markClosed() {
	if t.closed.CompareAndSwap(false, true) {
		_ = t.conn.Close()
	}
}
