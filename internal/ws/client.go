package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// transport is the subset of *websocket.Conn the writer side needs.
type transport interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Conn is one live client session. Outbound frames go through a bounded
// queue drained by writePump, so a slow peer never blocks a broadcaster.
type Conn struct {
	id        string
	raw       transport
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	writeWait time.Duration
}

func newConn(raw transport, bufSize int, writeWait time.Duration) *Conn {
	return &Conn{
		id:        uuid.NewString(),
		raw:       raw,
		send:      make(chan []byte, bufSize),
		done:      make(chan struct{}),
		writeWait: writeWait,
	}
}

// ID is the connection's log identity.
func (c *Conn) ID() string { return c.id }

// enqueue hands msg to the writer without blocking. It reports false when
// the connection is closed or its queue is full.
func (c *Conn) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close asks the writer to flush what is queued and shut the transport.
// Safe to call more than once.
func (c *Conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Conn) write(mt int, data []byte) error {
	_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.raw.WriteMessage(mt, data) // Text/Binary only
}

// ping may run concurrently with writePump; gorilla allows WriteControl
// alongside other writers.
func (c *Conn) ping() error {
	return c.raw.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

// writePump owns every data write on the transport. A failed write closes
// the transport, which fails the reader and runs the disconnect path.
func (c *Conn) writePump() {
	defer func() { _ = c.raw.Close() }()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				zap.L().Debug("ws.write_failed", zap.String("conn", c.id), zap.Error(err))
				c.close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.raw.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"),
				time.Now().Add(c.writeWait))
			return
		}
	}
}

// flush writes whatever is still queued, best effort.
func (c *Conn) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
