package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fleet-tracker/internal/general/contracts"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	ctrlTimeout      = 5 * time.Second
)

var ErrConnClosed = errors.New("websocket: connection closed")

// wireConn is the part of *websocket.Conn that writers use.
type wireConn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Conn serializes every write to one socket. gorilla allows one concurrent writer.
type Conn struct {
	id string
	ws wireConn

	mu     sync.Mutex
	closed bool
}

func NewConn(id string, ws *websocket.Conn) *Conn {
	return newConn(id, ws)
}

func newConn(id string, ws wireConn) *Conn {
	return &Conn{id: id, ws: ws}
}

func (c *Conn) ID() string { return c.id }

// WriteRaw writes an already encoded text frame.
func (c *Conn) WriteRaw(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}

	_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// WriteEvent encodes {"type","data"} and writes it.
func (c *Conn) WriteEvent(eventType string, data any) error {
	payload, err := json.Marshal(contracts.OutboundFrame{Type: eventType, Data: data})
	if err != nil {
		return err
	}
	return c.WriteRaw(payload)
}

// Ping sends a ping control frame.
func (c *Conn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout))
}

// WriteClose sends a close control frame with the given code and reason.
func (c *Conn) WriteClose(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(wsCloseAckWindow),
	)
}

// Close closes the socket once; later writes fail with ErrConnClosed.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ws.Close()
}
