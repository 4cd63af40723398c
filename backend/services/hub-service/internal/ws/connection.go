package ws

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Connection wraps one subscribed dashboard/browser websocket.
type Connection struct {
	id           string
	ws           *websocket.Conn
	send         chan []byte
	logger       *zap.Logger
	writeTimeout time.Duration
	onClose      func(id string)
}

// NewConnection builds connection wrapper.
func NewConnection(id string, ws *websocket.Conn, writeTimeout time.Duration, logger *zap.Logger, onClose func(string)) *Connection {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Connection{
		id:           id,
		ws:           ws,
		send:         make(chan []byte, 32),
		logger:       logger,
		writeTimeout: writeTimeout,
		onClose:      onClose,
	}
}

// ID returns identifier.
func (c *Connection) ID() string {
	return c.id
}

// Run pumps queued messages to the socket until the send channel closes or
// the peer goes away. Meant to run on its own goroutine.
func (c *Connection) Run() {
	defer c.cleanup()

	for msg := range c.send {
		if err := c.write(websocket.TextMessage, msg); err != nil {
			c.logger.Info("live connection write closed", zap.String("conn_id", c.id), zap.Error(err))
			return
		}
	}
	_ = c.write(websocket.CloseMessage, []byte{})
}

// Send enqueues a message, dropping it when the buffer is full. Live updates
// are best-effort; a slow consumer must not stall the hub.
func (c *Connection) Send(msg []byte) {
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("dropping live update, buffer full", zap.String("conn_id", c.id))
	}
}

// Ping sends ping.
func (c *Connection) Ping() error {
	return c.write(websocket.PingMessage, []byte("ping"))
}

func (c *Connection) write(messageType int, data []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Connection) cleanup() {
	_ = c.ws.Close()
	if c.onClose != nil {
		c.onClose(c.id)
	}
}
