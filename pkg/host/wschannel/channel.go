// Package wschannel carries the desktop webview post-message channel over a
// WebSocket, for hosts that run the shell out of process.
package wschannel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ajitpratap0/hostbridge-go/pkg/logging"
)

var (
	// ErrClosed is returned by PostMessage after the socket has gone away.
	ErrClosed = errors.New("websocket channel: connection lost")
	// ErrBackpressure is returned when the outgoing buffer is full.
	ErrBackpressure = errors.New("websocket channel: send buffer full")
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 32
)

// Channel implements host.MessageChannel and host.ListenerRegistrar.
type Channel struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	logger logging.Logger

	mu        sync.RWMutex
	listeners map[uint64]func([]byte)
	nextID    uint64
	closed    bool
	closeOnce sync.Once
}

// Dial connects to a host shell listening at url.
func Dial(ctx context.Context, url string, logger logging.Logger) (*Channel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return New(conn, logger), nil
}

// New wraps an established connection and starts its pumps.
func New(conn *websocket.Conn, logger logging.Logger) *Channel {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Channel{
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
		logger:    logger.WithFields(logging.String("module", "wschannel")),
		listeners: make(map[uint64]func([]byte)),
	}
	go c.writePump()
	go c.readPump()
	return c
}

// PostMessage queues data for delivery to the host.
func (c *Channel) PostMessage(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

// AddMessageListener registers listener for every inbound message.
func (c *Channel) AddMessageListener(listener func([]byte)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	c.nextID++
	id := c.nextID
	c.listeners[id] = listener
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}, nil
}

// Done is closed once the channel has shut down.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Close shuts the socket down. It is safe to call more than once.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()

		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = c.conn.Close()
		close(c.done)
	})
	return err
}

func (c *Channel) writePump() {
	for data := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			c.logger.Error("writePump set deadline", logging.ErrorField(err))
			go c.Close()
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.logger.Error("writePump write error", logging.ErrorField(err))
			go c.Close()
			return
		}
	}
}

func (c *Channel) readPump() {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("readPump read error", logging.ErrorField(err))
			} else {
				c.logger.Debug("readPump closing", logging.ErrorField(err))
			}
			return
		}

		c.mu.RLock()
		listeners := make([]func([]byte), 0, len(c.listeners))
		for _, l := range c.listeners {
			listeners = append(listeners, l)
		}
		c.mu.RUnlock()

		for _, l := range listeners {
			l(data)
		}
	}
}
