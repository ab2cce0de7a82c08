// Package realtime is the client side of the backend's push channel: one
// long-lived WebSocket subscription per active ride, delivering server
// events without polling.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/gocomet/ride-sdk/pkg/errors"
	"github.com/gocomet/ride-sdk/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Event types pushed by the backend
const (
	EventNewMessage  = "new_message"
	EventMessageRead = "message_read"
)

// Event is one push from the backend. Data stays raw so the consumer can
// decode per type.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// StateFunc receives connection-state changes (connected true/false).
// Surfaced for UI affordances; correctness does not depend on it.
type StateFunc func(connected bool)

// Channel is a single subscription. Close tears the listener down; the
// events channel is closed when the read pump exits, so consumers drain
// naturally and nothing leaks.
type Channel struct {
	conn    *websocket.Conn
	events  chan Event
	done    chan struct{}
	logger  *logger.Logger
	onState StateFunc

	closeOnce sync.Once
	writeMu   sync.Mutex
}

// Dial opens the subscription. A 401 during the handshake surfaces as
// ErrUnauthenticated.
func Dial(ctx context.Context, url, token string, log *logger.Logger, onState StateFunc) (*Channel, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, apperrors.ErrUnauthenticated
		}
		return nil, apperrors.Wrap(err, "dial realtime channel")
	}

	if onState == nil {
		onState = func(bool) {}
	}

	ch := &Channel{
		conn:    conn,
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
		logger:  log,
		onState: onState,
	}

	onState(true)
	go ch.readPump()
	go ch.pingLoop()
	return ch, nil
}

// Events returns the stream of decoded pushes. Closed on disconnect.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Close unsubscribes and shuts the connection down
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// readPump decodes pushes onto the events channel until the connection dies
func (c *Channel) readPump() {
	defer func() {
		c.onState(false)
		close(c.events)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Realtime channel read error", logger.Err(err))
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			c.logger.Warn("Dropping undecodable realtime event", logger.Err(err))
			continue
		}

		select {
		case c.events <- ev:
		default:
			c.logger.Warn("Realtime event buffer full, dropping event",
				logger.String("type", ev.Type),
			)
		}
	}
}

// pingLoop keeps the connection alive until it is closed
func (c *Channel) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
