package sandbox

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gocomet/ride-sdk/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// hub fans realtime events out to subscribers, grouped per ride
type hub struct {
	mu     sync.RWMutex
	byRide map[string]map[*subscriber]bool
	logger *logger.Logger
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

func newHub(log *logger.Logger) *hub {
	return &hub{
		byRide: make(map[string]map[*subscriber]bool),
		logger: log,
	}
}

func (h *hub) subscribe(rideID string, conn *websocket.Conn) *subscriber {
	sub := &subscriber{conn: conn, send: make(chan []byte, 64)}

	h.mu.Lock()
	if h.byRide[rideID] == nil {
		h.byRide[rideID] = make(map[*subscriber]bool)
	}
	h.byRide[rideID][sub] = true
	h.mu.Unlock()

	h.logger.Info("Realtime subscriber registered", logger.String("ride_id", rideID))

	go sub.writePump()
	go h.readPump(rideID, sub)
	return sub
}

func (h *hub) unsubscribe(rideID string, sub *subscriber) {
	h.mu.Lock()
	if subs, ok := h.byRide[rideID]; ok {
		if subs[sub] {
			delete(subs, sub)
			close(sub.send)
		}
		if len(subs) == 0 {
			delete(h.byRide, rideID)
		}
	}
	h.mu.Unlock()
}

// broadcast sends one typed event to every subscriber of a ride
func (h *hub) broadcast(rideID, eventType string, data interface{}) {
	payload, err := json.Marshal(map[string]interface{}{
		"type": eventType,
		"data": data,
	})
	if err != nil {
		h.logger.Error("Failed to marshal realtime event", logger.Err(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.byRide[rideID] {
		select {
		case sub.send <- payload:
		default:
			h.logger.Warn("Subscriber send buffer full",
				logger.String("ride_id", rideID),
			)
		}
	}
}

// readPump drains the client until it disconnects, then unsubscribes
func (h *hub) readPump(rideID string, sub *subscriber) {
	defer func() {
		h.unsubscribe(rideID, sub)
		sub.conn.Close()
	}()

	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
