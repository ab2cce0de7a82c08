// Package sandbox is a local stand-in for the production backend: fake
// routing, chat REST, a notification sink and a realtime channel, all served
// from one process so the SDK can be exercised without network dependencies.
package sandbox

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/gocomet/ride-sdk/internal/backend"
	"github.com/gocomet/ride-sdk/pkg/logger"
)

// roadFactor inflates straight-line distance to approximate road routing
const roadFactor = 1.3

// citySpeedMps is the assumed average speed for fake durations
const citySpeedMps = 8.33

// Server is the sandbox backend
type Server struct {
	logger *logger.Logger
	hub    *hub

	mu       sync.Mutex
	messages map[string][]backend.WireMessage
}

// NewServer creates a sandbox backend
func NewServer(log *logger.Logger) *Server {
	return &Server{
		logger:   log,
		hub:      newHub(log),
		messages: make(map[string][]backend.WireMessage),
	}
}

// SetupRoutes configures all sandbox routes
func (s *Server) SetupRoutes(r *gin.Engine, nrApp *newrelic.Application) {
	if nrApp != nil {
		r.Use(nrgin.Middleware(nrApp))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// OSRM-compatible routing surface
	r.GET("/route/v1/driving/*coords", s.handleRoute)

	v1 := r.Group("/v1")
	{
		v1.GET("/ws", s.handleWebSocket)
		v1.POST("/notify", s.handleNotify)

		rides := v1.Group("/rides")
		{
			rides.GET("/:id/messages", s.handleGetMessages)
			rides.POST("/:id/messages", s.handlePostMessage)
			rides.POST("/:id/read", s.handleMarkRead)
		}
	}
}

// handleRoute fakes an OSRM /route answer with a straight-line estimate
func (s *Server) handleRoute(c *gin.Context) {
	coords := strings.TrimPrefix(c.Param("coords"), "/")
	pairs := strings.Split(coords, ";")
	if len(pairs) != 2 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "InvalidQuery"})
		return
	}

	start, ok1 := parseLngLat(pairs[0])
	end, ok2 := parseLngLat(pairs[1])
	if !ok1 || !ok2 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "InvalidQuery"})
		return
	}

	distance := haversineMeters(start[1], start[0], end[1], end[0]) * roadFactor
	duration := distance / citySpeedMps

	c.JSON(http.StatusOK, gin.H{
		"code": "Ok",
		"routes": []gin.H{
			{
				"distance": math.Round(distance),
				"duration": math.Round(duration),
				"geometry": gin.H{
					"coordinates": [][]float64{start, end},
				},
			},
		},
	})
}

// handleNotify accepts lifecycle notifications and logs them
func (s *Server) handleNotify(c *gin.Context) {
	var body struct {
		Kind    string                 `json:"kind"`
		Payload map[string]interface{} `json:"payload"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	s.logger.Info("Notification received",
		logger.String("kind", body.Kind),
		logger.Any("payload", body.Payload),
	)
	c.Status(http.StatusNoContent)
}

// handleGetMessages serves the stored thread for a ride
func (s *Server) handleGetMessages(c *gin.Context) {
	rideID := c.Param("id")

	s.mu.Lock()
	thread := make([]backend.WireMessage, len(s.messages[rideID]))
	copy(thread, s.messages[rideID])
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"messages": thread})
}

// handlePostMessage stores a message and echoes it over the realtime channel
func (s *Server) handlePostMessage(c *gin.Context) {
	rideID := c.Param("id")

	var body struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	parsedRide, err := uuid.Parse(rideID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ride id"})
		return
	}

	msg := backend.WireMessage{
		ID:        uuid.New().String(),
		RideID:    parsedRide,
		SenderID:  senderFromRequest(c),
		Text:      body.Text,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.messages[rideID] = append(s.messages[rideID], msg)
	s.mu.Unlock()

	// echo to subscribers before answering, mirroring a backend where the
	// push channel often beats the HTTP response
	s.hub.broadcast(rideID, "new_message", msg)

	c.JSON(http.StatusOK, msg)
}

// handleMarkRead flips the thread to read and pushes receipts
func (s *Server) handleMarkRead(c *gin.Context) {
	rideID := c.Param("id")

	s.mu.Lock()
	ids := make([]string, 0, len(s.messages[rideID]))
	for i := range s.messages[rideID] {
		if !s.messages[rideID][i].IsRead {
			s.messages[rideID][i].IsRead = true
			ids = append(ids, s.messages[rideID][i].ID)
		}
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.hub.broadcast(rideID, "message_read", gin.H{"message_id": id})
	}
	c.Status(http.StatusNoContent)
}

// handleWebSocket upgrades and subscribes the caller to a ride's events
func (s *Server) handleWebSocket(c *gin.Context) {
	rideID := c.Query("ride_id")
	if rideID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ride_id is required"})
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(*http.Request) bool {
			return true // sandbox only
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade to WebSocket", logger.Err(err))
		return
	}

	s.hub.subscribe(rideID, conn)
}

// senderFromRequest derives the caller identity. The sandbox convention is
// that the bearer token is the caller's uuid.
func senderFromRequest(c *gin.Context) uuid.UUID {
	auth := c.GetHeader("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	if id, err := uuid.Parse(token); err == nil {
		return id
	}
	return uuid.Nil
}

func parseLngLat(raw string) ([]float64, bool) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return nil, false
	}
	lng, err1 := strconv.ParseFloat(parts[0], 64)
	lat, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil {
		return nil, false
	}
	return []float64{lng, lat}, true
}

func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadius = 6371000.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180.0 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
