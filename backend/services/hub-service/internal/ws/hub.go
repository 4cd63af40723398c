package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"sensegrid/backend/services/hub-service/internal/models"
)

// Event names pushed to live subscribers.
const (
	EventReadingCreated    = "reading.created"
	EventAlertRaised       = "alert.raised"
	EventAlertAcknowledged = "alert.acknowledged"
)

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub fans live updates out to all registered connections. Broadcasts never
// block and never fail the caller; a dead connection is cleaned up by its own
// pump.
type Hub struct {
	mu           sync.RWMutex
	connections  map[string]*Connection
	pingInterval time.Duration
	logger       *zap.Logger
}

// NewHub builds live-update hub.
func NewHub(pingInterval time.Duration, logger *zap.Logger) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Hub{
		connections:  make(map[string]*Connection),
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// Add registers new connection.
func (h *Hub) Add(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn.ID()] = conn
}

// Remove removes connection.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, id)
}

// Start begins ping loop to keep connections active.
func (h *Hub) Start(ctx context.Context) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.mu.RLock()
			for _, conn := range h.connections {
				_ = conn.Ping()
			}
			h.mu.RUnlock()
		}
	}
}

// ReadingCreated pushes a stored reading to all subscribers.
func (h *Hub) ReadingCreated(r *models.Reading) {
	h.broadcast(EventReadingCreated, r)
}

// AlertRaised pushes a newly created alert to all subscribers.
func (h *Hub) AlertRaised(a *models.Alert) {
	h.broadcast(EventAlertRaised, a)
}

// AlertAcknowledged pushes an acknowledge transition to all subscribers.
func (h *Hub) AlertAcknowledged(a *models.Alert) {
	h.broadcast(EventAlertAcknowledged, a)
}

func (h *Hub) broadcast(event string, data any) {
	msg, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		h.logger.Warn("failed to encode live update", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.connections {
		conn.Send(msg)
	}
}
