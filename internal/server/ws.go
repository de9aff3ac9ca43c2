package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/keyfinger/internal/engine"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Event types sent on /api/events.
const (
	EventCalibration = "calibration"
	EventAttribution = "attribution"
)

// Event is one message pushed to websocket clients.
type Event struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// Hub pushes engine events to websocket clients.
type Hub struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	log     *logrus.Entry
}

// NewHub creates an empty Hub.
func NewHub(log *logrus.Entry) *Hub {
	if log == nil {
		log = logrus.WithField("component", "events")
	}
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		log:     log,
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends an event to every client. Clients that fail to receive it
// are dropped.
func (h *Hub) Publish(eventType string, data any) {
	msg, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	})
	if err != nil {
		h.log.WithError(err).Error("failed to encode event")
		return
	}

	// Writers are serialized by the exclusive lock; gorilla connections
	// allow a single concurrent writer.
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// PublishCalibration is an engine.OnCalibration observer.
func (h *Hub) PublishCalibration(rec *engine.Recorded) {
	h.Publish(EventCalibration, map[string]any{
		"key":      rec.Key,
		"position": rec.Position,
		"finger":   rec.Finger,
	})
}

// PublishAttribution is an engine.OnAttribution observer.
func (h *Hub) PublishAttribution(a *engine.Attribution) {
	data := map[string]any{
		"key":            a.Key,
		"key_position":   a.Target,
		"closest_finger": nil,
		"distance":       nil,
		"verdict":        a.Verdict,
	}
	if a.Match.Found {
		data["closest_finger"] = a.Match.Label
		data["finger_name"] = a.Match.Label.Name()
		data["distance"] = a.Match.Distance
	}
	h.Publish(EventAttribution, data)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		delete(h.clients, conn)
	}
}
