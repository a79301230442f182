// Package stream pushes dashboard views to WebSocket subscribers.
package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/micko4develop/crypto-dash/internal/dashboard"
	"github.com/micko4develop/crypto-dash/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 16
)

// Message is the envelope written to subscribers.
type Message struct {
	Type string          `json:"type"`
	Data *dashboard.View `json:"data"`
}

type Hub struct {
	upgrader websocket.Upgrader
	current  func() dashboard.View
	metrics  *metrics.Metrics
	log      zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub returns a hub whose new subscribers first receive current().
func NewHub(current func() dashboard.View, allowOrigin string, m *metrics.Metrics, log zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowOrigin),
		},
		current: current,
		metrics: m,
		log:     log.With().Str("component", "stream").Logger(),
		clients: make(map[string]*client),
	}
}

func originChecker(allow string) func(*http.Request) bool {
	if allow == "" || allow == "*" {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allow
	}
}

// Observe is a dashboard observer; it never blocks on a slow subscriber.
func (h *Hub) Observe(v dashboard.View) {
	data, err := encode(v)
	if err != nil {
		h.log.Error().Err(err).Msg("encode view")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if !c.enqueue(data) {
			h.log.Warn().Str("client_id", c.id).Msg("subscriber send buffer full, dropping view")
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	if h.current != nil {
		if data, err := encode(h.current()); err == nil {
			c.enqueue(data)
		}
	}

	h.add(c)
	go c.writePump()
	c.readPump()
	h.remove(c)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
		h.metrics.StreamClientDelta(-1)
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.StreamClientDelta(1)
	h.log.Info().Str("client_id", c.id).Int("total_clients", n).Msg("subscriber connected")
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	if ok {
		h.metrics.StreamClientDelta(-1)
		h.log.Info().Str("client_id", c.id).Int("total_clients", n).Msg("subscriber disconnected")
	}
}

func encode(v dashboard.View) ([]byte, error) {
	return json.Marshal(Message{Type: "dashboard", Data: &v})
}
