// Package fanout is the push side of the telemetry bus: a websocket hub
// that streams telemetry events to connected operator consoles, adapted
// from the teacher's cmd/fanout (which broadcast HITL approval requests to
// per-username websocket connections over Redis pub/sub). Here every
// connected watcher gets every event on the bus — there is no per-user
// routing concept in EDGELESS telemetry — but the register/unregister/
// broadcast channel shape is unchanged.
package fanout

import (
	"encoding/json"
	"sync"

	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
)

// Hub maintains active watcher connections and broadcasts telemetry events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan model.TelemetryEvent

	log  *logger.Logger
	done chan struct{}
}

// NewHub creates a new Hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan model.TelemetryEvent, 256),
		log:        log,
		done:       make(chan struct{}),
	}
}

// Run drives the hub's main loop until Close is called.
func (h *Hub) Run() {
	h.log.Info("telemetry fanout hub started")

	for {
		select {
		case <-h.done:
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case ev := <-h.broadcast:
			h.broadcastEvent(ev)
		}
	}
}

// Handle implements telemetry.Handler: every event on the bus is offered to
// the hub for broadcast, and is always Passed along the chain.
func (h *Hub) Handle(ev model.TelemetryEvent) model.TelemetryHandlerResult {
	select {
	case h.broadcast <- ev:
	default:
		h.log.Warn("telemetry fanout broadcast buffer full, dropping event", "type", string(ev.Type))
	}
	return model.TelemetryPassed
}

// Close stops the hub's loop and disconnects all clients.
func (h *Hub) Close() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
	}
	h.clients = make(map[*Client]struct{})
}

func (h *Hub) registerClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.log.Info("telemetry watcher connected", "total_watchers", len(h.clients))
}

func (h *Hub) unregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.log.Info("telemetry watcher disconnected", "total_watchers", len(h.clients))
	}
}

func (h *Hub) broadcastEvent(ev model.TelemetryEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("failed to marshal telemetry event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.log.Warn("telemetry watcher send buffer full, disconnecting")
			go func(c *Client) { h.unregister <- c }(c)
		}
	}
}

// WatcherCount returns the number of connected watchers.
func (h *Hub) WatcherCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
