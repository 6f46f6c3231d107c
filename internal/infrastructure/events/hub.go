package events

import (
	"sync"
	"time"
)

// Event describes one completed process state transition.
type Event struct {
	Kind        string    `json:"kind"`
	ProcessID   string    `json:"processId"`
	ProcessType string    `json:"processType"`
	State       string    `json:"state"`
	Timestamp   time.Time `json:"timestamp"`
}

// Client is one subscriber of the event stream.
type Client struct {
	ID      string
	Events  chan Event
	closed  bool
	closeMu sync.Mutex
}

func (c *Client) close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Events)
	}
}

// Hub fans completed transitions out to in-process subscribers, notably the
// management API event stream. Slow subscribers drop events instead of
// blocking the caller.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Subscribe registers a new client with a buffered event channel.
func (h *Hub) Subscribe(clientID string) *Client {
	c := &Client{ID: clientID, Events: make(chan Event, 64)}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[clientID] = c
	return c
}

func (h *Hub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		c.close()
		delete(h.clients, clientID)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers the event to every subscriber, best effort.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		trySend(c, ev)
	}
}

// Stop closes all subscriber channels.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
}

func trySend(c *Client, ev Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
