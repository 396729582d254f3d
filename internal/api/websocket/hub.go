package websocket

import (
	"log"
	"sync"
)

// Hub fans broadcast messages out to registered clients.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	stopOnce   sync.Once

	mu    sync.RWMutex
	count int

	logger *log.Logger
}

// NewHub creates a hub. Call Run to start it.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.setCount()

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow consumer
					h.logger.Printf("⚠️  dropping slow client %s", c.conn.RemoteAddr())
					h.drop(c)
				}
			}
		}
	}
}

// Broadcast queues msg for every client. Messages are dropped once the hub
// has stopped.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Stop disconnects all clients and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
}
