package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/fortuna/almanac/internal/harvest"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server pushes harvest events to connected dashboards.
type Server struct {
	port   string
	server *http.Server
	hub    *Hub
	logger *log.Logger
}

// NewServer creates a WebSocket server and starts its hub.
func NewServer(logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[ws] ", log.LstdFlags)
	}
	hub := NewHub(logger)
	go hub.Run()

	return &Server{
		hub:    hub,
		logger: logger,
	}
}

// Handler returns the WebSocket routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/harvest", s.handleHarvest)
	mux.HandleFunc("/ws/health", s.handleHealth)
	return mux
}

// Start starts the WebSocket server
func (s *Server) Start(port string) error {
	s.port = port
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: s.Handler(),
	}

	s.logger.Printf("WebSocket server listening on :%s", port)
	return s.server.ListenAndServe()
}

// handleHarvest upgrades the connection and subscribes it to harvest events.
func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case client.hub.register <- client:
	case <-client.hub.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// handleHealth returns WebSocket server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "healthy", "clients": %d}`, s.hub.ClientCount())
}

// Publish broadcasts one harvest event. It matches harvest.Service.Subscribe.
func (s *Server) Publish(e harvest.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.logger.Printf("⚠️  Failed to encode %s event: %v", e.Type, err)
		return
	}
	s.hub.Broadcast(data)
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}

// Shutdown stops the listener and disconnects every client.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	s.hub.Stop()
	return err
}
