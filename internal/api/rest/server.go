package rest

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fortuna/almanac/internal/harvest"
	"github.com/fortuna/almanac/internal/store"
)

// HarvestService starts runs and reports on them. harvest.Service
// implements it.
type HarvestService interface {
	Trigger(ctx context.Context, trigger string) (*harvest.Run, error)
	Status(ctx context.Context) (*harvest.StatusSummary, error)
}

// ScheduleStatus reports the scheduler state. scheduler.Orchestrator
// implements it.
type ScheduleStatus interface {
	GetStatus() map[string]interface{}
}

// Server represents the REST API server
type Server struct {
	port    string
	server  *http.Server
	handler *Handler
	router  *mux.Router
}

// NewServer creates a new REST API server. schedule may be nil.
func NewServer(port string, fixtures store.Store, harvests HarvestService, schedule ScheduleStatus, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[rest] ", log.LstdFlags)
	}

	handler := NewHandler(fixtures)
	harvestHandler := NewHarvestHandler(harvests, schedule)

	router := mux.NewRouter()

	// Apply middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggingMiddleware(logger))
	router.Use(CORSMiddleware)

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Fixtures
	api.HandleFunc("/fixtures", handler.GetFixtures).Methods("GET")
	api.HandleFunc("/fixtures/summary", handler.GetSummary).Methods("GET")

	// Harvest operations
	api.HandleFunc("/harvest", harvestHandler.HandleHarvestRequest).Methods("POST")
	api.HandleFunc("/harvest/status", harvestHandler.HandleHarvestStatus).Methods("GET")
	api.HandleFunc("/harvest/schedule", harvestHandler.HandleSchedule).Methods("GET")

	return &Server{
		port:    port,
		handler: handler,
		router:  router,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%s", port),
			Handler: router,
		},
	}
}

// AddHealthCheck registers a dependency reported by /health. Call before
// Start.
func (s *Server) AddHealthCheck(name string, p Pinger) {
	s.handler.checks[name] = p
}

// Router exposes the routes so other listeners can mount them.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start starts the REST API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
