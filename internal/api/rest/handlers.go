package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fortuna/almanac/internal/fixture"
	"github.com/fortuna/almanac/internal/store"
)

const (
	serviceName    = "almanac"
	serviceVersion = "1.0.0"
)

// Pinger is a dependency the health check pings, such as store.Database
// or cache.RedisCache.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Handler serves queries over the stored dataset.
type Handler struct {
	fixtures store.Store
	checks   map[string]Pinger
}

// NewHandler creates a new handler
func NewHandler(fixtures store.Store) *Handler {
	return &Handler{fixtures: fixtures, checks: map[string]Pinger{}}
}

// HealthCheck handles health check requests. Each registered dependency is
// pinged; any failure turns the response into a 503.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.HealthCheck(r.Context()); err != nil {
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	respondJSON(w, code, map[string]interface{}{
		"status":  status,
		"service": serviceName,
		"version": serviceVersion,
		"checks":  checks,
	})
}

// GetFixtures handles GET /api/v1/fixtures?league=&season=&week=&limit=
func (h *Handler) GetFixtures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	ds, err := h.fixtures.Load(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load fixtures", err)
		return
	}

	matches := ds.Select(fixture.Filter{
		League: q.Get("league"),
		Season: q.Get("season"),
		Week:   q.Get("week"),
	})
	total := len(matches)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"source":   h.fixtures.Location(),
		"total":    total,
		"count":    len(matches),
		"fixtures": matches,
	})
}

// GetSummary handles GET /api/v1/fixtures/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ds, err := h.fixtures.Load(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load fixtures", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"source":  h.fixtures.Location(),
		"total":   len(ds),
		"seasons": ds.Summarize(),
	})
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
