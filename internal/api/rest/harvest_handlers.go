package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/fortuna/almanac/internal/harvest"
)

// HarvestHandler proxies API calls to the harvest service.
type HarvestHandler struct {
	service  HarvestService
	schedule ScheduleStatus
}

// NewHarvestHandler wires the REST layer to the harvest service.
func NewHarvestHandler(service HarvestService, schedule ScheduleStatus) *HarvestHandler {
	return &HarvestHandler{service: service, schedule: schedule}
}

type apiHarvestRequest struct {
	Trigger string `json:"trigger"`
}

// HandleHarvestRequest handles POST /api/v1/harvest
func (h *HarvestHandler) HandleHarvestRequest(w http.ResponseWriter, r *http.Request) {
	var req apiHarvestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Trigger == "" {
		req.Trigger = "api"
	}

	run, err := h.service.Trigger(r.Context(), req.Trigger)
	if errors.Is(err, harvest.ErrRunInProgress) {
		respondError(w, http.StatusConflict, "A harvest is already running", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "Failed to start harvest", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"run": run.View(),
	})
}

// HandleHarvestStatus handles GET /api/v1/harvest/status
func (h *HarvestHandler) HandleHarvestStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Status(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status", err)
		return
	}

	respondJSON(w, http.StatusOK, buildStatusPayload(summary))
}

// HandleSchedule handles GET /api/v1/harvest/schedule
func (h *HarvestHandler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	if h.schedule == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"enabled": false})
		return
	}
	status := h.schedule.GetStatus()
	status["enabled"] = true
	respondJSON(w, http.StatusOK, status)
}

func buildStatusPayload(summary *harvest.StatusSummary) map[string]interface{} {
	response := map[string]interface{}{
		"status":  "idle",
		"message": "No active run",
		"history": []harvest.RunView{},
	}

	if summary.Active != nil {
		response["status"] = summary.Active.Status
		if summary.Active.StatusMessage != "" {
			response["message"] = summary.Active.StatusMessage
		}
		response["active_run"] = summary.Active
	}
	if len(summary.History) > 0 {
		response["history"] = summary.History
	}
	return response
}
