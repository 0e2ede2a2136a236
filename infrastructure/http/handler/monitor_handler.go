package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/syncora/syncora/application/port/inbound"
	"github.com/syncora/syncora/domain"
	"github.com/syncora/syncora/infrastructure/http/response"
	"github.com/syncora/syncora/infrastructure/service/logger"
)

type MonitorHandler struct {
	monitor inbound.Monitor
	log     logger.Logger
}

func NewMonitorHandler(monitor inbound.Monitor, log logger.Logger) *MonitorHandler {
	return &MonitorHandler{monitor: monitor, log: log}
}

func (h *MonitorHandler) GetSyncStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.monitor.GetStatistics(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "sync statistics", stats)
}

func (h *MonitorHandler) GetPendingItems(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.BadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	items, err := h.monitor.GetPendingItems(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []*domain.SyncStatus{}
	}
	response.Success(w, http.StatusOK, "pending items", items)
}

func (h *MonitorHandler) GetEntityHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	entityType, err := domain.ParseEntityType(vars["entityType"])
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	history, herr := h.monitor.GetEntitySyncHistory(r.Context(), entityType, vars["entityId"])
	if herr != nil {
		h.writeError(w, r, herr)
		return
	}
	if history == nil {
		history = []*domain.SyncTransaction{}
	}
	response.Success(w, http.StatusOK, "entity sync history", history)
}

type ResyncRequest struct {
	EntityType   string `json:"entity_type"`
	SourceID     string `json:"source_id"`
	SourceSystem string `json:"source_system"`
	Priority     string `json:"priority"`
}

func (h *MonitorHandler) TriggerResync(w http.ResponseWriter, r *http.Request) {
	var req ResyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	entityType, err := domain.ParseEntityType(req.EntityType)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	sourceSystem, err := domain.ParseSystem(req.SourceSystem)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	if req.SourceID == "" {
		response.BadRequest(w, "source_id is required")
		return
	}
	priority := domain.Priority(req.Priority)
	if req.Priority == "" {
		priority = domain.PriorityHigh
	} else if !priority.IsValid() {
		response.BadRequest(w, "unknown priority "+req.Priority)
		return
	}

	if err := h.monitor.TriggerResync(r.Context(), entityType, req.SourceID, sourceSystem, priority); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, http.StatusAccepted, "resync queued", map[string]interface{}{
		"entity_type":   entityType,
		"source_id":     req.SourceID,
		"source_system": sourceSystem,
		"priority":      priority,
	})
}

func (h *MonitorHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *domain.ValidationError
	var missing *domain.MissingMappingError
	switch {
	case errors.As(err, &validation):
		response.BadRequest(w, err.Error())
	case errors.As(err, &missing):
		response.NotFound(w, err.Error())
	case domain.IsTransient(err):
		response.BadGateway(w, err.Error())
	default:
		h.log.Error(r.Context(), "Monitor request failed", err, map[string]interface{}{
			"path":   r.URL.Path,
			"method": r.Method,
		})
		response.InternalServerError(w, "internal server error")
	}
}
