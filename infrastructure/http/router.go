// Package http assembles the monitor's HTTP surface.
package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/syncora/syncora/infrastructure/http/handler"
	"github.com/syncora/syncora/infrastructure/http/middleware"
	"github.com/syncora/syncora/infrastructure/http/response"
	"github.com/syncora/syncora/infrastructure/service/logger"
)

// NewRouter wires the monitor routes. Reads are open; the resync trigger is
// behind bearer auth when enabled.
func NewRouter(monitor *handler.MonitorHandler, auth *middleware.AuthMiddleware, log logger.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.CorrelationIDMiddleware)
	r.Use(middleware.RecoveryMiddleware(log))

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		response.Success(w, http.StatusOK, "ok", nil)
	}).Methods(http.MethodGet)

	r.HandleFunc("/sync-stats", monitor.GetSyncStats).Methods(http.MethodGet)
	r.HandleFunc("/pending-items", monitor.GetPendingItems).Methods(http.MethodGet)
	r.HandleFunc("/entity-history/{entityType}/{entityId}", monitor.GetEntityHistory).Methods(http.MethodGet)
	r.HandleFunc("/resync", auth.RequireAuth(monitor.TriggerResync)).Methods(http.MethodPost)

	return r
}
