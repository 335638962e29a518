package routes

import (
	"net/http"

	"github.com/zatekoja/caremarket/backend/internal/api/handlers"
	"github.com/zatekoja/caremarket/backend/internal/api/middleware"
	"github.com/zatekoja/caremarket/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	importHandler *handlers.FacilityImportHandler
	metrics       *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(importHandler *handlers.FacilityImportHandler, metrics *observability.Metrics) *Router {
	return &Router{
		mux:           http.NewServeMux(),
		importHandler: importHandler,
		metrics:       metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Facility import admin endpoints
	r.mux.HandleFunc("POST /api/admin/facility-imports", r.importHandler.StartImport)
	r.mux.HandleFunc("GET /api/admin/facility-imports/current", r.importHandler.GetCurrentImport)
	r.mux.HandleFunc("GET /api/admin/facility-report", r.importHandler.GetReport)

	var handler http.Handler = r.mux
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.LoggingMiddleware(handler)

	return handler
}
