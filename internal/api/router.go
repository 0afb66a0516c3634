package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/pinforge-core/internal/auth"
	"github.com/nerrad567/pinforge-core/internal/infrastructure/metrics"
)

// healthCheckTimeout bounds the dependency probes of /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	// Prometheus scrape endpoint (no auth)
	if s.metrics != nil {
		r.Handle("/metrics", metrics.Handler(s.metrics))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket (token validated in handler)
		r.Get("/ws", s.handleWebSocket)

		r.Route("/catalog", func(r chi.Router) {
			r.Use(s.requirePermission(auth.PermCatalogRead))
			r.Get("/mcus", s.handleListMCUs)
			r.Get("/mcus/{id}", s.handleGetMCU)
			r.Get("/sensors", s.handleListSensors)
			r.Get("/constraints", s.handleListConstraints)
		})

		r.With(s.requirePermission(auth.PermAllocationRun)).Post("/allocate", s.handleAllocate)

		r.Route("/projects", func(r chi.Router) {
			r.With(s.requirePermission(auth.PermProjectRead)).Get("/", s.handleListProjects)
			r.With(s.requirePermission(auth.PermProjectWrite)).Post("/", s.handleCreateProject)

			r.Route("/{id}", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermProjectRead))
					r.Get("/", s.handleGetProject)
					r.Get("/runs", s.handleListRuns)
					r.Get("/export/{file}", s.handleExport)
				})
				r.Group(func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermProjectWrite))
					r.Put("/", s.handleUpdateProject)
					r.Delete("/", s.handleDeleteProject)
				})
				r.With(s.requirePermission(auth.PermAllocationRun)).Post("/allocate", s.handleAllocateProject)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requirePermission(auth.PermSystemAdmin))
			r.Get("/system/metrics", s.handleSystemMetrics)
			r.Get("/audit", s.handleListAuditLogs)
		})
	})

	return r
}

// handleHealth returns the server health status. A failing database
// turns the response into a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	checks := map[string]string{}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			checks["database"] = "unavailable"
			status, code = "unhealthy", http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}
	if s.mqtt != nil {
		checks["mqtt"] = connectionState(s.mqtt)
	}
	if s.influx != nil {
		checks["influxdb"] = connectionState(s.influx)
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}

func connectionState(c ConnectionStatus) string {
	if c.IsConnected() {
		return "connected"
	}
	return "disconnected"
}
