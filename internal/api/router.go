package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metricsHandler())

	r.Get("/autodiscover-x32", s.handleAutodiscover)
	r.Get("/enumerate-sources", s.handleEnumerateSources)
	r.Post("/set-channel-matrix", s.handleSetChannelMatrix)
	r.Get("/get-matrix", s.handleGetMatrix)
	r.Post("/set-port", s.handleSetPort)
	r.Get("/status", s.handleStatus)
	r.Get("/routing-history", s.handleRoutingHistory)

	r.Get("/ws", s.handleWebSocket)

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// metricsHandler exposes Prometheus metrics, from the injected gatherer
// when one was provided.
func (s *Server) metricsHandler() http.Handler {
	if s.gatherer != nil {
		return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}
