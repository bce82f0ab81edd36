// Package api provides the HTTP server exposing AMAS's six request/response
// endpoints plus /metrics and /health (spec §6.1-§6.7).
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vocabamas/amas/internal/amas/engine"
	"github.com/vocabamas/amas/internal/infra/observability"
)

// Server is the AMAS HTTP API server.
type Server struct {
	engine         *engine.Engine
	metricsEnabled bool
}

// NewServer creates a new API server wrapping the given engine.
func NewServer(e *engine.Engine) *Server {
	return &Server{engine: e}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with every AMAS route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)
	r.Use(metricsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/amas", func(r chi.Router) {
		r.Post("/process", s.handleProcess)
		r.Post("/reward", s.handleReward)
		r.Get("/explain-decision", s.handleExplainDecision)
		r.Get("/learning-curve", s.handleLearningCurve)
		r.Post("/counterfactual", s.handleCounterfactual)
	})

	r.Post("/visual-fatigue/metrics", s.handleVisualFatigue)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
		},
	})
}

// corsMiddleware adds permissive CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written so metricsMiddleware can
// label http_requests_total/http_requests_5xx_total after the handler runs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// metricsMiddleware records spec §6.7's HTTP counters and latency
// histogram for every request, labelled by the matched chi route pattern
// rather than the raw path so templated routes don't explode cardinality.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		status := statusClass(rec.status)
		observability.HTTPRequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		if rec.status >= 500 {
			observability.HTTPRequests5xxTotal.WithLabelValues(route).Inc()
		}
		observability.HTTPRequestDurationSeconds.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
