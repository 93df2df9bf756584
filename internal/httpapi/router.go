// Package httpapi exposes the gateway's external HTTP interface, per
// spec.md §6: ingest, admin force-flush, liveness, and readiness.
package httpapi

import (
	"net/http"
	"time"

	"ssw-logs-capture/pkg/runtime"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server is the gateway's public HTTP surface.
type Server struct {
	router *mux.Router
	rt     *runtime.Runtime
	logger *logrus.Logger
}

// NewServer builds the router and wires every endpoint to the given
// Runtime.
func NewServer(rt *runtime.Runtime, logger *logrus.Logger) *Server {
	s := &Server{router: mux.NewRouter(), rt: rt, logger: logger}
	s.registerRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// registerRoutes configures HTTP routes and applies the access-log
// middleware to every endpoint, matching the wrap-everything-once
// pattern used across the rest of the gateway.
func (s *Server) registerRoutes() {
	wrapped := func(h http.HandlerFunc) http.Handler {
		return s.accessLogMiddleware(http.HandlerFunc(h))
	}

	s.router.Handle("/v1/logs:ingest", wrapped(s.ingestHandler)).Methods(http.MethodPost)
	s.router.Handle("/v1/admin/flush", wrapped(s.adminFlushHandler)).Methods(http.MethodPost)
	s.router.Handle("/healthz", wrapped(s.livenessHandler)).Methods(http.MethodGet)
	s.router.Handle("/readyz", wrapped(s.readinessHandler)).Methods(http.MethodGet)
}

// accessLogMiddleware logs every request's outcome at debug level.
// Per-tenant ingest metrics are recorded by the handlers themselves,
// which know the tenant and outcome; this middleware only captures
// status and latency for operational logs.
func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.WithFields(logrus.Fields{
			"path":     r.URL.Path,
			"method":   r.Method,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Debug("httpapi: request handled")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
