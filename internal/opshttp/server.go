// Package opshttp serves the HTTP ops surface: /healthz, /metrics
// (Prometheus), and /status (JSON).
package opshttp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// StatusFunc builds the /status document on each request.
type StatusFunc func() map[string]interface{}

// Server is the ops HTTP endpoint.
type Server struct {
	logger *logrus.Logger
	srv    *http.Server
}

// New constructs a Server bound to addr. status may be nil, in which
// case /status serves an empty object.
func New(addr string, status StatusFunc, logger *logrus.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		doc := map[string]interface{}{}
		if status != nil {
			doc = status()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(doc); err != nil {
			logger.WithError(err).Warn("status encode failed")
		}
	})

	return &Server{
		logger: logger,
		srv:    &http.Server{Addr: addr, Handler: mux},
	}
}

// Handler exposes the mux, mostly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe blocks serving the ops surface until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithField("addr", s.srv.Addr).Info("Starting metrics/health server")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
