// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shinkainet/node/internal/logger"
	"github.com/shinkainet/node/internal/metrics"
)

// Server represents the health check HTTP server
type Server struct {
	checker *HealthChecker
	logger  logger.Logger
	port    int
	server  *http.Server
}

// NewServer creates a new health check server around a pre-populated
// checker. Callers register store/transport/queue checks on checker
// before passing it in.
func NewServer(checker *HealthChecker, log logger.Logger, port int) *Server {
	return &Server{
		checker: checker,
		logger:  log,
		port:    port,
	}
}

// Start starts the health check server
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/live", s.handleLiveness)
	mux.HandleFunc("/health/ready", s.handleReadiness)
	mux.Handle("/metrics", metrics.Handler())

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("Starting health check server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Health check server error: " + err.Error())
		}
	}()

	return nil
}

// Stop stops the health check server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleHealth handles the main health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.checker.GetSystemHealth(r.Context())

	switch status.Status {
	case StatusUnhealthy:
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		w.WriteHeader(http.StatusOK)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

// handleLiveness handles the liveness probe endpoint: the process is
// alive as long as it can answer HTTP at all.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// handleReadiness handles the readiness probe endpoint: the node is
// ready once its registered store/transport/queue checks all pass.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status := s.checker.GetSystemHealth(r.Context())
	ready := status.Status != StatusUnhealthy

	response := map[string]interface{}{
		"ready":     ready,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    status.Checks,
	}

	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// StartHealthServer wires a checker with the node's store, transport,
// and queue probes and starts serving it on port.
func StartHealthServer(port int, storePing StorePingFunc, transportPing TransportPingFunc, queueDepth QueueDepthFunc, maxQueueDepth int) (*Server, error) {
	checker := NewHealthChecker(5 * time.Second)
	checker.RegisterCheck("store", StoreHealthCheck(storePing))
	checker.RegisterCheck("transport", TransportHealthCheck(transportPing))
	checker.RegisterCheck("workqueue", QueueHealthCheck(queueDepth, maxQueueDepth))
	checker.RegisterCheck("system", ResourceHealthCheck())

	log := logger.GetDefaultLogger()

	server := NewServer(checker, log, port)
	if err := server.Start(); err != nil {
		return nil, err
	}

	return server, nil
}
