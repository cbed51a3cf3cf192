// Package grpcsvc exposes the out-of-band ModuleService RPC surface:
// status, metrics, health, and lifecycle hooks for the fleet manager.
// This plane is independent of both the RESP data plane and the UMCTL
// control plane.
package grpcsvc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

// ModuleService is the contract served over moduleServiceDesc: map-shaped
// status/metrics/stats documents plus lifecycle hooks.
type ModuleService interface {
	GetStatus(ctx context.Context) (map[string]interface{}, error)
	Reload(ctx context.Context, graceful bool) error
	Shutdown(ctx context.Context, graceful bool) error
	GetMetrics(ctx context.Context) (map[string]interface{}, error)
	HealthCheck(ctx context.Context) (string, error)
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

const gracefulStopTimeout = 10 * time.Second

// Server binds one TCP address and serves the ModuleService, the gRPC
// health protocol, and server reflection.
type Server struct {
	addr    string
	service ModuleService
	logger  *logrus.Logger

	mu     sync.Mutex
	ln     net.Listener
	gs     *grpc.Server
	health *health.Server
}

// NewServer constructs a Server for service; nothing is bound until
// Start.
func NewServer(address string, port int, service ModuleService, logger *logrus.Logger) *Server {
	return &Server{
		addr:    fmt.Sprintf("%s:%d", address, port),
		service: service,
		logger:  logger,
	}
}

// Start binds the configured address and blocks serving RPCs until Stop.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.gs != nil {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	gs := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 10 * time.Minute,
			Time:              30 * time.Second,
			Timeout:           5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             10 * time.Second,
			PermitWithoutStream: true,
		}),
	)

	gs.RegisterService(&moduleServiceDesc, s.service)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(moduleServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	reflection.Register(gs)

	s.ln = ln
	s.gs = gs
	s.health = hs
	s.mu.Unlock()

	s.logger.WithField("addr", ln.Addr().String()).Info("gRPC module service listening")

	if err := gs.Serve(ln); err != nil {
		return fmt.Errorf("gRPC server error: %w", err)
	}
	return nil
}

// Stop drains in-flight RPCs, forcing the server down if draining takes
// longer than gracefulStopTimeout. Safe to call when never started.
func (s *Server) Stop() error {
	s.mu.Lock()
	gs, hs := s.gs, s.health
	s.gs, s.health, s.ln = nil, nil, nil
	s.mu.Unlock()

	if gs == nil {
		return nil
	}

	if hs != nil {
		// Flip every registered service to NOT_SERVING so health
		// watchers drain traffic before the hard stop.
		hs.Shutdown()
	}

	drained := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(drained)
	}()

	select {
	case <-drained:
		s.logger.Info("gRPC module service stopped")
	case <-time.After(gracefulStopTimeout):
		s.logger.Warn("graceful stop timed out, forcing gRPC server down")
		gs.Stop()
	}
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}
