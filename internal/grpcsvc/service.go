package grpcsvc

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"umproxy/internal/meta"
)

// StatsSource is any subsystem that reports a stats map: the backend
// pool, the admission manager, the security checker.
type StatsSource interface {
	GetStats() map[string]interface{}
}

// ProxyModuleService implements the ModuleService interface for umproxy
type ProxyModuleService struct {
	store     *meta.Store
	sources   map[string]StatsSource
	sessions  func() int64
	onReload  func()
	logger    *logrus.Logger
	startTime time.Time
}

// NewModuleService creates a new umproxy module service. sources maps a
// subsystem name ("backends", "admission", "security") to its stats
// surface; sessions reports the live session count; onReload, if set, is
// invoked on a Reload RPC.
func NewModuleService(store *meta.Store, sources map[string]StatsSource, sessions func() int64,
	onReload func(), logger *logrus.Logger) *ProxyModuleService {

	return &ProxyModuleService{
		store:     store,
		sources:   sources,
		sessions:  sessions,
		onReload:  onReload,
		logger:    logger,
		startTime: time.Now(),
	}
}

// GetStatus returns the current status of the proxy module
func (s *ProxyModuleService) GetStatus(ctx context.Context) (map[string]interface{}, error) {
	snap := s.store.Load()
	status := map[string]interface{}{
		"module_type": "redis-cluster-proxy",
		"status":      "healthy",
		"uptime":      time.Since(s.startTime).Seconds(),
		"timestamp":   time.Now().Unix(),
		"epoch":       snap.GlobalEpoch,
		"tenants":     len(snap.Tenants),
	}
	if s.sessions != nil {
		status["sessions"] = s.sessions()
	}

	s.logger.Debug("GetStatus called")
	return status, nil
}

// Reload notifies the proxy of a manager-driven reload. Meta is pushed
// over UMCTL rather than reloaded from disk, so there is nothing to
// re-read here beyond the optional hook.
func (s *ProxyModuleService) Reload(ctx context.Context, graceful bool) error {
	s.logger.WithField("graceful", graceful).Info("Reload requested")

	if s.onReload != nil {
		s.onReload()
	}
	return nil
}

// Shutdown logs a shutdown request; it does not stop the proxy itself.
func (s *ProxyModuleService) Shutdown(ctx context.Context, graceful bool) error {
	s.logger.WithField("graceful", graceful).Info("Shutdown requested")

	// The process-level signal handler owns the actual teardown; this
	// RPC just records the request.
	return nil
}

// GetMetrics returns current metrics for the proxy module
func (s *ProxyModuleService) GetMetrics(ctx context.Context) (map[string]interface{}, error) {
	metrics := map[string]interface{}{
		"module_type": "redis-cluster-proxy",
		"uptime":      time.Since(s.startTime).Seconds(),
		"timestamp":   time.Now().Unix(),
	}
	if s.sessions != nil {
		metrics["sessions"] = s.sessions()
	}
	for name, src := range s.sources {
		metrics[name] = src.GetStats()
	}

	s.logger.Debug("GetMetrics called")
	return metrics, nil
}

// HealthCheck performs a health check on the proxy module
func (s *ProxyModuleService) HealthCheck(ctx context.Context) (string, error) {
	s.logger.Debug("HealthCheck called")
	return "healthy", nil
}

// GetStats returns detailed statistics for the proxy module
func (s *ProxyModuleService) GetStats(ctx context.Context) (map[string]interface{}, error) {
	snap := s.store.Load()
	stats := map[string]interface{}{
		"module_type": "redis-cluster-proxy",
		"uptime":      time.Since(s.startTime).Seconds(),
		"start_time":  s.startTime.Unix(),
		"timestamp":   time.Now().Unix(),
		"epoch":       snap.GlobalEpoch,
	}

	tenants := make(map[string]interface{}, len(snap.Tenants))
	for name, t := range snap.Tenants {
		tenants[name] = map[string]interface{}{
			"epoch":       t.Epoch,
			"local_nodes": len(t.LocalNodes),
			"peer_nodes":  len(t.PeerNodes),
		}
	}
	stats["tenants"] = tenants

	if s.sessions != nil {
		stats["sessions"] = s.sessions()
	}
	for name, src := range s.sources {
		stats[name] = src.GetStats()
	}

	s.logger.Debug("GetStats called")
	return stats, nil
}
