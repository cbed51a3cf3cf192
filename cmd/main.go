package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"umproxy/internal/auth"
	"umproxy/internal/backend"
	"umproxy/internal/config"
	"umproxy/internal/control"
	"umproxy/internal/grpcsvc"
	"umproxy/internal/listener"
	"umproxy/internal/meta"
	"umproxy/internal/opshttp"
	"umproxy/internal/security"
	"umproxy/internal/session"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version   = "1.0.0"
	buildTime = "development"
	gitCommit = "unknown"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	var configPath string

	rootCmd := &cobra.Command{
		Use:   "umproxy",
		Short: "umproxy multi-tenant Redis Cluster proxy",
		Long: `umproxy - a server-side Redis Cluster proxy with:
- Multi-tenant slot routing over shared backends
- RESP pipelining with strict reply ordering
- MOVED/ASK cluster redirection
- UMCTL control plane for meta updates
- gRPC-based module communication`,
		Version: fmt.Sprintf("%s (built: %s, commit: %s)", version, buildTime, gitCommit),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProxy(configPath, logger)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		logger.WithError(err).Fatal("Failed to start umproxy")
	}
}

func runProxy(configPath string, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"version":    version,
		"build_time": buildTime,
		"commit":     gitCommit,
	}).Info("Starting umproxy")

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Shared proxy state
	store := meta.NewStore()

	backends := backend.NewPool(backend.Config{
		ConnectTimeout: cfg.BackendConnectTimeout,
		BackoffMin:     cfg.BackendBackoffMin,
		BackoffMax:     cfg.BackendBackoffMax,
		MaxOutstanding: cfg.MaxOutstandingPerBackend,
	}, logger)
	logger.Info("Backend pool initialized")

	limits := auth.DefaultLimits()
	if cfg.EnableRateLimiting {
		limits = auth.Limits{RequestsPerSecond: cfg.DefaultTenantRate, Burst: cfg.DefaultTenantBurst}
	}
	admission := auth.NewManager(limits, logger)

	checker := security.NewChecker(logger)
	logger.Info("Security checker initialized")

	controller := control.NewController(store, cfg.AdminTenant)

	// Client-facing listener
	lst := listener.New(listener.Config{
		Addr:        cfg.ListenAddr,
		MaxSessions: cfg.MaxSessions,
		Session: session.Config{
			PipelineCap:    cfg.PipelineCap,
			MaxUnreadBytes: cfg.MaxUnreadBytes,
			DefaultTenant:  cfg.DefaultTenant,
			AdminTenant:    cfg.AdminTenant,
		},
	}, store, backends, controller, admission, checker, logger)

	if err := lst.Listen(); err != nil {
		return fmt.Errorf("failed to bind listener: %w", err)
	}

	go func() {
		if err := lst.Serve(); err != nil {
			logger.WithError(err).Error("Listener error")
		}
	}()

	logger.WithField("addr", cfg.ListenAddr).Info("Client listener started")

	// Initialize gRPC server with ModuleService
	sources := map[string]grpcsvc.StatsSource{
		"backends":  backends,
		"admission": admission,
		"security":  checker,
	}
	moduleService := grpcsvc.NewModuleService(store, sources, lst.ActiveSessions, nil, logger)
	grpcServer := grpcsvc.NewServer(cfg.GRPCAddr, cfg.GRPCPort, moduleService, logger)

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.WithError(err).Error("gRPC server error")
		}
	}()

	logger.WithFields(logrus.Fields{
		"address": cfg.GRPCAddr,
		"port":    cfg.GRPCPort,
	}).Info("gRPC ModuleService server started")

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start metrics/health server
	opsServer := opshttp.New(cfg.MetricsAddr, func() map[string]interface{} {
		snap := store.Load()
		return map[string]interface{}{
			"version":  version,
			"sessions": lst.ActiveSessions(),
			"epoch":    snap.GlobalEpoch,
			"tenants":  len(snap.Tenants),
			"backends": backends.GetStats(),
		}
	}, logger)

	go func() {
		if err := opsServer.ListenAndServe(); err != nil {
			logger.WithError(err).Error("Metrics server error")
		}
	}()

	logger.Info("umproxy started successfully")

	// Wait for shutdown signal
	<-sigChan
	logger.Info("Shutting down...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := lst.Close(); err != nil {
		logger.WithError(err).Error("Listener shutdown error")
	}

	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Metrics server shutdown error")
	}

	if grpcServer != nil {
		if err := grpcServer.Stop(); err != nil {
			logger.WithError(err).Error("gRPC server shutdown error")
		}
	}

	backends.CloseAll()

	logger.Info("Shutdown complete")
	return nil
}
