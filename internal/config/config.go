// Package config loads the proxy configuration from a file and the
// environment via viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full umproxy configuration.
type Config struct {
	// Client-facing listener
	ListenAddr  string `mapstructure:"listen_addr"`
	MaxSessions int64  `mapstructure:"max_sessions"`

	// Tenant defaults
	DefaultTenant string `mapstructure:"default_tenant"`
	AdminTenant   string `mapstructure:"admin_tenant"`

	// Per-session limits
	PipelineCap    int `mapstructure:"pipeline_cap"`
	MaxUnreadBytes int `mapstructure:"max_unread_bytes"`

	// Backend connections
	MaxOutstandingPerBackend int           `mapstructure:"max_outstanding_per_backend"`
	BackendConnectTimeout    time.Duration `mapstructure:"backend_connect_timeout"`
	BackendBackoffMin        time.Duration `mapstructure:"backend_backoff_min"`
	BackendBackoffMax        time.Duration `mapstructure:"backend_backoff_max"`

	// Admission rate limiting
	EnableRateLimiting bool    `mapstructure:"enable_rate_limiting"`
	DefaultTenantRate  float64 `mapstructure:"default_tenant_rate"`
	DefaultTenantBurst int     `mapstructure:"default_tenant_burst"`

	// Ops surfaces
	GRPCAddr    string `mapstructure:"grpc_addr"`
	GRPCPort    int    `mapstructure:"grpc_port"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	viper.SetDefault("listen_addr", ":5299")
	viper.SetDefault("max_sessions", 10000)

	viper.SetDefault("default_tenant", "admin")
	viper.SetDefault("admin_tenant", "admin")

	viper.SetDefault("pipeline_cap", 1024)
	viper.SetDefault("max_unread_bytes", 1<<20)

	viper.SetDefault("max_outstanding_per_backend", 1000)
	viper.SetDefault("backend_connect_timeout", 2*time.Second)
	viper.SetDefault("backend_backoff_min", 50*time.Millisecond)
	viper.SetDefault("backend_backoff_max", 2*time.Second)

	viper.SetDefault("enable_rate_limiting", false)
	viper.SetDefault("default_tenant_rate", 10000.0)
	viper.SetDefault("default_tenant_burst", 20000)

	viper.SetDefault("grpc_addr", "0.0.0.0")
	viper.SetDefault("grpc_port", 50053)
	viper.SetDefault("metrics_addr", ":7003")

	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables take precedence
	viper.AutomaticEnv()
	viper.SetEnvPrefix("UMPROXY")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}

	if c.AdminTenant == "" {
		return fmt.Errorf("admin_tenant is required")
	}

	if c.DefaultTenant == "" {
		return fmt.Errorf("default_tenant is required")
	}

	if c.PipelineCap <= 0 {
		return fmt.Errorf("pipeline_cap must be > 0")
	}

	if c.MaxUnreadBytes <= 0 {
		return fmt.Errorf("max_unread_bytes must be > 0")
	}

	if c.MaxOutstandingPerBackend <= 0 {
		return fmt.Errorf("max_outstanding_per_backend must be > 0")
	}

	if c.BackendConnectTimeout <= 0 {
		return fmt.Errorf("backend_connect_timeout must be > 0")
	}

	if c.BackendBackoffMin <= 0 || c.BackendBackoffMax < c.BackendBackoffMin {
		return fmt.Errorf("backend backoff range is invalid: min %v, max %v", c.BackendBackoffMin, c.BackendBackoffMax)
	}

	if c.GRPCPort <= 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc_port: must be 1-65535")
	}

	if c.EnableRateLimiting {
		if c.DefaultTenantRate <= 0 {
			return fmt.Errorf("default_tenant_rate must be > 0")
		}
		if c.DefaultTenantBurst <= 0 {
			return fmt.Errorf("default_tenant_burst must be > 0")
		}
	}

	return nil
}
