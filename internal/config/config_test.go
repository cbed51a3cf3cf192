package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr == "" {
		t.Error("ListenAddr default is empty")
	}
	if cfg.AdminTenant != "admin" {
		t.Errorf("AdminTenant = %q, want admin", cfg.AdminTenant)
	}
	if cfg.DefaultTenant != "admin" {
		t.Errorf("DefaultTenant = %q, want admin", cfg.DefaultTenant)
	}
	if cfg.PipelineCap <= 0 {
		t.Errorf("PipelineCap = %d, want > 0", cfg.PipelineCap)
	}
	if cfg.BackendBackoffMin > cfg.BackendBackoffMax {
		t.Errorf("backoff min %v exceeds max %v", cfg.BackendBackoffMin, cfg.BackendBackoffMax)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		ListenAddr:               ":5299",
		DefaultTenant:            "admin",
		AdminTenant:              "admin",
		PipelineCap:              64,
		MaxUnreadBytes:           4096,
		MaxOutstandingPerBackend: 16,
		BackendConnectTimeout:    time.Second,
		BackendBackoffMin:        50 * time.Millisecond,
		BackendBackoffMax:        2 * time.Second,
		GRPCPort:                 50053,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}

	cases := map[string]func(c *Config){
		"empty listen addr":   func(c *Config) { c.ListenAddr = "" },
		"empty admin tenant":  func(c *Config) { c.AdminTenant = "" },
		"zero pipeline cap":   func(c *Config) { c.PipelineCap = 0 },
		"zero outstanding":    func(c *Config) { c.MaxOutstandingPerBackend = 0 },
		"inverted backoff":    func(c *Config) { c.BackendBackoffMax = c.BackendBackoffMin / 2 },
		"bad grpc port":       func(c *Config) { c.GRPCPort = 70000 },
		"rate limit no rate":  func(c *Config) { c.EnableRateLimiting = true; c.DefaultTenantRate = 0 },
		"rate limit no burst": func(c *Config) { c.EnableRateLimiting = true; c.DefaultTenantRate = 1; c.DefaultTenantBurst = 0 },
	}
	for name, mutate := range cases {
		c := valid
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: Validate() = nil, want error", name)
		}
	}
}
