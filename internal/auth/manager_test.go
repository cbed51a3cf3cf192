package auth

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewManagerUnlimitedByDefault(t *testing.T) {
	logger := logrus.New()
	m := NewManager(DefaultLimits(), logger)

	for i := 0; i < 1000; i++ {
		if !m.Allow("tenantA") {
			t.Fatalf("Allow returned false for unlimited tenant on request %d", i)
		}
	}
}

func TestAllowEnforcesBurstThenDenies(t *testing.T) {
	logger := logrus.New()
	m := NewManager(Limits{RequestsPerSecond: 1, Burst: 2}, logger)

	if !m.Allow("tenantA") {
		t.Fatal("expected first request within burst to be allowed")
	}
	if !m.Allow("tenantA") {
		t.Fatal("expected second request within burst to be allowed")
	}
	if m.Allow("tenantA") {
		t.Fatal("expected third immediate request to exceed the burst and be denied")
	}
}

func TestAllowTracksTenantsIndependently(t *testing.T) {
	logger := logrus.New()
	m := NewManager(Limits{RequestsPerSecond: 1, Burst: 1}, logger)

	if !m.Allow("tenantA") {
		t.Fatal("expected tenantA's first request to be allowed")
	}
	if m.Allow("tenantA") {
		t.Fatal("expected tenantA's second immediate request to be denied")
	}
	if !m.Allow("tenantB") {
		t.Fatal("expected tenantB to have its own independent bucket")
	}
}

func TestSetTenantLimitOverridesDefault(t *testing.T) {
	logger := logrus.New()
	m := NewManager(DefaultLimits(), logger)
	m.SetTenantLimit("tenantA", Limits{RequestsPerSecond: 1, Burst: 1})

	if !m.Allow("tenantA") {
		t.Fatal("expected first request to be allowed")
	}
	if m.Allow("tenantA") {
		t.Fatal("expected override limit to deny the second immediate request")
	}
	if !m.Allow("tenantB") {
		t.Fatal("expected tenantB to remain unlimited")
	}
}

func TestGetStats(t *testing.T) {
	logger := logrus.New()
	m := NewManager(Limits{RequestsPerSecond: 5, Burst: 5}, logger)
	m.Allow("tenantA")
	m.Allow("tenantB")

	stats := m.GetStats()
	if stats["tenants_tracked"] != 2 {
		t.Errorf("tenants_tracked = %v, want 2", stats["tenants_tracked"])
	}
	if stats["tenants_limited"] != 2 {
		t.Errorf("tenants_limited = %v, want 2", stats["tenants_limited"])
	}
}
