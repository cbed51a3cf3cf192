// Package auth implements per-tenant admission control: an AUTH'd tenant
// is allowed onto the proxy only while it stays under its configured
// request rate. Tenant identity is resolved entirely from the meta store,
// so admission needs no user database of its own — just an in-process
// limiter per tenant name.
package auth

import (
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Limits configures the token-bucket applied to every tenant that doesn't
// have a tenant-specific override.
type Limits struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultLimits imposes no admission limit: Allow always succeeds unless a
// tenant-specific override says otherwise.
func DefaultLimits() Limits {
	return Limits{RequestsPerSecond: 0, Burst: 0}
}

// Manager gates AUTH admission per tenant with a token-bucket rate
// limiter. Admission state is never shared across proxy instances — each
// proxy runs its own view, so an in-process limiter is enough and no
// cross-instance counter store is involved.
type Manager struct {
	logger   *logrus.Logger
	defLim   Limits
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	byTenant map[string]Limits
}

// NewManager constructs a Manager applying def to any tenant without a
// configured override.
func NewManager(def Limits, logger *logrus.Logger) *Manager {
	return &Manager{
		logger:   logger,
		defLim:   def,
		buckets:  make(map[string]*rate.Limiter),
		byTenant: make(map[string]Limits),
	}
}

// SetTenantLimit installs a tenant-specific override, replacing any
// previously configured limiter for it.
func (m *Manager) SetTenantLimit(tenant string, lim Limits) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byTenant[tenant] = lim
	delete(m.buckets, tenant)
}

// Allow reports whether tenant may admit one more request right now. A
// zero-valued limit (the default) means unlimited.
func (m *Manager) Allow(tenant string) bool {
	lim := m.limiterFor(tenant)
	if lim == nil {
		return true
	}
	allowed := lim.Allow()
	if !allowed {
		m.logger.WithFields(logrus.Fields{"tenant": tenant}).Warn("admission denied: rate limit exceeded")
	}
	return allowed
}

func (m *Manager) limiterFor(tenant string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.buckets[tenant]; ok {
		return l
	}

	lim := m.defLim
	if override, ok := m.byTenant[tenant]; ok {
		lim = override
	}
	if lim.RequestsPerSecond <= 0 {
		m.buckets[tenant] = nil
		return nil
	}

	burst := lim.Burst
	if burst <= 0 {
		burst = 1
	}
	l := rate.NewLimiter(rate.Limit(lim.RequestsPerSecond), burst)
	m.buckets[tenant] = l
	return l
}

// GetStats returns admission-control statistics for the ops/metrics
// surface.
func (m *Manager) GetStats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	limited := 0
	for _, l := range m.buckets {
		if l != nil {
			limited++
		}
	}
	return map[string]interface{}{
		"tenants_tracked": len(m.buckets),
		"tenants_limited": limited,
	}
}
