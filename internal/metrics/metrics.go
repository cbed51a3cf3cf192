// Package metrics exposes the proxy's Prometheus gauges and counters:
// sessions, backend connections, tenant epochs, and cluster redirects.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace is the Prometheus namespace every metric in this package is
// registered under. The metrics are registered at package initialization,
// so changing Namespace afterwards does not rename them.
var Namespace = "umproxy"

var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "active_sessions",
		Help:      "Current number of connected client sessions.",
	})

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "commands_total",
		Help:      "Total commands processed, by outcome.",
	}, []string{"outcome"})

	redirectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "redirects_total",
		Help:      "Total cluster redirects returned to clients, by kind.",
	}, []string{"kind"})

	backendErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "backend_errors_total",
		Help:      "Total backend errors, by endpoint.",
	}, []string{"endpoint"})

	backendOutstanding = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "backend_outstanding",
		Help:      "Current outstanding (in-flight) requests per backend endpoint.",
	}, []string{"endpoint"})

	tenantEpoch = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "tenant_epoch",
		Help:      "Current epoch installed for a tenant's meta view.",
	}, []string{"tenant"})

	dangerousDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "dangerous_commands_denied_total",
		Help:      "Total admin-only commands rejected for non-admin tenants.",
	}, []string{"command"})

	admissionDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "admission_denied_total",
		Help:      "Total AUTH attempts rejected for exceeding a tenant's admission rate.",
	}, []string{"tenant"})
)

// SetActiveSessions reports the current connected-session count.
func SetActiveSessions(n int64) { activeSessions.Set(float64(n)) }

// IncCommand records one processed command and its outcome: "ok" for a
// forwarded command answered by its backend, "error" for a routing error.
// Redirects are counted by IncRedirect instead.
func IncCommand(outcome string) { commandsTotal.WithLabelValues(outcome).Inc() }

// IncRedirect records one MOVED or ASK reply sent to a client.
func IncRedirect(kind string) { redirectsTotal.WithLabelValues(kind).Inc() }

// IncBackendError records one backend I/O or overload error for endpoint.
func IncBackendError(endpoint string) { backendErrorsTotal.WithLabelValues(endpoint).Inc() }

// SetBackendOutstanding reports endpoint's current outstanding-request
// depth.
func SetBackendOutstanding(endpoint string, n int) {
	backendOutstanding.WithLabelValues(endpoint).Set(float64(n))
}

// SetTenantEpoch reports tenant's currently installed epoch.
func SetTenantEpoch(tenant string, epoch int64) {
	tenantEpoch.WithLabelValues(tenant).Set(float64(epoch))
}

// IncDangerousDenied records one admin-only command rejected for a
// non-admin tenant.
func IncDangerousDenied(command string) { dangerousDeniedTotal.WithLabelValues(command).Inc() }

// IncAdmissionDenied records one AUTH rejected by the tenant's admission
// limiter.
func IncAdmissionDenied(tenant string) { admissionDeniedTotal.WithLabelValues(tenant).Inc() }
