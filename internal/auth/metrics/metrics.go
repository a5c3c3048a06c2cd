// Package metrics exposes Prometheus instrumentation for the login flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the flow counters. A nil *Metrics is valid and records
// nothing, so tests can pass nil without registering collectors.
type Metrics struct {
	loginsStarted   *prometheus.CounterVec
	loginsCompleted *prometheus.CounterVec
	loginFailures   *prometheus.CounterVec
	csrfRejections  *prometheus.CounterVec
	statesSwept     prometheus.Counter
	guardRedirects  *prometheus.CounterVec
}

// New creates and registers all flow metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		loginsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantgate_logins_started_total",
			Help: "Login attempts initiated, by tenant",
		}, []string{"tenant"}),
		loginsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantgate_logins_completed_total",
			Help: "Logins that established a session, by tenant",
		}, []string{"tenant"}),
		loginFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantgate_login_failures_total",
			Help: "Failed callback attempts, by tenant and failure step",
		}, []string{"tenant", "step"}),
		csrfRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantgate_csrf_rejections_total",
			Help: "Callbacks rejected on state mismatch, by tenant",
		}, []string{"tenant"}),
		statesSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tenantgate_auth_states_swept_total",
			Help: "Expired auth states reclaimed by the cleanup sweep",
		}),
		guardRedirects: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantgate_guard_redirects_total",
			Help: "Protected requests redirected to login, by tenant and reason",
		}, []string{"tenant", "reason"}),
	}
}

func (m *Metrics) IncLoginStarted(tenant string) {
	if m != nil {
		m.loginsStarted.WithLabelValues(tenant).Inc()
	}
}

func (m *Metrics) IncLoginCompleted(tenant string) {
	if m != nil {
		m.loginsCompleted.WithLabelValues(tenant).Inc()
	}
}

func (m *Metrics) IncLoginFailure(tenant, step string) {
	if m != nil {
		m.loginFailures.WithLabelValues(tenant, step).Inc()
	}
}

func (m *Metrics) IncCSRFRejection(tenant string) {
	if m != nil {
		m.csrfRejections.WithLabelValues(tenant).Inc()
	}
}

func (m *Metrics) AddStatesSwept(n int64) {
	if m != nil && n > 0 {
		m.statesSwept.Add(float64(n))
	}
}

func (m *Metrics) IncGuardRedirect(tenant, reason string) {
	if m != nil {
		m.guardRedirects.WithLabelValues(tenant, reason).Inc()
	}
}
