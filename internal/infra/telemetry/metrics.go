package telemetry

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arklim/auth-session-service/internal/core/port"
)

// AuthMetrics exposes Prometheus counters for the session lifecycle and admission decisions.
type AuthMetrics struct {
	Logins      *prometheus.CounterVec
	Refreshes   *prometheus.CounterVec
	Revocations *prometheus.CounterVec
	Admissions  *prometheus.CounterVec
}

var _ port.AuthMetrics = (*AuthMetrics)(nil)

// NewAuthMetrics builds the domain collectors and registers them with reg
// (prometheus.DefaultRegisterer when nil). Collectors registered earlier are reused.
func NewAuthMetrics(reg prometheus.Registerer, namespace string) (*AuthMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "auth"
	}

	logins, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Login attempts partitioned by method and outcome.",
	}, "method", "outcome")
	if err != nil {
		return nil, err
	}

	refreshes, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refreshes_total",
		Help:      "Access token refreshes partitioned by outcome.",
	}, "outcome")
	if err != nil {
		return nil, err
	}

	revocations, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "revoked_tokens_total",
		Help:      "Token identifiers written to the revocation registry partitioned by reason.",
	}, "reason")
	if err != nil {
		return nil, err
	}

	admissions, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admission_decisions_total",
		Help:      "Rate limiter decisions partitioned by scope and result.",
	}, "scope", "allowed")
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{
		Logins:      logins,
		Refreshes:   refreshes,
		Revocations: revocations,
		Admissions:  admissions,
	}, nil
}

func (m *AuthMetrics) ObserveLogin(method, outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(method, outcome).Inc()
}

func (m *AuthMetrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(outcome).Inc()
}

func (m *AuthMetrics) ObserveRevocations(reason string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.Revocations.WithLabelValues(reason).Add(float64(count))
}

func (m *AuthMetrics) ObserveAdmission(scope string, allowed bool) {
	if m == nil {
		return
	}
	if scope == "" {
		scope = "unscoped"
	}
	m.Admissions.WithLabelValues(scope, strconv.FormatBool(allowed)).Inc()
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels ...string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("existing %s collector has unexpected type %T", opts.Name, already.ExistingCollector)
		}
		return nil, fmt.Errorf("register %s collector: %w", opts.Name, err)
	}
	return vec, nil
}
