package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/auth-session-service/internal/infra/config"
)

func TestAuthMetricsRecordsObservations(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewAuthMetrics(registry, "")
	if err != nil {
		t.Fatalf("failed to create auth metrics: %v", err)
	}

	metrics.ObserveLogin("password", "success")
	metrics.ObserveLogin("password", "success")
	metrics.ObserveLogin("oauth", "bad_state")
	metrics.ObserveRefresh("success")
	metrics.ObserveRevocations("logout", 2)
	metrics.ObserveRevocations("logout", 0)
	metrics.ObserveAdmission("auth", true)
	metrics.ObserveAdmission("auth", false)
	metrics.ObserveAdmission("", false)

	if got := testutil.ToFloat64(metrics.Logins.WithLabelValues("password", "success")); got != 2 {
		t.Fatalf("expected 2 password logins, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.Logins.WithLabelValues("oauth", "bad_state")); got != 1 {
		t.Fatalf("expected 1 oauth failure, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.Refreshes.WithLabelValues("success")); got != 1 {
		t.Fatalf("expected 1 refresh, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.Revocations.WithLabelValues("logout")); got != 2 {
		t.Fatalf("expected 2 revocations, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.Admissions.WithLabelValues("auth", "false")); got != 1 {
		t.Fatalf("expected 1 rejection, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.Admissions.WithLabelValues("unscoped", "false")); got != 1 {
		t.Fatalf("expected unscoped rejection, got %f", got)
	}
}

func TestAuthMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewAuthMetrics(registry, "auth")
	if err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	second, err := NewAuthMetrics(registry, "auth")
	if err != nil {
		t.Fatalf("second registration failed: %v", err)
	}

	second.ObserveRefresh("success")
	if got := testutil.ToFloat64(first.Refreshes.WithLabelValues("success")); got != 1 {
		t.Fatalf("expected shared collector, got %f", got)
	}
}

func TestAuthMetricsNilIsSafe(t *testing.T) {
	var metrics *AuthMetrics
	metrics.ObserveLogin("password", "success")
	metrics.ObserveRefresh("success")
	metrics.ObserveRevocations("logout", 1)
	metrics.ObserveAdmission("auth", true)
}

func TestTracerProviderWithoutEndpoint(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), config.TelemetrySettings{
		ServiceName:  "auth-session-service",
		SamplingRate: 1,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("failed to create tracer provider: %v", err)
	}

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	if !span.SpanContext().IsValid() {
		t.Fatalf("expected a sampled span context")
	}
	span.End()

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}
