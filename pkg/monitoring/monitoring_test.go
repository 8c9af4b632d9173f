package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrex/portal-authz/pkg/logger"
)

func TestMetricsCollector_Decisions(t *testing.T) {
	m := NewMetricsCollector("authz-test")

	m.RecordDecision(true, "role_grant")
	m.RecordDecision(true, "role_grant")
	m.RecordDecision(false, "insufficient_role")
	m.RecordLanding(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisionsTotal.WithLabelValues("true", "role_grant")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisionsTotal.WithLabelValues("false", "insufficient_role")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.landingTotal.WithLabelValues("true")))
}

func TestMetricsCollector_PolicyIssues(t *testing.T) {
	m := NewMetricsCollector("authz-test")

	kinds := []string{"missing_permissions", "duplicate_route"}
	m.SetPolicyIssues(kinds, map[string]int{"duplicate_route": 2})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.policyIssues.WithLabelValues("missing_permissions")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.policyIssues.WithLabelValues("duplicate_route")))

	m.SetPolicyIssues(kinds, nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.policyIssues.WithLabelValues("duplicate_route")))
}

func TestMetricsCollector_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetricsCollector("a")
		NewMetricsCollector("b")
	})
}

func TestMetricsCollector_Handler(t *testing.T) {
	m := NewMetricsCollector("authz-test")
	m.RecordDecision(false, "anonymous_denied")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `authz_decisions_total{allowed="false",reason="anonymous_denied",service="authz-test"} 1`)
}

func TestHealthManager(t *testing.T) {
	hm := NewHealthManager("authz-test", "1.0.0")
	hm.RegisterChecker("policy", CheckFunc(func(ctx context.Context) HealthCheck {
		return HealthCheck{Status: HealthStatusHealthy}
	}))
	hm.RegisterChecker("engine", CheckFunc(func(ctx context.Context) HealthCheck {
		return HealthCheck{Status: HealthStatusDegraded, Message: "slow"}
	}))

	report := hm.CheckHealth(context.Background())
	assert.Equal(t, HealthStatusDegraded, report.Status)
	require.Len(t, report.Checks, 2)
	assert.Equal(t, "engine", report.Checks[0].Name)
	assert.Equal(t, "policy", report.Checks[1].Name)
	assert.Nil(t, report.Policy)
}

func TestHealthManager_Policy(t *testing.T) {
	testCases := []struct {
		name     string
		policy   PolicyHealth
		expected HealthStatus
	}{
		{"verified policy", PolicyHealth{Version: "v1", Passed: true, Probes: 10, SuccessRate: 100}, HealthStatusHealthy},
		{"failing policy", PolicyHealth{Version: "v1", Probes: 10, FailedProbes: 2, SuccessRate: 80,
			Issues: map[string]int{"missing_permissions": 1, "duplicate_route": 0}}, HealthStatusDegraded},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			hm := NewHealthManager("authz-test", "1.0.0")
			hm.SetPolicy(tc.policy)

			report := hm.CheckHealth(context.Background())
			assert.Equal(t, tc.expected, report.Status)
			require.NotNil(t, report.Policy)
			assert.Equal(t, tc.policy.Passed, report.Policy.Passed)
			assert.NotContains(t, report.Policy.Issues, "duplicate_route")
			assert.Empty(t, report.Checks)
		})
	}

	t.Run("unhealthy check outranks degraded policy", func(t *testing.T) {
		hm := NewHealthManager("authz-test", "1.0.0")
		hm.SetPolicy(PolicyHealth{Passed: false})
		hm.RegisterChecker("upstream", CheckFunc(func(ctx context.Context) HealthCheck {
			return HealthCheck{Status: HealthStatusUnhealthy}
		}))
		assert.Equal(t, HealthStatusUnhealthy, hm.CheckHealth(context.Background()).Status)
	})
}

func TestHealthManager_HTTPHandler(t *testing.T) {
	hm := NewHealthManager("authz-test", "1.0.0")
	hm.SetTimeout(time.Second)
	hm.RegisterChecker("policy", CheckFunc(func(ctx context.Context) HealthCheck {
		return HealthCheck{Status: HealthStatusUnhealthy, Message: "no policy"}
	}))

	rec := httptest.NewRecorder()
	hm.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var report HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, HealthStatusUnhealthy, report.Status)
	assert.Equal(t, "authz-test", report.Service)
}

func TestNewTracingManager_UnsupportedExporter(t *testing.T) {
	_, err := NewTracingManager(TracingConfig{ServiceName: "authz-test", Exporter: "zipkin"})
	assert.Error(t, err)
}

func TestMonitoringMiddleware(t *testing.T) {
	tracing, err := NewTracingManager(TracingConfig{
		ServiceName:  "authz-test",
		SamplingRate: 1,
		Exporter:     "stdout",
		Output:       io.Discard,
	})
	require.NoError(t, err)
	defer tracing.Shutdown(context.Background())

	var logs bytes.Buffer
	metrics := NewMetricsCollector("authz-test")
	mm := NewMonitoringMiddleware(metrics, tracing, logger.NewWithOutput("info", &logs), nil)

	var seenRequestID, seenTraceID string
	handler := mm.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenRequestID = logger.RequestIDFromContext(r.Context())
		seenTraceID = TraceIDFromContext(r.Context())
		w.WriteHeader(http.StatusForbidden)
	}))

	t.Run("generates request id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/authorize", nil))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.NotEmpty(t, seenRequestID)
		assert.Equal(t, seenRequestID, rec.Header().Get(RequestIDHeader))
		assert.NotEmpty(t, seenTraceID)
		assert.NotEmpty(t, rec.Header().Get("traceparent"))
	})

	t.Run("keeps caller request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/authorize", nil)
		req.Header.Set(RequestIDHeader, "caller-id")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "caller-id", seenRequestID)
		assert.Equal(t, "caller-id", rec.Header().Get(RequestIDHeader))
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/v1/authorize", "403")))
	assert.Equal(t, 2, strings.Count(logs.String(), "HTTP request completed with error"))
}
