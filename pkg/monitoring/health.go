package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

var statusSeverity = map[HealthStatus]int{
	HealthStatusHealthy:   0,
	HealthStatusDegraded:  1,
	HealthStatusUnhealthy: 2,
}

func worse(a, b HealthStatus) HealthStatus {
	if statusSeverity[b] > statusSeverity[a] {
		return b
	}
	return a
}

// PolicyHealth is the verification state of the route policy being served.
// A policy that failed verification degrades the service without taking it
// out of rotation.
type PolicyHealth struct {
	Version      string         `json:"version"`
	Passed       bool           `json:"passed"`
	Probes       int            `json:"probes"`
	FailedProbes int            `json:"failed_probes"`
	SuccessRate  float64        `json:"success_rate"`
	Issues       map[string]int `json:"issues,omitempty"`
}

// Status maps the verification outcome onto a health status
func (p PolicyHealth) Status() HealthStatus {
	if p.Passed {
		return HealthStatusHealthy
	}
	return HealthStatusDegraded
}

// HealthCheck is the outcome of one named check
type HealthCheck struct {
	Name     string                 `json:"name"`
	Status   HealthStatus           `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Duration time.Duration          `json:"duration"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// HealthReport is served by the health endpoint
type HealthReport struct {
	Status    HealthStatus  `json:"status"`
	Service   string        `json:"service"`
	Version   string        `json:"version"`
	Timestamp time.Time     `json:"timestamp"`
	Policy    *PolicyHealth `json:"policy,omitempty"`
	Checks    []HealthCheck `json:"checks"`
}

// Checker runs one health check
type Checker interface {
	Check(ctx context.Context) HealthCheck
}

// CheckFunc adapts a function to Checker
type CheckFunc func(ctx context.Context) HealthCheck

// Check calls f
func (f CheckFunc) Check(ctx context.Context) HealthCheck {
	return f(ctx)
}

// HealthManager combines the policy verification state with registered checks
type HealthManager struct {
	service  string
	version  string
	timeout  time.Duration
	mu       sync.RWMutex
	policy   *PolicyHealth
	checkers map[string]Checker
}

// NewHealthManager creates a health manager with a 5s per-check timeout
func NewHealthManager(service, version string) *HealthManager {
	return &HealthManager{
		service:  service,
		version:  version,
		timeout:  5 * time.Second,
		checkers: make(map[string]Checker),
	}
}

// RegisterChecker adds or replaces the check called name
func (hm *HealthManager) RegisterChecker(name string, checker Checker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

// SetTimeout bounds each check
func (hm *HealthManager) SetTimeout(timeout time.Duration) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.timeout = timeout
}

// SetPolicy records the verification state of the served policy
func (hm *HealthManager) SetPolicy(p PolicyHealth) {
	issues := make(map[string]int, len(p.Issues))
	for kind, n := range p.Issues {
		if n > 0 {
			issues[kind] = n
		}
	}
	p.Issues = issues

	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.policy = &p
}

// CheckHealth runs the registered checks concurrently, sorted by name, and
// reports the worst status among them and the policy state.
func (hm *HealthManager) CheckHealth(ctx context.Context) *HealthReport {
	hm.mu.RLock()
	names := make([]string, 0, len(hm.checkers))
	for name := range hm.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	checkers := make([]Checker, len(names))
	for i, name := range names {
		checkers[i] = hm.checkers[name]
	}
	var policy *PolicyHealth
	if hm.policy != nil {
		p := *hm.policy
		policy = &p
	}
	timeout := hm.timeout
	hm.mu.RUnlock()

	report := &HealthReport{
		Status:    HealthStatusHealthy,
		Service:   hm.service,
		Version:   hm.version,
		Timestamp: time.Now(),
		Policy:    policy,
		Checks:    make([]HealthCheck, len(names)),
	}

	var g errgroup.Group
	for i := range checkers {
		i := i
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			check := checkers[i].Check(checkCtx)
			check.Name = names[i]
			check.Duration = time.Since(start)
			report.Checks[i] = check
			return nil
		})
	}
	_ = g.Wait()

	if policy != nil {
		report.Status = worse(report.Status, policy.Status())
	}
	for _, check := range report.Checks {
		report.Status = worse(report.Status, check.Status)
	}
	return report
}

// HTTPHandler serves the health report. Only an unhealthy service answers 503.
func (hm *HealthManager) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := hm.CheckHealth(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if report.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(report)
	}
}
