package verifier

import (
	"runtime"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/medrex/portal-authz/internal/authz"
	"github.com/medrex/portal-authz/internal/policy"
	"github.com/medrex/portal-authz/pkg/rbac"
)

// DefaultInvalidProbes are routes no policy should grant; they confirm that
// negative results are produced.
var DefaultInvalidProbes = []string{
	"/non-existent-route",
	"/invalid/route/path",
}

// ProbeResult is the outcome of one route probe for one role
type ProbeResult struct {
	Route    string `json:"route"`
	Expected bool   `json:"expected"`
	Actual   bool   `json:"actual"`
}

// Passed reports whether the engine agreed with the policy table
func (p ProbeResult) Passed() bool {
	return p.Expected == p.Actual
}

// SuiteResult collects the probe outcomes for a single role
type SuiteResult struct {
	Role     rbac.Role     `json:"role"`
	Results  []ProbeResult `json:"results"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Failures []ProbeResult `json:"failures,omitempty"`
}

// Total returns the number of probes run
func (s SuiteResult) Total() int {
	return len(s.Results)
}

// SuccessRate returns the share of passing probes as a percentage
func (s SuiteResult) SuccessRate() float64 {
	if len(s.Results) == 0 {
		return 0
	}
	return float64(s.Passed) / float64(len(s.Results)) * 100
}

// Verifier cross-checks an authorization engine against the policy it was
// built from. It is a batch validation pass meant for CI and diagnostics.
type Verifier struct {
	store  *policy.Store
	engine *authz.Engine
	probes []string
}

// Option configures a Verifier
type Option func(*Verifier)

// WithInvalidProbes replaces the deliberately invalid probe routes
func WithInvalidProbes(routes ...string) Option {
	return func(v *Verifier) {
		v.probes = buildCatalog(v.store, routes)
	}
}

// New creates a verifier for engine and the store it evaluates.
func New(store *policy.Store, engine *authz.Engine, opts ...Option) *Verifier {
	v := &Verifier{
		store:  store,
		engine: engine,
	}
	v.probes = buildCatalog(store, DefaultInvalidProbes)

	for _, opt := range opts {
		opt(v)
	}
	return v
}

// NewForStore builds the engine for store and returns a verifier over both.
func NewForStore(store *policy.Store, opts ...Option) *Verifier {
	return New(store, authz.NewEngine(store), opts...)
}

func buildCatalog(store *policy.Store, invalid []string) []string {
	routes := lo.Map(store.AllRoutes(), func(p rbac.RoutePattern, _ int) string {
		return p.String()
	})
	return lo.Uniq(append(routes, invalid...))
}

// ProbeCatalog returns the routes probed for every role
func (v *Verifier) ProbeCatalog() []string {
	return append([]string(nil), v.probes...)
}

// ProbeRole checks the engine's answer for role on every catalog route.
//
// The expected answer is computed from the raw table rather than the engine: a
// route is expected to be reachable when it is listed for the role, is public,
// or the role is the universal role.
func (v *Verifier) ProbeRole(role rbac.Role) SuiteResult {
	listed := make(map[string]struct{})
	for _, p := range v.store.PermissionsFor(role) {
		listed[p.String()] = struct{}{}
	}
	universal := role == v.store.Universal()

	suite := SuiteResult{
		Role:    role,
		Results: make([]ProbeResult, 0, len(v.probes)),
	}
	for _, route := range v.probes {
		_, isListed := listed[route]
		result := ProbeResult{
			Route:    route,
			Expected: universal || isListed || v.store.IsPublic(route),
			Actual:   v.engine.HasRoutePermission([]rbac.Role{role}, route),
		}

		suite.Results = append(suite.Results, result)
		if result.Passed() {
			suite.Passed++
		} else {
			suite.Failed++
			suite.Failures = append(suite.Failures, result)
		}
	}
	return suite
}

// ProbeAllRoles probes every enumerated role. Results are returned in
// enumeration order.
func (v *Verifier) ProbeAllRoles() []SuiteResult {
	roles := v.store.Roles()
	results := make([]SuiteResult, len(roles))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, role := range roles {
		i, role := i, role
		g.Go(func() error {
			results[i] = v.ProbeRole(role)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Passed reports whether every probe passed and no structural or navigation
// issue was found.
func (v *Verifier) Passed() bool {
	for _, suite := range v.ProbeAllRoles() {
		if suite.Failed > 0 {
			return false
		}
	}
	return len(v.CheckStructuralConsistency()) == 0 &&
		len(v.CheckNavigation(v.Navigation())) == 0
}

// PolicyVersion returns the version of the policy under verification
func (v *Verifier) PolicyVersion() string {
	return v.store.Version()
}

// Navigation returns the navigation catalog of the policy under verification
func (v *Verifier) Navigation() []rbac.NavigationItem {
	return v.store.Navigation()
}
