package authz

import (
	"github.com/samber/lo"

	"github.com/medrex/portal-authz/internal/policy"
	"github.com/medrex/portal-authz/pkg/rbac"
)

// Engine evaluates route access for principals holding any number of roles.
// It keeps no state beyond the immutable policy store and is safe for
// concurrent use.
type Engine struct {
	store *policy.Store
}

var _ rbac.RouteAuthorizer = (*Engine)(nil)

// NewEngine creates an engine over store
func NewEngine(store *policy.Store) *Engine {
	return &Engine{store: store}
}

// Store returns the policy the engine evaluates
func (e *Engine) Store() *policy.Store {
	return e.store
}

// HasRoutePermission reports whether a principal holding roles may open route.
func (e *Engine) HasRoutePermission(roles []rbac.Role, route string) bool {
	return e.Decide(roles, route).Allowed
}

// Decide evaluates route access and records why it was granted or denied.
//
// With no roles only public routes are reachable. Holding the universal role
// grants everything. Otherwise the first held role with an exact or
// parameter-prefix match grants access; public status alone never grants
// access to an authenticated principal.
func (e *Engine) Decide(roles []rbac.Role, route string) rbac.AccessDecision {
	decision := rbac.AccessDecision{Route: route}

	if len(roles) == 0 {
		decision.Allowed = e.store.IsPublic(route)
		if decision.Allowed {
			decision.Reason = rbac.ReasonPublic
		} else {
			decision.Reason = rbac.ReasonAnonymousDenied
		}
		return decision
	}

	if lo.Contains(roles, e.store.Universal()) {
		decision.Allowed = true
		decision.Reason = rbac.ReasonUniversal
		decision.Role = e.store.Universal()
		return decision
	}

	for _, role := range roles {
		for _, pattern := range e.store.PermissionsFor(role) {
			if pattern.Matches(route) {
				decision.Allowed = true
				decision.Reason = rbac.ReasonRoleGrant
				decision.Role = role
				decision.Pattern = pattern.String()
				return decision
			}
		}
	}

	decision.Reason = rbac.ReasonInsufficientRole
	return decision
}

// LandingPageFor picks the default screen for a principal after sign-in.
func (e *Engine) LandingPageFor(roles []rbac.Role) rbac.RoutePattern {
	return e.ResolveLanding(roles).Page
}

// ResolveLanding walks the landing rules in priority order. The first rule
// naming any held role wins regardless of the order roles were supplied in.
// An empty role set lands on the unauthenticated entry point; a non-empty set
// matching no rule lands on the fallback page and is flagged as such.
func (e *Engine) ResolveLanding(roles []rbac.Role) rbac.LandingResolution {
	if len(roles) == 0 {
		return rbac.LandingResolution{
			Page:            e.store.UnauthenticatedLanding(),
			Rule:            -1,
			Unauthenticated: true,
		}
	}

	for i, rule := range e.store.LandingRules() {
		if matched, ok := lo.Find(rule.Roles, func(r rbac.Role) bool { return lo.Contains(roles, r) }); ok {
			return rbac.LandingResolution{
				Page:        rule.Page,
				Rule:        i,
				MatchedRole: matched,
			}
		}
	}

	return rbac.LandingResolution{
		Page:     e.store.FallbackLanding(),
		Rule:     -1,
		Fallback: true,
	}
}

// FilterNavigation returns the items visible to roles in their original order.
// Items are returned as-is; the input slice is not modified.
func (e *Engine) FilterNavigation(roles []rbac.Role, items []rbac.NavigationItem) []rbac.NavigationItem {
	if lo.Contains(roles, e.store.Universal()) {
		return append([]rbac.NavigationItem(nil), items...)
	}

	return lo.Filter(items, func(item rbac.NavigationItem, _ int) bool {
		return lo.Some(item.AllowedRoles, roles)
	})
}
