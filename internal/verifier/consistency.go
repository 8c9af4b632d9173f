package verifier

import (
	"fmt"

	"github.com/medrex/portal-authz/pkg/rbac"
)

// IssueKind classifies a structural finding
type IssueKind string

const (
	IssueMissingPermissions    IssueKind = "missing_permissions"
	IssueUnreachableLanding    IssueKind = "unreachable_landing"
	IssueDuplicateRoute        IssueKind = "duplicate_route"
	IssueMalformedPattern      IssueKind = "malformed_pattern"
	IssueNavigationUnreachable IssueKind = "navigation_unreachable"
)

// Issue is a policy defect. Issues are findings, not errors: they fail a
// build step, never a live request.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Role    rbac.Role `json:"role,omitempty"`
	Route   string    `json:"route,omitempty"`
	Message string    `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s", i.Kind, i.Message)
}

// CheckStructuralConsistency scans the policy for missing role entries,
// landing pages their role cannot reach, duplicate patterns and malformed
// patterns. Findings are grouped by check, roles in enumeration order.
func (v *Verifier) CheckStructuralConsistency() []Issue {
	var issues []Issue
	issues = append(issues, v.checkMissingEntries()...)
	issues = append(issues, v.checkLandingReachability()...)
	issues = append(issues, v.checkDuplicates()...)
	issues = append(issues, v.checkMalformed()...)
	return issues
}

func (v *Verifier) checkMissingEntries() []Issue {
	var issues []Issue
	for _, role := range v.store.Roles() {
		if !v.store.HasEntry(role) {
			issues = append(issues, Issue{
				Kind:    IssueMissingPermissions,
				Role:    role,
				Message: fmt.Sprintf("role %s has no permissions defined", role),
			})
		}
	}
	return issues
}

func (v *Verifier) checkLandingReachability() []Issue {
	var issues []Issue
	for _, role := range v.store.Roles() {
		roles := []rbac.Role{role}
		page := v.engine.LandingPageFor(roles)
		if !v.engine.HasRoutePermission(roles, page.String()) {
			issues = append(issues, Issue{
				Kind:    IssueUnreachableLanding,
				Role:    role,
				Route:   page.String(),
				Message: fmt.Sprintf("role %s cannot access its landing page %s", role, page),
			})
		}
	}
	return issues
}

func (v *Verifier) checkDuplicates() []Issue {
	var issues []Issue
	for _, role := range v.store.Roles() {
		counts := make(map[string]int)
		var order []string
		for _, p := range v.store.DeclaredPermissions(role) {
			if counts[p.String()] == 0 {
				order = append(order, p.String())
			}
			counts[p.String()]++
		}

		for _, route := range order {
			if n := counts[route]; n > 1 {
				issues = append(issues, Issue{
					Kind:    IssueDuplicateRoute,
					Role:    role,
					Route:   route,
					Message: fmt.Sprintf("role %s lists %s %d times", role, route, n),
				})
			}
		}
	}
	return issues
}

func (v *Verifier) checkMalformed() []Issue {
	var issues []Issue
	for _, p := range v.store.PublicRoutes() {
		if p.IsMalformed() {
			issues = append(issues, Issue{
				Kind:    IssueMalformedPattern,
				Route:   p.String(),
				Message: fmt.Sprintf("public route %q is malformed: %s", p, p.Defect()),
			})
		}
	}

	for _, role := range v.store.Roles() {
		seen := make(map[string]struct{})
		for _, p := range v.store.DeclaredPermissions(role) {
			if !p.IsMalformed() {
				continue
			}
			if _, ok := seen[p.String()]; ok {
				continue
			}
			seen[p.String()] = struct{}{}
			issues = append(issues, Issue{
				Kind:    IssueMalformedPattern,
				Role:    role,
				Route:   p.String(),
				Message: fmt.Sprintf("role %s has malformed pattern %q: %s", role, p, p.Defect()),
			})
		}
	}
	return issues
}

// CheckNavigation reports navigation items that one of their allowed roles
// cannot open.
func (v *Verifier) CheckNavigation(items []rbac.NavigationItem) []Issue {
	var issues []Issue
	for _, item := range items {
		for _, role := range item.AllowedRoles {
			if v.engine.HasRoutePermission([]rbac.Role{role}, item.Path) {
				continue
			}
			issues = append(issues, Issue{
				Kind:    IssueNavigationUnreachable,
				Role:    role,
				Route:   item.Path,
				Message: fmt.Sprintf("navigation item %q (%s) is not reachable by role %s", item.Label, item.Path, role),
			})
		}
	}
	return issues
}

// CountByKind tallies issues per kind
func CountByKind(issues []Issue) map[IssueKind]int {
	counts := make(map[IssueKind]int)
	for _, issue := range issues {
		counts[issue.Kind]++
	}
	return counts
}
