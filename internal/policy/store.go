package policy

import (
	"fmt"
	"sort"

	"github.com/medrex/portal-authz/pkg/rbac"
)

// LandingRule is a parsed landing table row
type LandingRule struct {
	Roles []rbac.Role
	Page  rbac.RoutePattern
}

// Store holds the immutable route policy: role permissions, public routes,
// landing rules and the navigation catalog. All accessors return copies, so a
// Store may be shared across goroutines without locking.
type Store struct {
	version     string
	roles       []rbac.Role
	declared    map[rbac.Role][]rbac.RoutePattern
	permissions map[rbac.Role][]rbac.RoutePattern
	public      map[string]struct{}
	publicList  []rbac.RoutePattern
	landing     []LandingRule
	universal   rbac.Role
	unauth      rbac.RoutePattern
	fallback    rbac.RoutePattern
	navigation  []rbac.NavigationItem
}

// NewStore validates the document shape and parses every route pattern once.
// Malformed patterns, duplicates and missing role entries do not fail
// construction; they are left for the verifier to report.
func NewStore(doc Document) (*Store, error) {
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("failed to build policy store: %w", err)
	}

	s := &Store{
		version:     doc.Version,
		roles:       append([]rbac.Role(nil), doc.Roles...),
		declared:    make(map[rbac.Role][]rbac.RoutePattern, len(doc.Permissions)),
		permissions: make(map[rbac.Role][]rbac.RoutePattern, len(doc.Permissions)),
		public:      make(map[string]struct{}, len(doc.PublicRoutes)),
		universal:   doc.UniversalRole,
		unauth:      rbac.ParseRoutePattern(doc.UnauthenticatedLanding),
		fallback:    rbac.ParseRoutePattern(doc.FallbackLanding),
		navigation:  cloneNavigation(doc.Navigation),
	}

	for role, routes := range doc.Permissions {
		declared := rbac.ParseRoutePatterns(routes)
		s.declared[role] = declared
		s.permissions[role] = dedupe(declared)
	}

	for _, route := range doc.PublicRoutes {
		if _, seen := s.public[route]; seen {
			continue
		}
		s.public[route] = struct{}{}
		s.publicList = append(s.publicList, rbac.ParseRoutePattern(route))
	}

	for _, entry := range doc.Landing {
		s.landing = append(s.landing, LandingRule{
			Roles: append([]rbac.Role(nil), entry.Roles...),
			Page:  rbac.ParseRoutePattern(entry.Page),
		})
	}

	return s, nil
}

func dedupe(patterns []rbac.RoutePattern) []rbac.RoutePattern {
	seen := make(map[string]struct{}, len(patterns))
	out := make([]rbac.RoutePattern, 0, len(patterns))
	for _, p := range patterns {
		if _, ok := seen[p.String()]; ok {
			continue
		}
		seen[p.String()] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Version returns the policy document version
func (s *Store) Version() string { return s.version }

// Roles returns the role enumeration in canonical order
func (s *Store) Roles() []rbac.Role {
	return append([]rbac.Role(nil), s.roles...)
}

// Universal returns the role that bypasses every route check
func (s *Store) Universal() rbac.Role { return s.universal }

// PermissionsFor returns the role's route set in declared order without
// duplicates. Unknown roles yield an empty set; that is not an error.
func (s *Store) PermissionsFor(role rbac.Role) []rbac.RoutePattern {
	return append([]rbac.RoutePattern(nil), s.permissions[role]...)
}

// DeclaredPermissions returns the role's routes exactly as declared, duplicates included.
func (s *Store) DeclaredPermissions(role rbac.Role) []rbac.RoutePattern {
	return append([]rbac.RoutePattern(nil), s.declared[role]...)
}

// HasEntry reports whether role has a non-empty permission entry
func (s *Store) HasEntry(role rbac.Role) bool {
	return len(s.declared[role]) > 0
}

// IsPublic reports whether route is reachable without authentication. Public
// routes are matched exactly; parameters are not expanded.
func (s *Store) IsPublic(route string) bool {
	_, ok := s.public[route]
	return ok
}

// PublicRoutes returns the public route set in declared order
func (s *Store) PublicRoutes() []rbac.RoutePattern {
	return append([]rbac.RoutePattern(nil), s.publicList...)
}

// LandingPageFor returns the landing page of the first rule naming role.
func (s *Store) LandingPageFor(role rbac.Role) (rbac.RoutePattern, bool) {
	for _, rule := range s.landing {
		for _, r := range rule.Roles {
			if r == role {
				return rule.Page, true
			}
		}
	}
	return rbac.RoutePattern{}, false
}

// LandingRules returns the ordered landing rule table
func (s *Store) LandingRules() []LandingRule {
	out := make([]LandingRule, len(s.landing))
	for i, rule := range s.landing {
		out[i] = LandingRule{
			Roles: append([]rbac.Role(nil), rule.Roles...),
			Page:  rule.Page,
		}
	}
	return out
}

// UnauthenticatedLanding is the entry point for principals holding no roles
func (s *Store) UnauthenticatedLanding() rbac.RoutePattern { return s.unauth }

// FallbackLanding is used when no landing rule matches a non-empty role set
func (s *Store) FallbackLanding() rbac.RoutePattern { return s.fallback }

// Navigation returns a copy of the navigation catalog
func (s *Store) Navigation() []rbac.NavigationItem {
	return cloneNavigation(s.navigation)
}

// AllRoutes returns every route referenced by the public set and the permission
// table, deduplicated in first-seen order. Enumerated roles are visited in
// canonical order, then any extra declared roles sorted by name.
func (s *Store) AllRoutes() []rbac.RoutePattern {
	seen := make(map[string]struct{})
	var out []rbac.RoutePattern
	add := func(patterns []rbac.RoutePattern) {
		for _, p := range patterns {
			if _, ok := seen[p.String()]; ok {
				continue
			}
			seen[p.String()] = struct{}{}
			out = append(out, p)
		}
	}

	add(s.publicList)
	for _, role := range s.orderedDeclaredRoles() {
		add(s.declared[role])
	}
	return out
}

func (s *Store) orderedDeclaredRoles() []rbac.Role {
	ordered := make([]rbac.Role, 0, len(s.declared))
	enumerated := make(map[rbac.Role]struct{}, len(s.roles))
	for _, role := range s.roles {
		enumerated[role] = struct{}{}
		if _, ok := s.declared[role]; ok {
			ordered = append(ordered, role)
		}
	}

	var extra []rbac.Role
	for role := range s.declared {
		if _, ok := enumerated[role]; !ok {
			extra = append(extra, role)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(ordered, extra...)
}
