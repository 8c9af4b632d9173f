package rbac

// RouteAuthorizer decides route access, landing pages and navigation visibility
// for a principal holding zero or more roles.
type RouteAuthorizer interface {
	HasRoutePermission(roles []Role, route string) bool
	Decide(roles []Role, route string) AccessDecision
	LandingPageFor(roles []Role) RoutePattern
	ResolveLanding(roles []Role) LandingResolution
	FilterNavigation(roles []Role, items []NavigationItem) []NavigationItem
}
