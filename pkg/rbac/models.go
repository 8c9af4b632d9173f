package rbac

import (
	"strings"
)

// PatternKind classifies a parsed route pattern
type PatternKind int

const (
	PatternLiteral PatternKind = iota
	PatternParameterized
	PatternMalformed
)

func (k PatternKind) String() string {
	switch k {
	case PatternLiteral:
		return "literal"
	case PatternParameterized:
		return "parameterized"
	default:
		return "malformed"
	}
}

// RoutePattern is a parsed route path. Literal patterns match one path exactly;
// parameterized patterns (containing a ":param" segment) also match every path
// below their literal prefix. Malformed patterns never match.
type RoutePattern struct {
	raw    string
	kind   PatternKind
	prefix string
	defect string
}

// ParseRoutePattern classifies raw once so matching never re-parses it.
func ParseRoutePattern(raw string) RoutePattern {
	p := RoutePattern{raw: raw, kind: PatternLiteral}

	switch {
	case raw == "":
		return p.malformed("empty route pattern")
	case !strings.HasPrefix(raw, "/"):
		return p.malformed("route pattern must start with '/'")
	}

	idx := strings.Index(raw, "/:")
	if idx < 0 {
		return p
	}
	if idx == 0 {
		return p.malformed("parameter segment has no literal prefix")
	}

	name := raw[idx+2:]
	if end := strings.IndexByte(name, '/'); end >= 0 {
		name = name[:end]
	}
	if name == "" {
		return p.malformed("parameter segment has no name")
	}

	p.kind = PatternParameterized
	p.prefix = raw[:idx]
	return p
}

// ParseRoutePatterns parses every entry of raws, preserving order.
func ParseRoutePatterns(raws []string) []RoutePattern {
	out := make([]RoutePattern, 0, len(raws))
	for _, raw := range raws {
		out = append(out, ParseRoutePattern(raw))
	}
	return out
}

func (p RoutePattern) malformed(reason string) RoutePattern {
	p.kind = PatternMalformed
	p.defect = reason
	return p
}

func (p RoutePattern) String() string { return p.raw }

// Kind returns the pattern classification
func (p RoutePattern) Kind() PatternKind { return p.kind }

// IsParameterized reports whether the pattern contains a ":param" segment
func (p RoutePattern) IsParameterized() bool { return p.kind == PatternParameterized }

// IsMalformed reports whether the pattern is a configuration defect
func (p RoutePattern) IsMalformed() bool { return p.kind == PatternMalformed }

// Prefix returns the literal prefix before the parameter segment. Empty for
// literal and malformed patterns.
func (p RoutePattern) Prefix() string { return p.prefix }

// Defect describes why the pattern is malformed, or "" when it is well formed.
func (p RoutePattern) Defect() string { return p.defect }

// Matches reports whether route is reachable through this pattern.
func (p RoutePattern) Matches(route string) bool {
	switch p.kind {
	case PatternMalformed:
		return false
	case PatternParameterized:
		if route == p.raw {
			return true
		}
		return strings.HasPrefix(route, p.prefix+"/")
	default:
		return route == p.raw
	}
}

// Equivalent reports whether p and other match exactly the same routes.
// Parameterized patterns sharing a literal prefix are equivalent even when they
// differ after the parameter boundary.
func (p RoutePattern) Equivalent(other RoutePattern) bool {
	if p.kind != other.kind {
		return false
	}
	switch p.kind {
	case PatternParameterized:
		return p.prefix == other.prefix
	case PatternLiteral:
		return p.raw == other.raw
	default:
		return false
	}
}

// MarshalText renders the pattern as its raw path
func (p RoutePattern) MarshalText() ([]byte, error) {
	return []byte(p.raw), nil
}

// UnmarshalText parses a raw path into the pattern
func (p *RoutePattern) UnmarshalText(text []byte) error {
	*p = ParseRoutePattern(string(text))
	return nil
}

// NavigationItem is a presentation-agnostic menu entry. The engine filters
// navigation items but never mutates them.
type NavigationItem struct {
	Path         string `json:"path" yaml:"path" validate:"required,startswith=/"`
	Label        string `json:"label" yaml:"label" validate:"required"`
	Icon         string `json:"icon" yaml:"icon"`
	AllowedRoles []Role `json:"allowed_roles" yaml:"allowed_roles"`
}

// AccessDecision represents the outcome of a route authorization check
type AccessDecision struct {
	Route   string `json:"route"`
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
	Role    Role   `json:"role,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

// LandingResolution describes how a landing page was chosen
type LandingResolution struct {
	Page            RoutePattern `json:"page"`
	Rule            int          `json:"rule"`
	MatchedRole     Role         `json:"matched_role,omitempty"`
	Fallback        bool         `json:"fallback"`
	Unauthenticated bool         `json:"unauthenticated"`
}
