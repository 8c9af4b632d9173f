package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/medrex/portal-authz/pkg/rbac"
)

// forwardAuthPath is the forward-auth endpoint; it is registered on the /v1
// subrouter in setupRoutes.
const forwardAuthPath = "/v1/forward-auth"

// forwardedRouteHeaders name the requested path in forward-auth subrequests,
// in lookup order. Traefik sends X-Forwarded-Uri; nginx auth_request setups
// conventionally pass X-Original-URI.
var forwardedRouteHeaders = []string{"X-Forwarded-Uri", "X-Original-URI"}

// Headers returned to the proxy with a forward-auth answer
const (
	HeaderAuthzRole    = "X-Authz-Role"
	HeaderAuthzPattern = "X-Authz-Pattern"
	HeaderAuthzReason  = "X-Authz-Reason"
	HeaderAuthzLanding = "X-Authz-Landing"
)

type decisionKey struct{}

// DecisionFromContext returns the decision stored by the route guard
func DecisionFromContext(ctx context.Context) (rbac.AccessDecision, bool) {
	decision, ok := ctx.Value(decisionKey{}).(rbac.AccessDecision)
	return decision, ok
}

// decide evaluates route for roles and records the span, metric and log entry
func (s *Service) decide(ctx context.Context, roles []rbac.Role, route string) rbac.AccessDecision {
	ctx, span := s.startSpan(ctx, "decide", route)
	defer span.End()

	decision := s.engine.Decide(roles, route)
	span.SetAttributes(
		attribute.Bool("authz.allowed", decision.Allowed),
		attribute.String("authz.reason", decision.Reason),
	)

	s.metrics.RecordDecision(decision.Allowed, decision.Reason)
	s.logger.AccessDecision(ctx, roles, decision)
	return decision
}

// writeDenial answers a refused route: 401 when no roles are held so the
// client signs in, 403 otherwise. Both point at the caller's landing page.
func (s *Service) writeDenial(w http.ResponseWriter, route string, roles []rbac.Role) {
	landing := s.engine.LandingPageFor(roles).String()
	w.Header().Set(HeaderAuthzLanding, landing)

	if len(roles) == 0 {
		s.writeErrorResponse(w, http.StatusUnauthorized,
			rbac.ErrUnauthenticated.WithContext(route, roles).WithSuggestions("sign in at "+landing))
		return
	}
	s.writeErrorResponse(w, http.StatusForbidden,
		rbac.ErrInsufficientPrivileges.WithContext(route, roles).WithSuggestions("return to "+landing))
}

// routeGuardMiddleware authorizes the route named by the forwarding proxy and
// stops the request when the caller's roles do not grant it. Granted
// decisions are stored in the request context.
func (s *Service) routeGuardMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, err := forwardedRoute(r)
		if err != nil {
			s.logger.WithContext(r.Context()).WithError(err).Warn("Rejected forwarded route")
			s.writeErrorResponse(w, http.StatusBadRequest,
				rbac.ErrInvalidRequest.WithSuggestions("forward the normalized request path without dot segments"))
			return
		}
		if route == "" {
			s.writeErrorResponse(w, http.StatusBadRequest,
				rbac.ErrInvalidRequest.WithSuggestions("set "+forwardedRouteHeaders[0]+" to the requested path"))
			return
		}

		roles, ok := s.resolveRoles(w, r)
		if !ok {
			return
		}

		decision := s.decide(r.Context(), roles, route)
		if !decision.Allowed {
			s.writeDenial(w, route, roles)
			return
		}

		ctx := context.WithValue(r.Context(), decisionKey{}, decision)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// handleForwardAuth confirms a guarded route and passes the grant details
// back to the proxy as headers for the upstream screen service.
func (s *Service) handleForwardAuth(w http.ResponseWriter, r *http.Request) {
	decision, ok := DecisionFromContext(r.Context())
	if !ok {
		s.metrics.RecordSystemError("missing_decision", "gateway")
		s.writeErrorResponse(w, http.StatusInternalServerError, rbac.ErrSystemError)
		return
	}

	addDecisionHeaders(w.Header(), decision)
	w.WriteHeader(http.StatusOK)
}

func addDecisionHeaders(h http.Header, decision rbac.AccessDecision) {
	h.Set(HeaderAuthzReason, decision.Reason)
	if decision.Role != "" {
		h.Set(HeaderAuthzRole, string(decision.Role))
	}
	if decision.Pattern != "" {
		h.Set(HeaderAuthzPattern, decision.Pattern)
	}
}

// forwardedRoute returns the percent-decoded path of the proxied request
// without its query string or fragment. Paths with dot segments are refused
// because upstream servers resolve them to a different screen than the one
// that would be decided.
func forwardedRoute(r *http.Request) (string, error) {
	for _, header := range forwardedRouteHeaders {
		raw := r.Header.Get(header)
		if raw == "" {
			continue
		}
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			raw = raw[:i]
		}

		route, err := url.PathUnescape(raw)
		if err != nil {
			return "", fmt.Errorf("invalid escape in %s: %w", header, err)
		}
		segments := strings.FieldsFunc(route, func(c rune) bool { return c == '/' || c == '\\' })
		for _, seg := range segments {
			if seg == "." || seg == ".." {
				return "", fmt.Errorf("%s contains dot segments: %q", header, raw)
			}
		}
		return route, nil
	}
	return "", nil
}
