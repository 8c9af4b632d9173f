package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/medrex/portal-authz/internal/verifier"
	"github.com/medrex/portal-authz/pkg/rbac"
)

type authorizeResponse struct {
	Route   string      `json:"route"`
	Roles   []rbac.Role `json:"roles"`
	Allowed bool        `json:"allowed"`
	Reason  string      `json:"reason"`
	Role    rbac.Role   `json:"role,omitempty"`
	Pattern string      `json:"pattern,omitempty"`
}

type landingResponse struct {
	Roles []rbac.Role `json:"roles"`
	rbac.LandingResolution
}

type navigationResponse struct {
	Roles []rbac.Role           `json:"roles"`
	Items []rbac.NavigationItem `json:"items"`
}

type issuesResponse struct {
	Version          string           `json:"version"`
	Passed           bool             `json:"passed"`
	Summary          verifier.Summary `json:"summary"`
	Issues           []verifier.Issue `json:"issues"`
	NavigationIssues []verifier.Issue `json:"navigation_issues"`
}

type errorResponse struct {
	Error *rbac.RBACError `json:"error"`
}

// handleAuthorize answers whether the caller may open ?route=. With
// ?enforce=true a denial is returned as 401 or 403 instead of a 200 verdict.
func (s *Service) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	route := query.Get("route")
	if route == "" {
		s.writeErrorResponse(w, http.StatusBadRequest,
			rbac.ErrInvalidRequest.WithSuggestions("pass the route to check as ?route=/path"))
		return
	}

	enforce := false
	if raw := query.Get("enforce"); raw != "" {
		var err error
		if enforce, err = strconv.ParseBool(raw); err != nil {
			s.writeErrorResponse(w, http.StatusBadRequest,
				rbac.ErrInvalidRequest.WithContext(route, nil).WithSuggestions("enforce must be true or false"))
			return
		}
	}

	roles, ok := s.resolveRoles(w, r)
	if !ok {
		return
	}

	decision := s.decide(r.Context(), roles, route)
	if enforce && !decision.Allowed {
		s.writeDenial(w, route, roles)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, authorizeResponse{
		Route:   decision.Route,
		Roles:   nonNilRoles(roles),
		Allowed: decision.Allowed,
		Reason:  decision.Reason,
		Role:    decision.Role,
		Pattern: decision.Pattern,
	})
}

// handleLanding returns the screen the caller should see after sign-in
func (s *Service) handleLanding(w http.ResponseWriter, r *http.Request) {
	roles, ok := s.resolveRoles(w, r)
	if !ok {
		return
	}

	ctx, span := s.startSpan(r.Context(), "landing", "")
	res := s.engine.ResolveLanding(roles)
	span.SetAttributes(
		attribute.String("authz.landing", res.Page.String()),
		attribute.Bool("authz.fallback", res.Fallback),
	)
	span.End()

	s.metrics.RecordLanding(res.Fallback)
	if res.Fallback {
		s.logger.LandingFallback(ctx, roles, res.Page.String())
	}

	s.writeJSONResponse(w, http.StatusOK, landingResponse{
		Roles:             nonNilRoles(roles),
		LandingResolution: res,
	})
}

// handleNavigation returns the navigation entries visible to the caller
func (s *Service) handleNavigation(w http.ResponseWriter, r *http.Request) {
	roles, ok := s.resolveRoles(w, r)
	if !ok {
		return
	}

	items := s.engine.FilterNavigation(roles, s.engine.Store().Navigation())
	if items == nil {
		items = []rbac.NavigationItem{}
	}

	s.writeJSONResponse(w, http.StatusOK, navigationResponse{
		Roles: nonNilRoles(roles),
		Items: items,
	})
}

func (s *Service) handlePolicyReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.status.report))
}

func (s *Service) handlePolicyIssues(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, issuesResponse{
		Version:          s.status.version,
		Passed:           s.status.passed,
		Summary:          s.status.summary,
		Issues:           nonNilIssues(s.status.issues),
		NavigationIssues: nonNilIssues(s.status.navIssues),
	})
}

func (s *Service) handlePolicyMatrix(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := s.status.matrix.Render(w); err != nil {
			s.logger.WithContext(r.Context()).WithError(err).Error("Failed to render access matrix")
		}
		return
	}
	s.writeJSONResponse(w, http.StatusOK, s.status.matrix)
}

func (s *Service) resolveRoles(w http.ResponseWriter, r *http.Request) ([]rbac.Role, bool) {
	roles, err := s.principals.Roles(r)
	if err != nil {
		rbacErr, ok := rbac.GetRBACError(err)
		if !ok {
			rbacErr = rbac.NewRBACErrorWithCause(rbac.ErrorTypeInvalidRequest, rbac.ErrorCodeInvalidRequest,
				"Unable to determine principal roles", err)
		}
		s.writeErrorResponse(w, http.StatusBadRequest, rbacErr)
		return nil, false
	}
	return roles, true
}

func (s *Service) startSpan(ctx context.Context, operation, route string) (context.Context, trace.Span) {
	if s.tracing == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return s.tracing.StartDecisionSpan(ctx, operation, route)
}

func (s *Service) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithComponent("gateway").WithError(err).Error("Failed to encode response")
	}
}

func (s *Service) writeErrorResponse(w http.ResponseWriter, statusCode int, err *rbac.RBACError) {
	s.writeJSONResponse(w, statusCode, errorResponse{Error: err})
}

func nonNilRoles(roles []rbac.Role) []rbac.Role {
	if roles == nil {
		return []rbac.Role{}
	}
	return roles
}

func nonNilIssues(issues []verifier.Issue) []verifier.Issue {
	if issues == nil {
		return []verifier.Issue{}
	}
	return issues
}
