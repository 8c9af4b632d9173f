package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrex/portal-authz/pkg/rbac"
)

func forwardAuth(t *testing.T, s *Service, header, uri, roles string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/v1/forward-auth", nil)
	if uri != "" {
		req.Header.Set(header, uri)
	}
	if roles != "" {
		req.Header.Set(DefaultRolesHeader, roles)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestForwardAuth(t *testing.T) {
	s := createTestService(t, nil)

	t.Run("granted route returns decision headers", func(t *testing.T) {
		rec := forwardAuth(t, s, "X-Forwarded-Uri", "/lab-requests/42?tab=results", "lab_technician")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, rbac.ReasonRoleGrant, rec.Header().Get(HeaderAuthzReason))
		assert.Equal(t, "lab_technician", rec.Header().Get(HeaderAuthzRole))
		assert.Equal(t, "/lab-requests/:id", rec.Header().Get(HeaderAuthzPattern))
		assert.Empty(t, rec.Body.String())
	})

	t.Run("nginx header is accepted", func(t *testing.T) {
		rec := forwardAuth(t, s, "X-Original-URI", "/reset-password", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, rbac.ReasonPublic, rec.Header().Get(HeaderAuthzReason))
		assert.Empty(t, rec.Header().Get(HeaderAuthzRole))
	})

	t.Run("insufficient role is forbidden", func(t *testing.T) {
		rec := forwardAuth(t, s, "X-Forwarded-Uri", "/dispensing", "nurse")
		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "/provider-dashboard", rec.Header().Get(HeaderAuthzLanding))

		var resp errorResponse
		decode(t, rec, &resp)
		assert.Equal(t, rbac.ErrorCodeInsufficientPrivileges, resp.Error.Code)
		assert.Equal(t, "/dispensing", resp.Error.Route)
	})

	t.Run("anonymous caller is unauthorized", func(t *testing.T) {
		rec := forwardAuth(t, s, "X-Forwarded-Uri", "/billing", "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "/auth", rec.Header().Get(HeaderAuthzLanding))
	})

	t.Run("dot segments are rejected", func(t *testing.T) {
		for _, uri := range []string{
			"/patients/../admin-dashboard",
			"/patients/%2e%2e/admin-dashboard",
			"/patients/%2E%2E%2Fadmin-dashboard",
			"/patients/./42",
			"/patients/..\\admin-dashboard",
		} {
			rec := forwardAuth(t, s, "X-Forwarded-Uri", uri, "doctor")
			assert.Equal(t, http.StatusBadRequest, rec.Code, uri)
			assert.Empty(t, rec.Header().Get(HeaderAuthzPattern), uri)
		}

		rec := forwardAuth(t, s, "X-Forwarded-Uri", "/admin-dashboard", "doctor")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("escaped path is decided decoded", func(t *testing.T) {
		rec := forwardAuth(t, s, "X-Forwarded-Uri", "/patients/jane%20doe", "doctor")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "/patients/:id", rec.Header().Get(HeaderAuthzPattern))
	})

	t.Run("missing forwarded route", func(t *testing.T) {
		rec := forwardAuth(t, s, "X-Forwarded-Uri", "", "patient")
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp errorResponse
		decode(t, rec, &resp)
		assert.Equal(t, rbac.ErrorCodeInvalidRequest, resp.Error.Code)
	})
}

func TestForwardAuthIgnoresCORSPreflight(t *testing.T) {
	s := createTestService(t, nil)

	for _, origin := range []string{"", "https://portal.example.org"} {
		req := httptest.NewRequest(http.MethodOptions, forwardAuthPath, nil)
		req.Header.Set("X-Forwarded-Uri", "/admin-dashboard")
		if origin != "" {
			req.Header.Set("Origin", origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		}
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, "origin %q", origin)
		assert.Equal(t, "/auth", rec.Header().Get(HeaderAuthzLanding))
	}
}

func TestRouteGuardStoresDecision(t *testing.T) {
	s := createTestService(t, nil)

	var stored rbac.AccessDecision
	var found bool
	guarded := s.routeGuardMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stored, found = DecisionFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Uri", "/super-admin")
	req.Header.Set(DefaultRolesHeader, "super_admin")
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, found)
	assert.Equal(t, "/super-admin", stored.Route)
	assert.Equal(t, rbac.ReasonUniversal, stored.Reason)
}

func TestForwardAuthWithoutGuard(t *testing.T) {
	s := createTestService(t, nil)

	rec := httptest.NewRecorder()
	s.handleForwardAuth(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background()))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestForwardedRoute(t *testing.T) {
	testCases := []struct {
		name     string
		headers  map[string]string
		expected string
		wantErr  bool
	}{
		{"none", nil, "", false},
		{"traefik", map[string]string{"X-Forwarded-Uri": "/symptoms"}, "/symptoms", false},
		{"query stripped", map[string]string{"X-Forwarded-Uri": "/symptoms?day=1"}, "/symptoms", false},
		{"fragment stripped", map[string]string{"X-Original-URI": "/faq#billing"}, "/faq", false},
		{"traefik wins", map[string]string{"X-Forwarded-Uri": "/a", "X-Original-URI": "/b"}, "/a", false},
		{"percent decoded", map[string]string{"X-Forwarded-Uri": "/patients/jane%20doe"}, "/patients/jane doe", false},
		{"dots inside a segment", map[string]string{"X-Forwarded-Uri": "/imaging/scan..v2"}, "/imaging/scan..v2", false},
		{"parent segment", map[string]string{"X-Forwarded-Uri": "/patients/../admin-dashboard"}, "", true},
		{"encoded parent segment", map[string]string{"X-Forwarded-Uri": "/patients/%2e%2e/admin-dashboard"}, "", true},
		{"encoded slash and parent", map[string]string{"X-Forwarded-Uri": "/patients/..%2Fadmin-dashboard"}, "", true},
		{"current segment", map[string]string{"X-Original-URI": "/./admin-dashboard"}, "", true},
		{"trailing parent", map[string]string{"X-Forwarded-Uri": "/patients/.."}, "", true},
		{"backslash parent", map[string]string{"X-Forwarded-Uri": `/patients/..\admin-dashboard`}, "", true},
		{"bad escape", map[string]string{"X-Forwarded-Uri": "/patients/%zz"}, "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}

			route, err := forwardedRoute(req)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, route)
		})
	}
}
