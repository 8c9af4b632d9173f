package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrex/portal-authz/pkg/rbac"
)

func TestCORSPreflight(t *testing.T) {
	s := createTestService(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/v1/authorize", nil)
	req.Header.Set("Origin", "https://portal.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), DefaultRolesHeader)

	t.Run("bare OPTIONS is not a preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/v1/authorize", nil))
		assert.NotEqual(t, http.StatusNoContent, rec.Code)
	})
}

func TestSecurityHeaders(t *testing.T) {
	s := createTestService(t, nil)

	rec := get(t, s, "/v1/authorize?route=/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	expected := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	}
	for header, value := range expected {
		assert.Equal(t, value, rec.Header().Get(header), header)
	}
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRateLimitMiddleware(t *testing.T) {
	s := createTestService(t, nil, WithRateLimiter(NewRateLimiter(2, time.Minute)))

	for i := 0; i < 2; i++ {
		rec := get(t, s, "/v1/authorize?route=/", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := get(t, s, "/v1/authorize?route=/", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	var resp errorResponse
	decode(t, rec, &resp)
	assert.Equal(t, rbac.ErrorCodeRateLimited, resp.Error.Code)

	t.Run("health is not limited", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, get(t, s, "/health", "").Code)
	})

	t.Run("other clients have their own bucket", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/authorize?route=/", nil)
		req.Header.Set("X-Forwarded-For", "10.1.1.1, 192.168.0.1")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestClientKey(t *testing.T) {
	testCases := []struct {
		name       string
		remoteAddr string
		forwarded  string
		expected   string
	}{
		{"remote address", "192.0.2.1:1234", "", "192.0.2.1"},
		{"forwarded first hop", "192.0.2.1:1234", "203.0.113.9, 10.0.0.1", "203.0.113.9"},
		{"address without port", "192.0.2.1", "", "192.0.2.1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			assert.Equal(t, tc.expected, clientKey(req))
		})
	}
}

func TestHeaderPrincipalResolver(t *testing.T) {
	resolver := NewHeaderPrincipalResolver("")

	testCases := []struct {
		name     string
		values   []string
		expected []rbac.Role
		wantErr  bool
	}{
		{"no header", nil, nil, false},
		{"single role", []string{"patient"}, rbac.Roles("patient"), false},
		{"spaces and blanks", []string{" patient , ,nurse "}, rbac.Roles("patient", "nurse"), false},
		{"repeated headers", []string{"patient", "lab,patient"}, rbac.Roles("patient", "lab"), false},
		{"unknown role passes through", []string{"janitor"}, rbac.Roles("janitor"), false},
		{"invalid characters", []string{"admin;drop"}, nil, true},
		{"uppercase rejected", []string{"Admin"}, nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for _, v := range tc.values {
				req.Header.Add(DefaultRolesHeader, v)
			}

			roles, err := resolver.Roles(req)
			if tc.wantErr {
				require.Error(t, err)
				rbacErr, ok := rbac.GetRBACError(err)
				require.True(t, ok)
				assert.Equal(t, rbac.ErrorTypeInvalidRequest, rbacErr.Type)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, roles)
		})
	}
}
