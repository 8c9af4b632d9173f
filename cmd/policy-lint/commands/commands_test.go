package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrex/portal-authz/internal/policy"
	"github.com/medrex/portal-authz/pkg/rbac"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writePolicy(t *testing.T, mutate func(*policy.Document)) string {
	t.Helper()
	doc := policy.DefaultDocument()
	if mutate != nil {
		mutate(&doc)
	}
	data, err := policy.Encode(doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestCheck_ShippedPolicy(t *testing.T) {
	out, err := run(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "policy "+policy.DefaultVersion+":")
	assert.Contains(t, out, "(100.0%), 0 issues")
}

func TestCheck_DefectivePolicy(t *testing.T) {
	path := writePolicy(t, func(d *policy.Document) {
		delete(d.Permissions, rbac.RoleAdmin)
	})

	out, err := run(t, "check", "--policy", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed verification")
	assert.Contains(t, out, "[missing_permissions]")
	assert.Contains(t, out, "[unreachable_landing]")
}

func TestCheck_MissingPolicyFile(t *testing.T) {
	_, err := run(t, "check", "--policy", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load policy")
}

func TestReport(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		out, err := run(t, "report")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "Route Access Verification Report\n"))
		assert.Contains(t, out, "Roles with failures: none")
	})

	t.Run("json", func(t *testing.T) {
		out, err := run(t, "report", "-o", "json")
		require.NoError(t, err)

		var report jsonReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.True(t, report.Passed)
		assert.Equal(t, policy.DefaultVersion, report.Version)
		assert.Len(t, report.Suites, len(rbac.AllRoles))
		assert.Equal(t, 0, report.Summary.Failed)
		assert.NotNil(t, report.Issues)
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := run(t, "report", "-o", "xml")
		require.Error(t, err)
	})

	t.Run("custom invalid probes", func(t *testing.T) {
		out, err := run(t, "report", "--invalid-probe", "/definitely-not-a-route")
		require.NoError(t, err)
		assert.Contains(t, out, "Success rate: 100.0%")
	})
}

func TestMatrix(t *testing.T) {
	out, err := run(t, "matrix")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	header := strings.Fields(lines[0])
	assert.Equal(t, "ROUTE", header[0])
	assert.Len(t, header, len(rbac.AllRoles)+1)
	assert.NotContains(t, out, "!")
}

func TestLanding(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		out, err := run(t, "landing")
		require.NoError(t, err)
		assert.Contains(t, out, "ROLE")
		assert.Regexp(t, `support\s+/support-center\s+6\s+true`, out)
		assert.Regexp(t, `super_admin\s+/admin-dashboard\s+0\s+true`, out)
		assert.NotContains(t, out, "false")
	})

	t.Run("role combination", func(t *testing.T) {
		out, err := run(t, "landing", "patient", "nurse")
		require.NoError(t, err)
		assert.Contains(t, out, "page: /provider-dashboard")
		assert.Contains(t, out, "matched role: nurse")
	})

	t.Run("unknown role falls back", func(t *testing.T) {
		out, err := run(t, "landing", "janitor")
		require.NoError(t, err)
		assert.Contains(t, out, "page: /patient-dashboard")
		assert.Contains(t, out, "fallback: true")
	})
}

func TestDecide(t *testing.T) {
	out, err := run(t, "decide", "--roles", "patient", "/appointments/abc-123", "/admin-dashboard")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "/appointments/abc-123\tallow\trole_grant\trole=patient\tpattern=/appointments/:id", lines[0])
	assert.Equal(t, "/admin-dashboard\tdeny\tinsufficient_role", lines[1])

	out, err = run(t, "decide", "/auth")
	require.NoError(t, err)
	assert.Equal(t, "/auth\tallow\tpublic\n", out)

	_, err = run(t, "decide")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	out, err := run(t, "export")
	require.NoError(t, err)

	store, err := policy.Parse([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, policy.DefaultVersion, store.Version())
	assert.Equal(t, policy.Default().AllRoutes(), store.AllRoutes())
}
