package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, "X-Principal-Roles", cfg.Server.RolesHeader)
	assert.Equal(t, 30*time.Second, Timeout(cfg.Server.ShutdownTimeout))
	assert.Empty(t, cfg.Policy.File)
	assert.True(t, cfg.Policy.FailOnIssues)
	assert.Equal(t, "/metrics", cfg.Monitoring.MetricsPath)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 600, cfg.RateLimit.RequestsPerMin)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: 9191
policy:
  file: /etc/medrex/policy.yaml
  fail_on_issues: false
tracing:
  enabled: true
  sampling_rate: 0.25
log_level: debug
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "/etc/medrex/policy.yaml", cfg.Policy.File)
	assert.False(t, cfg.Policy.FailOnIssues)
	assert.True(t, cfg.Tracing.Enabled)
	assert.InDelta(t, 0.25, cfg.Tracing.SamplingRate, 1e-9)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 15, cfg.Server.ReadTimeout)
}

func TestLoadFile_Missing(t *testing.T) {
	clearEnv(t)
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTHZ_POLICY_FILE", "/tmp/policy.yaml")
	t.Setenv("PORT", "7000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/policy.yaml", cfg.Policy.File)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"port out of range", "server:\n  port: 70000\n"},
		{"empty roles header", "server:\n  roles_header: \"\"\n"},
		{"relative metrics path", "monitoring:\n  metrics_path: metrics\n"},
		{"sampling rate above one", "tracing:\n  sampling_rate: 1.5\n"},
		{"unknown exporter", "tracing:\n  exporter: jaeger\n"},
		{"zero rate limit", "rate_limit:\n  requests_per_min: 0\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			_, err := LoadFile(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}
