// ABOUTME: Tests for configuration loading, env expansion, and validation
// ABOUTME: Uses temp files to exercise the YAML parsing path end to end

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wagate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
environment: production
storage:
  session_root: /app/data/sessions
  persistent_mount: /app/data
database:
  path: /app/data/wagate.db
queue:
  path: /app/data/jobs.db
auth:
  qr_timeout: 45s
reconnect:
  max_attempts: 5
  base_delay: 2s
  max_delay: 30s
  backoff_multiplier: 2.0
sessions:
  retention_days: 14
  sweep_interval: 12h
  metadata_ttl: 30m
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Production())
	assert.Equal(t, "/app/data/sessions", cfg.Storage.SessionRoot)
	assert.Equal(t, "/app/data", cfg.Storage.PersistentMount)
	assert.Equal(t, 45*time.Second, cfg.Auth.QRTimeout)
	assert.Equal(t, 5, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Reconnect.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Reconnect.MaxDelay)
	assert.Equal(t, 2.0, cfg.Reconnect.BackoffMultiplier)
	assert.Equal(t, 14, cfg.Sessions.RetentionDays)
	assert.Equal(t, 12*time.Hour, cfg.Sessions.SweepInterval)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.MetadataTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  session_root: ./sessions
database:
  path: ./wagate.db
queue:
  path: ./jobs.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.Production())
	assert.Equal(t, 30*time.Second, cfg.Auth.QRTimeout)
	assert.Equal(t, 10, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Reconnect.BaseDelay)
	assert.Equal(t, 60*time.Second, cfg.Reconnect.MaxDelay)
	assert.Equal(t, 1.5, cfg.Reconnect.BackoffMultiplier)
	assert.Equal(t, 30, cfg.Sessions.RetentionDays)
	assert.Equal(t, time.Hour, cfg.Sessions.MetadataTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("WAGATE_TEST_ROOT", "/mnt/disk/sessions")

	path := writeConfig(t, `
storage:
  session_root: ${WAGATE_TEST_ROOT}
database:
  path: ./wagate.db
queue:
  path: ./jobs.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/mnt/disk/sessions", cfg.Storage.SessionRoot)
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing session root",
			content: `
database:
  path: ./wagate.db
queue:
  path: ./jobs.db
`,
			wantErr: "session_root",
		},
		{
			name: "missing database path",
			content: `
storage:
  session_root: ./sessions
queue:
  path: ./jobs.db
`,
			wantErr: "database.path",
		},
		{
			name: "missing queue path",
			content: `
storage:
  session_root: ./sessions
database:
  path: ./wagate.db
`,
			wantErr: "queue.path",
		},
		{
			name: "bad environment",
			content: `
environment: staging
storage:
  session_root: ./sessions
database:
  path: ./wagate.db
queue:
  path: ./jobs.db
`,
			wantErr: "environment",
		},
		{
			name: "bad duration",
			content: `
storage:
  session_root: ./sessions
database:
  path: ./wagate.db
queue:
  path: ./jobs.db
auth:
  qr_timeout: soon
`,
			wantErr: "qr_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
