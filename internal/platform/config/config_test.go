package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
server:
  port: 9090
database:
  path: /tmp/test.db
webhooks:
  workers: 4
  backoff: exponential
automation:
  event_triggers:
    - event: budget.threshold_crossed
      trigger: budget_threshold
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, 4, cfg.Webhooks.Workers)
	assert.Equal(t, "exponential", cfg.Webhooks.Backoff)
	assert.Equal(t, "budget_threshold", cfg.Automation.TriggerMap()["budget.threshold_crossed"])

	// Defaults
	assert.Equal(t, 30*time.Second, cfg.Webhooks.RequestTimeout)
	assert.Equal(t, 3, cfg.Webhooks.DefaultMaxRetries)
	assert.Equal(t, 60, cfg.Webhooks.DefaultRetryDelay)
	assert.Equal(t, 60, cfg.Automation.DefaultCooldownMinutes)
	assert.Equal(t, "0 1 * * *", cfg.Retention.Schedule)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
