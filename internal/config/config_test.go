package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 500*time.Millisecond, cfg.Agent.PollInterval())
	assert.Equal(t, time.Duration(0), cfg.Agent.RequestTimeout())
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
log:
  level: debug
agent:
  backend_url: http://localhost:8000/
  poll_interval_ms: 250
  notify_prefix: "Skipped: "
browser:
  headless: true
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "http://localhost:8000/", cfg.Agent.BackendURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Agent.PollInterval())
	assert.Equal(t, "Skipped: ", cfg.Agent.NotifyPrefix)
	assert.Equal(t, "//api.bilibili.com/x/player/wbi/v2", cfg.Agent.MetadataPrefix)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  poll_interval_ms: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PollIntervalMS")
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent: [\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDetectorAPIKey(t *testing.T) {
	t.Setenv("SPONSORSKIP_TEST_KEY", "sk-test")
	d := Detector{APIKeyEnv: "SPONSORSKIP_TEST_KEY"}
	assert.Equal(t, "sk-test", d.APIKey())
	assert.Equal(t, "", Detector{}.APIKey())
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", DefaultPath))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
