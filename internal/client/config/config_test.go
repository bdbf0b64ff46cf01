package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8000", c.RemoteBaseURL)
	assert.Equal(t, "ws://127.0.0.1:8000/realtime", c.RealtimeURL)
	assert.Equal(t, "jotflow.db", c.DatabasePath)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, 2*time.Second, c.QueuePollInterval)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "http://127.0.0.1:8000", cfg.RemoteBaseURL)
	assert.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
}

func TestParseEnv_Overrides(t *testing.T) {
	t.Setenv("JOTFLOW_REMOTE_BASE_URL", "https://api.example.com")
	t.Setenv("JOTFLOW_ONLINE_CHECK_INTERVAL", "10s")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, "https://api.example.com", cfg.RemoteBaseURL)
	assert.Equal(t, 10*time.Second, cfg.OnlineCheckInterval)
	// untouched fields keep defaults
	assert.Equal(t, "jotflow.db", cfg.DatabasePath)
}
