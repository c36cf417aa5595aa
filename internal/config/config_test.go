package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	home := t.TempDir()
	cfg, err := loadFrom(filepath.Join(home, "missing.toml"), home)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".claude", "projects"), cfg.WatchRoot)
	assert.True(t, cfg.Storage.Enabled)
	assert.False(t, cfg.API.Enabled)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 60*time.Second, cfg.Sync.IdleInterval.Duration)
	assert.Equal(t, 5*time.Minute, cfg.Sync.BackoffCeiling.Duration)
}

func TestLoadOverrides(t *testing.T) {
	home := t.TempDir()
	cfgPath := filepath.Join(home, "config.toml")
	content := `
watch_root = "~/logs"
debug_filter_project = "proj-a"
user_name = "stan"

[storage]
enabled = true
db_path = "~/data/events.db"

[api]
enabled = true
url = "https://collector.example.com/api"
api_key = "k-123"

[sync]
batch_size = 10
idle_interval = "5s"
backoff_ceiling = "1m"
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	cfg, err := loadFrom(cfgPath, home)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "logs"), cfg.WatchRoot)
	assert.Equal(t, filepath.Join(home, "data", "events.db"), cfg.Storage.DBPath)
	assert.Equal(t, "proj-a", cfg.DebugFilterProject)
	assert.Equal(t, "stan", cfg.UserName)
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, "https://collector.example.com/api", cfg.API.URL)
	assert.Equal(t, "k-123", cfg.API.Key)
	assert.Equal(t, 10, cfg.Sync.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Sync.IdleInterval.Duration)
	assert.Equal(t, time.Minute, cfg.Sync.BackoffCeiling.Duration)
	// untouched keys keep their defaults
	assert.Equal(t, 100*time.Millisecond, cfg.Sync.Throttle.Duration)
}

func TestBadDuration(t *testing.T) {
	home := t.TempDir()
	cfgPath := filepath.Join(home, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[sync]\nidle_interval = \"soon\"\n"), 0o644))

	_, err := loadFrom(cfgPath, home)
	assert.Error(t, err)
}
