package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	// WatchRoot is the directory tree of .jsonl session logs.
	WatchRoot string `toml:"watch_root"`
	// UserName is recorded on every ingested event.
	UserName string `toml:"user_name"`
	// DebugFilterProject, when set, restricts ingestion to files whose
	// relative path starts with this prefix.
	DebugFilterProject string `toml:"debug_filter_project"`

	Storage StorageConfig `toml:"storage"`
	API     APIConfig     `toml:"api"`
	Sync    SyncConfig    `toml:"sync"`
}

type StorageConfig struct {
	Enabled bool   `toml:"enabled"`
	DBPath  string `toml:"db_path"`
}

type APIConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Key     string `toml:"api_key"`
}

type SyncConfig struct {
	BatchSize       int      `toml:"batch_size"`
	IdleInterval    duration `toml:"idle_interval"`
	Throttle        duration `toml:"throttle"`
	BackoffFloor    duration `toml:"backoff_floor"`
	BackoffCeiling  duration `toml:"backoff_ceiling"`
	RequestTimeout  duration `toml:"request_timeout"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// duration lets intervals be written as "60s" or "5m" in the TOML file.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return loadFrom(filepath.Join(home, ".config", "aisync", "config.toml"), home)
}

func loadFrom(cfgPath, home string) (*Config, error) {
	cfg := defaults(home)

	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	cfg.WatchRoot = expandHome(cfg.WatchRoot, home)
	cfg.Storage.DBPath = expandHome(cfg.Storage.DBPath, home)
	return cfg, nil
}

func defaults(home string) *Config {
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}
	return &Config{
		WatchRoot: filepath.Join(home, ".claude", "projects"),
		UserName:  user,
		Storage: StorageConfig{
			Enabled: true,
			DBPath:  filepath.Join(home, ".config", "aisync", "events.db"),
		},
		API: APIConfig{
			Enabled: false,
		},
		Sync: SyncConfig{
			BatchSize:       50,
			IdleInterval:    duration{60 * time.Second},
			Throttle:        duration{100 * time.Millisecond},
			BackoffFloor:    duration{100 * time.Millisecond},
			BackoffCeiling:  duration{5 * time.Minute},
			RequestTimeout:  duration{30 * time.Second},
			ShutdownTimeout: duration{5 * time.Second},
		},
	}
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
