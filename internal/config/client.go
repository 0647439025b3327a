package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ClientConfig configures the workout client: where the server lives and
// where unsynced state is kept between runs.
type ClientConfig struct {
	ServerURL string `yaml:"server_url"`
	APIKey    string `yaml:"api_key"`
	// StateDir holds the SQLite file backing drafts and the outbox.
	StateDir   string `yaml:"state_dir"`
	QuotaBytes int64  `yaml:"quota_bytes"`
	// ProbeInterval is how often the server is pinged to detect connectivity.
	ProbeInterval      time.Duration `yaml:"probe_interval"`
	DefaultRestSeconds int           `yaml:"default_rest_seconds"`
}

// StatePath returns the path of the client's SQLite state file.
func (c ClientConfig) StatePath() string {
	return filepath.Join(c.StateDir, "state.db")
}

// DefaultRest returns the rest timer duration started after a completed set.
func (c ClientConfig) DefaultRest() time.Duration {
	return time.Duration(c.DefaultRestSeconds) * time.Second
}

// LoadClient reads the client config. A missing file is not an error: the
// environment alone can configure the client. Env vars:
//
//	LIFTSYNC_SERVER_URL, LIFTSYNC_API_KEY, LIFTSYNC_STATE_DIR,
//	LIFTSYNC_QUOTA_BYTES, LIFTSYNC_PROBE_INTERVAL, LIFTSYNC_DEFAULT_REST_SECONDS
func LoadClient(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing client config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading client config: %w", err)
	}

	applyClientEnvOverrides(cfg)
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("client config validation: %w", err)
	}
	return cfg, nil
}

func applyClientEnvOverrides(cfg *ClientConfig) {
	if v := os.Getenv("LIFTSYNC_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("LIFTSYNC_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("LIFTSYNC_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("LIFTSYNC_QUOTA_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.QuotaBytes = n
		}
	}
	if v := os.Getenv("LIFTSYNC_PROBE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ProbeInterval = d
		}
	}
	if v := os.Getenv("LIFTSYNC_DEFAULT_REST_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultRestSeconds = n
		}
	}
}

func (c *ClientConfig) applyDefaults() error {
	if c.StateDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("locating state dir: %w", err)
		}
		c.StateDir = filepath.Join(dir, "liftsync")
	}
	if c.QuotaBytes == 0 {
		c.QuotaBytes = 5 << 20
	}
	if c.ProbeInterval == 0 {
		c.ProbeInterval = 15 * time.Second
	}
	return nil
}

func (c *ClientConfig) validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	if c.QuotaBytes < 0 {
		return fmt.Errorf("quota_bytes must not be negative")
	}
	if c.DefaultRestSeconds < 0 {
		return fmt.Errorf("default_rest_seconds must not be negative")
	}
	return nil
}
