package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Logging
	LogLevel string `json:"log_level"`

	// Storage
	StorePath string `json:"store_path"`

	// Optional path for a PNG copy of the pairing QR code, for headless
	// deployments where nobody watches the terminal.
	QRImagePath string `json:"qr_image_path"`

	// Session lifecycle
	Session SessionConfig `json:"session"`

	// Media persistence
	Media MediaConfig `json:"media"`
}

// SessionConfig controls connection health checking and reconnection.
type SessionConfig struct {
	HealthCheckSecs    int `json:"health_check_secs"`
	ReconnectDelaySecs int `json:"reconnect_delay_secs"`
	DedupCapacity      int `json:"dedup_capacity"`

	HealthCheckInterval time.Duration `json:"-"`
	ReconnectDelay      time.Duration `json:"-"`
}

// MediaConfig controls where received media files are written.
type MediaConfig struct {
	Dir string `json:"dir"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultStore := filepath.Join(homeDir, ".zapdesk", "store")

	return &Config{
		LogLevel:  "INFO",
		StorePath: defaultStore,
		Session: SessionConfig{
			HealthCheckSecs:     30,
			ReconnectDelaySecs:  5,
			DedupCapacity:       4096,
			HealthCheckInterval: 30 * time.Second,
			ReconnectDelay:      5 * time.Second,
		},
		Media: MediaConfig{
			Dir: "media",
		},
	}
}

// LoadFromFile loads configuration from a JSON file, falling back to
// defaults when the file does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	return cfg, nil
}

// Load loads configuration from an optional file plus environment
// variable overrides.
func Load(configPath string) *Config {
	var cfg *Config
	var err error

	if configPath != "" {
		cfg, err = LoadFromFile(configPath)
		if err != nil {
			cfg = Default()
		}
	} else {
		cfg = Default()
	}

	if v := os.Getenv("ZAPDESK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ZAPDESK_STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("ZAPDESK_QR_IMAGE_PATH"); v != "" {
		cfg.QRImagePath = v
	}
	if v := os.Getenv("ZAPDESK_HEALTH_CHECK_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Session.HealthCheckSecs = secs
		}
	}
	if v := os.Getenv("ZAPDESK_RECONNECT_DELAY_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Session.ReconnectDelaySecs = secs
		}
	}
	if v := os.Getenv("ZAPDESK_DEDUP_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Session.DedupCapacity = n
		}
	}

	cfg.normalize()
	return cfg
}

// normalize converts second counts into durations and backfills zeros.
func (c *Config) normalize() {
	if c.Session.HealthCheckSecs <= 0 {
		c.Session.HealthCheckSecs = 30
	}
	if c.Session.ReconnectDelaySecs <= 0 {
		c.Session.ReconnectDelaySecs = 5
	}
	if c.Session.DedupCapacity <= 0 {
		c.Session.DedupCapacity = 4096
	}
	if c.Media.Dir == "" {
		c.Media.Dir = "media"
	}
	c.Session.HealthCheckInterval = time.Duration(c.Session.HealthCheckSecs) * time.Second
	c.Session.ReconnectDelay = time.Duration(c.Session.ReconnectDelaySecs) * time.Second
}

// MediaPath returns the absolute directory for stored media files.
func (c *Config) MediaPath() string {
	if filepath.IsAbs(c.Media.Dir) {
		return c.Media.Dir
	}
	return filepath.Join(c.StorePath, c.Media.Dir)
}

// EnsureStorePath creates the store directory if it doesn't exist.
func (c *Config) EnsureStorePath() error {
	if err := os.MkdirAll(c.StorePath, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.MediaPath(), 0755)
}
