package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/abelbrown/deepsearch/internal/search"
	"github.com/abelbrown/deepsearch/internal/upload"
)

// Config is the persistent application configuration
type Config struct {
	Backend  BackendConfig  `json:"backend"`
	Indexing IndexingConfig `json:"indexing"`
	Search   SearchConfig   `json:"search"`
	Player   PlayerConfig   `json:"player"`
	UI       UIConfig       `json:"ui"`
}

// BackendConfig locates the indexing API
type BackendConfig struct {
	URL            string `json:"url"`
	PollIntervalMs int    `json:"poll_interval_ms"`
	PollTimeoutMs  int    `json:"poll_timeout_ms"`
}

// IndexingConfig holds upload settings
type IndexingConfig struct {
	FrameInterval float64 `json:"frame_interval"` // seconds between sampled frames
}

// SearchConfig holds the initial query weights
type SearchConfig struct {
	VisualWeight float64 `json:"visual_weight"`
	TextWeight   float64 `json:"text_weight"`
}

// PlayerConfig controls the external video player
type PlayerConfig struct {
	Enabled bool   `json:"enabled"`
	Binary  string `json:"binary"`           // mpv executable
	Socket  string `json:"socket,omitempty"` // IPC socket path, defaults under the data dir
}

// UIConfig holds UI preferences
type UIConfig struct {
	ShowDebug bool `json:"show_debug"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:            "http://127.0.0.1:8000",
			PollIntervalMs: 1000,
			PollTimeoutMs:  2000,
		},
		Indexing: IndexingConfig{
			FrameInterval: upload.DefaultFrameInterval,
		},
		Search: SearchConfig{
			VisualWeight: search.DefaultWeight,
			TextWeight:   search.DefaultWeight,
		},
		Player: PlayerConfig{
			Enabled: false,
			Binary:  "mpv",
		},
	}
}

// DataDir returns the directory holding config, event log and player socket.
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".deepsearch")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.json")
}

// Load reads config from disk, or returns defaults. Environment overrides
// are applied in both cases.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads config from path. Fields missing from the file keep their
// defaults; an unreadable file yields defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			cfg = DefaultConfig()
		}
	}

	cfg.AutoPopulateFromEnv()
	return cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes config to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// AutoPopulateFromEnv applies DEEPSEARCH_API_URL and DEEPSEARCH_MPV.
func (c *Config) AutoPopulateFromEnv() {
	if u := os.Getenv("DEEPSEARCH_API_URL"); u != "" {
		c.Backend.URL = u
	}
	if bin := os.Getenv("DEEPSEARCH_MPV"); bin != "" {
		c.Player.Binary = bin
		c.Player.Enabled = true
	}
}

// Validate checks ranges. Out-of-range values are reported, never clamped.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: backend.url %q is not an http(s) URL", c.Backend.URL)
	}
	if c.Backend.PollIntervalMs <= 0 {
		return fmt.Errorf("config: backend.poll_interval_ms must be positive, got %d", c.Backend.PollIntervalMs)
	}
	if c.Backend.PollTimeoutMs <= 0 {
		return fmt.Errorf("config: backend.poll_timeout_ms must be positive, got %d", c.Backend.PollTimeoutMs)
	}
	if !upload.ValidFrameInterval(c.Indexing.FrameInterval) {
		return fmt.Errorf("config: indexing.frame_interval %v not in [%v, %v]",
			c.Indexing.FrameInterval, upload.MinFrameInterval, upload.MaxFrameInterval)
	}
	if !search.ValidWeight(c.Search.VisualWeight) || !search.ValidWeight(c.Search.TextWeight) {
		return fmt.Errorf("config: search weights (%v, %v) not in [%v, %v]",
			c.Search.VisualWeight, c.Search.TextWeight, search.MinWeight, search.MaxWeight)
	}
	if c.Player.Enabled && c.Player.Binary == "" {
		return fmt.Errorf("config: player.binary is required when the player is enabled")
	}
	return nil
}

// PollInterval returns the poll cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Backend.PollIntervalMs) * time.Millisecond
}

// PollTimeout returns the per-request poll timeout.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Backend.PollTimeoutMs) * time.Millisecond
}

// PlayerSocket returns the mpv IPC socket path.
func (c *Config) PlayerSocket() string {
	if c.Player.Socket != "" {
		return c.Player.Socket
	}
	return filepath.Join(DataDir(), "mpv.sock")
}
