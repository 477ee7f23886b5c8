package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// Category groups a set of feed URLs under one display pane.
type Category struct {
	Name    string   `yaml:"name"`
	Feeds   []string `yaml:"feeds"`
	Enabled bool     `yaml:"enabled"`
}

// MarketConfig configures the stock ticker and its providers.
type MarketConfig struct {
	Symbols []string `yaml:"symbols"`
	APIKey  string   `yaml:"api_key,omitempty"`
}

// SentimentConfig points at the local Ollama instance.
type SentimentConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
}

// NarrationConfig controls the text-to-speech pipeline.
type NarrationConfig struct {
	Enabled bool   `yaml:"enabled"`
	Command string `yaml:"command,omitempty"`
	Timeout string `yaml:"timeout,omitempty"`
}

type Config struct {
	RotationInterval string          `yaml:"rotation_interval"`
	RefreshMultiple  int             `yaml:"refresh_multiple,omitempty"`
	Workers          int             `yaml:"workers,omitempty"`
	RetryLimit       int             `yaml:"retry_limit,omitempty"`
	FetchTimeout     string          `yaml:"fetch_timeout,omitempty"`
	Categories       []Category      `yaml:"categories"`
	Market           MarketConfig    `yaml:"market"`
	Sentiment        SentimentConfig `yaml:"sentiment"`
	Narration        NarrationConfig `yaml:"narration"`
}

// RotationDuration returns the story rotation tick, defaulting to 10s.
func (c *Config) RotationDuration() time.Duration {
	d, err := time.ParseDuration(c.RotationInterval)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// RefreshDuration returns the background feed refresh interval. Feeds are
// refetched every 30 rotation ticks by default, so a new batch of stories
// arrives without interrupting the one on screen.
func (c *Config) RefreshDuration() time.Duration {
	mult := c.RefreshMultiple
	if mult <= 0 {
		mult = 30
	}
	return time.Duration(mult) * c.RotationDuration()
}

// FetchTimeoutDuration returns the per-request network timeout, defaulting to 15s.
func (c *Config) FetchTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.FetchTimeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// WorkerCount returns the fetch pool size, defaulting to 5.
func (c *Config) WorkerCount() int {
	if c.Workers <= 0 {
		return 5
	}
	return c.Workers
}

// Retries returns how many attempts a feed source gets before it is
// disabled for the rest of the run.
func (c *Config) Retries() int {
	if c.RetryLimit <= 0 {
		return 3
	}
	return c.RetryLimit
}

// NarrationTimeout returns how long one narration may hold the speaker
// before it is force-released.
func (c *Config) NarrationTimeout() time.Duration {
	d, err := time.ParseDuration(c.Narration.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// MarketAPIKey returns the Alpha Vantage key (config or env var).
func (c *Config) MarketAPIKey() string {
	if c.Market.APIKey != "" {
		return c.Market.APIKey
	}
	return os.Getenv("ALPHA_VANTAGE_API_KEY")
}

// EnabledCategories returns categories that should be fetched and displayed.
func (c *Config) EnabledCategories() []Category {
	var out []Category
	for _, cat := range c.Categories {
		if cat.Enabled {
			out = append(out, cat)
		}
	}
	return out
}

// CategoryNames returns the display names of enabled categories in config order.
func (c *Config) CategoryNames() []string {
	var names []string
	for _, cat := range c.EnabledCategories() {
		names = append(names, cat.Name)
	}
	return names
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "streampulse", "config.yaml")
}

// ImageCacheDir is where resized story images persist across runs.
func ImageCacheDir() string {
	return filepath.Join(xdg.CacheHome, "streampulse", "images")
}

// LogPath is where the pipeline writes its log while the TUI owns the terminal.
func LogPath() string {
	return filepath.Join(xdg.StateHome, "streampulse", "streampulse.log")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

func Load(path string) (*Config, error) {
	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Write defaults to config path on first run
			if err := writeDefaults(path); err != nil {
				// Non-fatal: just use embedded defaults
				return defaults, nil
			}
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	for i, cat := range cfg.Categories {
		if cat.Name == "" {
			return fmt.Errorf("category %d: name is required", i)
		}
		if len(cat.Feeds) == 0 {
			return fmt.Errorf("category %q: at least one feed url is required", cat.Name)
		}
		for _, feed := range cat.Feeds {
			u, err := url.Parse(feed)
			if err != nil {
				return fmt.Errorf("category %q: invalid feed url %q: %w", cat.Name, feed, err)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("category %q: feed url scheme must be http or https, got %q", cat.Name, u.Scheme)
			}
		}
	}
	for _, sym := range cfg.Market.Symbols {
		if sym == "" {
			return fmt.Errorf("market: empty symbol")
		}
	}
	return nil
}
