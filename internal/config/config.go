package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/jgoulah/dropcountr/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Email       string     `yaml:"email,omitempty"`
	Password    string     `yaml:"password,omitempty"`
	ServiceID   int        `yaml:"service_id,omitempty"`    // Default service connection
	Timezone    string     `yaml:"timezone,omitempty"`      // Zone the API reports times in
	BaseURL     string     `yaml:"base_url,omitempty"`      // Override for testing
	Period      string     `yaml:"period,omitempty"`        // day or hour
	DaysToFetch int        `yaml:"days_to_fetch,omitempty"` // Trailing window for usage (fallback: 7)
	MQTT        MQTTConfig `yaml:"mqtt,omitempty"`
}

// MQTTConfig holds MQTT broker settings for publishing usage
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`                 // e.g., "homeassistant.local:1883"
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"` // default "dropcountr"
}

// Load reads and validates a YAML config. A missing file yields an empty
// config so every setting falls back to flags, environment or defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening config %s: %w", path, err)
	}
	defer f.Close()

	cfg := &Config{}
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail deep inside a command
func (c *Config) Validate() error {
	if c.ServiceID < 0 {
		return fmt.Errorf("service_id must be positive, got %d", c.ServiceID)
	}
	if c.DaysToFetch < 0 {
		return fmt.Errorf("days_to_fetch must be positive, got %d", c.DaysToFetch)
	}
	if _, err := models.ParsePeriod(c.Period); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("base_url %q is not an absolute URL", c.BaseURL)
		}
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}

// Save writes the config with owner-only permissions, since it may hold the
// account password. The file is replaced atomically.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// DefaultConfigPath is where the CLI looks without --config
func DefaultConfigPath() string {
	return "config.yaml"
}

// GetDaysToFetch returns the trailing window for usage queries, default 7
func (c *Config) GetDaysToFetch() int {
	if c.DaysToFetch == 0 {
		return 7
	}
	return c.DaysToFetch
}

// GetTimezone returns the configured timezone name
func (c *Config) GetTimezone() string {
	if c.Timezone == "" {
		return models.DefaultTimezone
	}
	return c.Timezone
}

// Location resolves the configured timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.GetTimezone())
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.GetTimezone(), err)
	}
	return loc, nil
}

// GetTopicPrefix returns the MQTT topic prefix
func (m MQTTConfig) GetTopicPrefix() string {
	if m.TopicPrefix == "" {
		return "dropcountr"
	}
	return m.TopicPrefix
}
