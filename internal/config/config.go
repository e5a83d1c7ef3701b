// Package config loads and watches the Sentilytics configuration.
// Configuration lives in .sentilytics/config.yaml relative to the
// workspace; environment variables override file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file location relative to the workspace.
const DefaultPath = ".sentilytics/config.yaml"

// Config is the root configuration.
type Config struct {
	Gemini  GeminiConfig  `yaml:"gemini"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// GeminiConfig configures the AI backend client. APIKey is the single
// opaque credential the core needs; it is never logged.
type GeminiConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	Model           string `yaml:"model"`
	Timeout         string `yaml:"timeout"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
}

// StoreConfig configures local persistence.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig controls categorized file logging.
// Mirrored by the logging package to avoid an import cycle.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Gemini: GeminiConfig{
			BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
			Model:           "gemini-3-flash-preview",
			Timeout:         "60s",
			MaxOutputTokens: 8192,
		},
		Store: StoreConfig{
			DatabasePath: ".sentilytics/feedback.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment variables override file values either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Gemini.APIKey = key
	}
	if url := os.Getenv("SENTILYTICS_GEMINI_BASE_URL"); url != "" {
		c.Gemini.BaseURL = url
	}
	if model := os.Getenv("SENTILYTICS_GEMINI_MODEL"); model != "" {
		c.Gemini.Model = model
	}
	if path := os.Getenv("SENTILYTICS_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if level := os.Getenv("SENTILYTICS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetGeminiTimeout returns the AI backend timeout as a duration.
func (c *Config) GetGeminiTimeout() time.Duration {
	d, err := time.ParseDuration(c.Gemini.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}
