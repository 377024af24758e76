// Package config provides configuration loading and management for IRTA.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/irta/schema"
)

// Config represents the complete IRTA configuration
type Config struct {
	Schema  SchemaConfig  `yaml:"schema"`
	Log     LogConfig     `yaml:"log"`
	NATS    NATSConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`
	Journal JournalConfig `yaml:"journal"`
	Console ConsoleConfig `yaml:"console"`
	Watch   WatchConfig   `yaml:"watch"`
}

// SchemaConfig holds the constraint schema limits and ID allocation settings
type SchemaConfig struct {
	MetricMin    int    `yaml:"metric_min" split_words:"true"`
	MetricMax    int    `yaml:"metric_max" split_words:"true"`
	MaxLabelLen  int    `yaml:"max_label_len" split_words:"true"`
	MaxListItems int    `yaml:"max_list_items" split_words:"true"`
	MaxItemLen   int    `yaml:"max_item_len" split_words:"true"`
	IDPrefix     string `yaml:"id_prefix" split_words:"true"`
	IDHexDigits  int    `yaml:"id_hex_digits" split_words:"true"`
	// MaxAttempts bounds ID sampling before allocation fails
	MaxAttempts int `yaml:"max_attempts" split_words:"true"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is text or json for the stderr handler
	Format string `yaml:"format"`
	// File, when set, also receives JSON logs
	File string `yaml:"file"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = no NATS)
	URL string `yaml:"url"`
	// Prefix is prepended to every subject
	Prefix string `yaml:"prefix"`
	// Stream, when set, is a JetStream stream created to retain element events
	Stream string `yaml:"stream"`
	// StreamMaxAge bounds how long the stream keeps events (0 = forever)
	StreamMaxAge time.Duration `yaml:"stream_max_age" split_words:"true"`
	// Name is the client connection name
	Name string `yaml:"name"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// JournalConfig configures the SQLite audit journal
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ConsoleConfig configures terminal output
type ConsoleConfig struct {
	// Color is auto, always or never
	Color  string `yaml:"color"`
	Prompt string `yaml:"prompt"`
}

// WatchConfig configures command file tailing
type WatchConfig struct {
	DebounceDelay string `yaml:"debounce_delay" split_words:"true"`
	FromStart     bool   `yaml:"from_start" split_words:"true"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	limits := schema.DefaultLimits()
	return &Config{
		Schema: SchemaConfig{
			MetricMin:    limits.MetricMin,
			MetricMax:    limits.MetricMax,
			MaxLabelLen:  limits.MaxLabelLen,
			MaxListItems: limits.MaxListItems,
			MaxItemLen:   limits.MaxItemLen,
			IDPrefix:     limits.IDPrefix,
			IDHexDigits:  limits.IDHexDigits,
			MaxAttempts:  64,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		NATS: NATSConfig{
			URL:    "", // Disabled
			Prefix: "irta",
			Name:   "irta",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9464",
			Path:    "/metrics",
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    filepath.Join(".irta", "journal.db"),
		},
		Console: ConsoleConfig{
			Color:  "auto",
			Prompt: "irta> ",
		},
		Watch: WatchConfig{
			DebounceDelay: "200ms",
		},
	}
}

// Limits converts the schema section to schema limits
func (s SchemaConfig) Limits() schema.Limits {
	return schema.Limits{
		MetricMin:    s.MetricMin,
		MetricMax:    s.MetricMax,
		MaxLabelLen:  s.MaxLabelLen,
		MaxListItems: s.MaxListItems,
		MaxItemLen:   s.MaxItemLen,
		IDPrefix:     s.IDPrefix,
		IDHexDigits:  s.IDHexDigits,
	}
}

// Build constructs the immutable schema
func (s SchemaConfig) Build() (*schema.Schema, error) {
	sch, err := schema.New(s.Limits())
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return sch, nil
}

var (
	logLevels    = []string{"debug", "info", "warn", "warning", "error"}
	logFormats   = []string{"text", "json"}
	colorOptions = []string{"auto", "always", "never"}
)

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if _, err := c.Schema.Build(); err != nil {
		return err
	}
	if c.Schema.MaxAttempts < 1 {
		return fmt.Errorf("schema.max_attempts must be positive")
	}
	if !oneOf(c.Log.Level, logLevels) {
		return fmt.Errorf("log.level must be one of %s, got %q", strings.Join(logLevels, ", "), c.Log.Level)
	}
	if !oneOf(c.Log.Format, logFormats) {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.NATS.Prefix == "" || strings.ContainsAny(c.NATS.Prefix, " \t*>") {
		return fmt.Errorf("nats.prefix must be a literal subject token, got %q", c.NATS.Prefix)
	}
	if c.NATS.StreamMaxAge < 0 {
		return fmt.Errorf("nats.stream_max_age must not be negative")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	if c.Metrics.Path == "" || !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when the journal is enabled")
	}
	if !oneOf(c.Console.Color, colorOptions) {
		return fmt.Errorf("console.color must be auto, always or never, got %q", c.Console.Color)
	}
	if c.Watch.DebounceDelay != "" {
		if _, err := time.ParseDuration(c.Watch.DebounceDelay); err != nil {
			return fmt.Errorf("watch.debounce_delay: %w", err)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := overlayFile(config, path); err != nil {
		return nil, err
	}
	return config, nil
}

// overlayFile applies the keys present in a YAML file; absent keys keep
// their current values
func overlayFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values). It is meant for sparse overrides such as CLI flags.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Schema
	if other.Schema.MetricMin != 0 {
		c.Schema.MetricMin = other.Schema.MetricMin
	}
	if other.Schema.MetricMax != 0 {
		c.Schema.MetricMax = other.Schema.MetricMax
	}
	if other.Schema.MaxLabelLen != 0 {
		c.Schema.MaxLabelLen = other.Schema.MaxLabelLen
	}
	if other.Schema.MaxListItems != 0 {
		c.Schema.MaxListItems = other.Schema.MaxListItems
	}
	if other.Schema.MaxItemLen != 0 {
		c.Schema.MaxItemLen = other.Schema.MaxItemLen
	}
	if other.Schema.IDPrefix != "" {
		c.Schema.IDPrefix = other.Schema.IDPrefix
	}
	if other.Schema.IDHexDigits != 0 {
		c.Schema.IDHexDigits = other.Schema.IDHexDigits
	}
	if other.Schema.MaxAttempts != 0 {
		c.Schema.MaxAttempts = other.Schema.MaxAttempts
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}
	if other.Log.File != "" {
		c.Log.File = other.Log.File
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Prefix != "" {
		c.NATS.Prefix = other.NATS.Prefix
	}
	if other.NATS.Stream != "" {
		c.NATS.Stream = other.NATS.Stream
	}
	if other.NATS.StreamMaxAge != 0 {
		c.NATS.StreamMaxAge = other.NATS.StreamMaxAge
	}

	// Metrics
	if other.Metrics.Enabled {
		c.Metrics.Enabled = true
	}
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}

	// Journal
	if other.Journal.Enabled {
		c.Journal.Enabled = true
	}
	if other.Journal.Path != "" {
		c.Journal.Path = other.Journal.Path
	}

	// Console
	if other.Console.Color != "" {
		c.Console.Color = other.Console.Color
	}
}
