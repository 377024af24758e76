package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "irta.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/irta"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
	// EnvPrefix prefixes every environment override, e.g. IRTA_LOG_LEVEL
	EnvPrefix = "IRTA"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/irta/config.yaml)
// 3. Project config (irta.yaml in current or parent directories)
// 4. Environment variables (IRTA_<SECTION>_<KEY>)
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithFile is like Load, but an explicit file replaces the user and
// project layers.
func (l *Loader) LoadWithFile(path string) (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	if path != "" {
		if err := overlayFile(config, path); err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config file", slog.String("path", path))
	} else {
		l.loadLayers(config)
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	// Validate final config
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (l *Loader) loadLayers(config *Config) {
	// Load user config
	if userConfigPath := l.userConfigPath(); userConfigPath != "" {
		if err := overlayFile(config, userConfigPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
		} else if !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}
	}

	// Load project config
	projectConfigPath := l.findProjectConfig()
	if projectConfigPath == "" {
		l.logger.Debug("No project config found")
		return
	}
	if err := overlayFile(config, projectConfigPath); err == nil {
		l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
	} else {
		l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
	}
}

// applyEnv overlays IRTA_* environment variables, one prefix per section.
// Keys derive from field names; envconfig tags are not used because
// envconfig falls back to the bare tag (PATH, NAME) when the prefixed key
// is unset.
func applyEnv(config *Config) error {
	sections := []struct {
		prefix string
		spec   any
	}{
		{EnvPrefix + "_SCHEMA", &config.Schema},
		{EnvPrefix + "_LOG", &config.Log},
		{EnvPrefix + "_NATS", &config.NATS},
		{EnvPrefix + "_METRICS", &config.Metrics},
		{EnvPrefix + "_JOURNAL", &config.Journal},
		{EnvPrefix + "_CONSOLE", &config.Console},
		{EnvPrefix + "_WATCH", &config.Watch},
	}
	for _, s := range sections {
		if err := envconfig.Process(s.prefix, s.spec); err != nil {
			return fmt.Errorf("environment %s_*: %w", s.prefix, err)
		}
	}
	return nil
}

// EnsureUserConfig creates the user config file with defaults if it doesn't
// exist and returns its path
func (l *Loader) EnsureUserConfig() (string, error) {
	userConfigPath := l.userConfigPath()
	if userConfigPath == "" {
		return "", fmt.Errorf("cannot determine home directory")
	}

	// Check if it already exists
	if _, err := os.Stat(userConfigPath); err == nil {
		return userConfigPath, nil
	}

	// Create default config
	config := DefaultConfig()
	if err := config.SaveToFile(userConfigPath); err != nil {
		return "", err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return userConfigPath, nil
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for irta.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return ""
}
