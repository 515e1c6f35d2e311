package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. MAILMANCTL_MAILMAN_PASSWORD
	EnvPrefix = "MAILMANCTL"

	maxConcurrency = 20
	maxWorkers     = 256
)

// Load loads the configuration from file and environment. A missing file is
// only an error when configPath is given explicitly.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".mailmanctl"))
		}

		// Check /etc
		v.AddConfigPath("/etc/mailmanctl/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Mailman defaults, matching a stock mailman-core install
	v.SetDefault("mailman.url", "http://localhost:8001/3.1/")
	v.SetDefault("mailman.username", "")
	v.SetDefault("mailman.password", "")
	v.SetDefault("mailman.timeout", "30s")
	v.SetDefault("mailman.page_size", 50)

	// Safety defaults
	v.SetDefault("safety.dry_run", false)
	v.SetDefault("safety.confirm", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)

	// Filter defaults
	v.SetDefault("filter.workers", 0)
	v.SetDefault("filter.cache_size", 100)

	v.SetDefault("bulk.concurrency", 4)
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.Mailman.URL == "" {
		return fmt.Errorf("mailman.url is required")
	}

	if (cfg.Mailman.Username == "") != (cfg.Mailman.Password == "") {
		return fmt.Errorf("mailman.username and mailman.password must be set together")
	}

	if cfg.Mailman.PageSize < 1 {
		return fmt.Errorf("mailman.page_size must be at least 1, got %d", cfg.Mailman.PageSize)
	}

	if cfg.Mailman.Timeout < 0 {
		return fmt.Errorf("mailman.timeout must not be negative")
	}

	// Validate logging level
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	for name, expression := range cfg.Filter.Presets {
		if strings.TrimSpace(expression) == "" {
			return fmt.Errorf("filter preset %q has an empty expression", name)
		}
	}

	if cfg.Filter.Workers < 0 || cfg.Filter.Workers > maxWorkers {
		return fmt.Errorf("filter.workers must be between 0 and %d, got %d", maxWorkers, cfg.Filter.Workers)
	}

	if cfg.Filter.CacheSize < 0 {
		return fmt.Errorf("filter.cache_size must not be negative, got %d", cfg.Filter.CacheSize)
	}

	if cfg.Bulk.Concurrency < 1 || cfg.Bulk.Concurrency > maxConcurrency {
		return fmt.Errorf("bulk.concurrency must be between 1 and %d, got %d", maxConcurrency, cfg.Bulk.Concurrency)
	}

	return nil
}
