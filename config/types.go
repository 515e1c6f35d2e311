package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	Mailman MailmanConfig `mapstructure:"mailman"`
	Filter  FilterConfig  `mapstructure:"filter"`
	Safety  SafetyConfig  `mapstructure:"safety"`
	Logging LoggingConfig `mapstructure:"logging"`
	Bulk    BulkConfig    `mapstructure:"bulk"`
}

// MailmanConfig holds the REST API connection details
type MailmanConfig struct {
	URL      string        `mapstructure:"url"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
	PageSize int           `mapstructure:"page_size"`
}

// HasCredentials reports whether basic auth is configured
func (m MailmanConfig) HasCredentials() bool {
	return m.Username != "" && m.Password != ""
}

// FilterConfig contains named filter expressions and evaluation tuning.
// Preset names are lower-cased by viper.
type FilterConfig struct {
	Presets   map[string]string `mapstructure:"presets"`
	Workers   int               `mapstructure:"workers"`    // 0 uses every CPU
	CacheSize int               `mapstructure:"cache_size"` // 0 disables the compiled filter cache
}

// SafetyConfig contains safety-related settings
type SafetyConfig struct {
	DryRun  bool `mapstructure:"dry_run"`
	Confirm bool `mapstructure:"confirm"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}

// BulkConfig controls parallelism of bulk moderation commands
type BulkConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}
