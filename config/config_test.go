package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func validConfig() *Config {
	return &Config{
		Mailman: MailmanConfig{
			URL:      "http://localhost:8001/3.1/",
			Username: "restadmin",
			Password: "restpass",
			PageSize: 50,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Bulk:    BulkConfig{Concurrency: 4},
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
mailman:
  url: https://lists.example.com/3.1/
  username: restadmin
  password: restpass
  timeout: 10s
filter:
  presets:
    stale: 'hold_date < daysAgo(30)'
    spammy: 'sender~:"@spam\."'
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://lists.example.com/3.1/", cfg.Mailman.URL)
	assert.Equal(t, 10*time.Second, cfg.Mailman.Timeout)
	assert.Equal(t, 50, cfg.Mailman.PageSize)
	assert.True(t, cfg.Mailman.HasCredentials())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.True(t, cfg.Safety.Confirm)
	assert.Equal(t, 4, cfg.Bulk.Concurrency)
	assert.Len(t, cfg.Filter.Presets, 2)
	assert.Equal(t, "hold_date < daysAgo(30)", cfg.Filter.Presets["stale"])
	assert.Equal(t, 0, cfg.Filter.Workers)
	assert.Equal(t, 100, cfg.Filter.CacheSize)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `
mailman:
  username: restadmin
  password: placeholder
`)
	t.Setenv("MAILMANCTL_MAILMAN_PASSWORD", "from-env")
	t.Setenv("MAILMANCTL_BULK_CONCURRENCY", "8")
	t.Setenv("MAILMANCTL_FILTER_WORKERS", "2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Mailman.Password)
	assert.Equal(t, 8, cfg.Bulk.Concurrency)
	assert.Equal(t, 2, cfg.Filter.Workers)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "error reading config")
}

func TestLoadInvalid(t *testing.T) {
	path := writeConfig(t, `
mailman:
  username: restadmin
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "must be set together")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:   "anonymous",
			mutate: func(c *Config) { c.Mailman.Username, c.Mailman.Password = "", "" },
		},
		{
			name:        "missing url",
			mutate:      func(c *Config) { c.Mailman.URL = "" },
			errContains: "mailman.url is required",
		},
		{
			name:        "password without username",
			mutate:      func(c *Config) { c.Mailman.Username = "" },
			errContains: "must be set together",
		},
		{
			name:        "zero page size",
			mutate:      func(c *Config) { c.Mailman.PageSize = 0 },
			errContains: "page_size",
		},
		{
			name:        "bad level",
			mutate:      func(c *Config) { c.Logging.Level = "loud" },
			errContains: "invalid logging level",
		},
		{
			name:        "bad format",
			mutate:      func(c *Config) { c.Logging.Format = "xml" },
			errContains: "invalid logging format",
		},
		{
			name:        "empty preset",
			mutate:      func(c *Config) { c.Filter.Presets = map[string]string{"blank": "  "} },
			errContains: `filter preset "blank"`,
		},
		{
			name:        "negative workers",
			mutate:      func(c *Config) { c.Filter.Workers = -1 },
			errContains: "filter.workers",
		},
		{
			name:        "negative cache size",
			mutate:      func(c *Config) { c.Filter.CacheSize = -5 },
			errContains: "filter.cache_size",
		},
		{
			name:        "concurrency too high",
			mutate:      func(c *Config) { c.Bulk.Concurrency = 21 },
			errContains: "bulk.concurrency",
		},
		{
			name:        "concurrency zero",
			mutate:      func(c *Config) { c.Bulk.Concurrency = 0 },
			errContains: "bulk.concurrency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := validate(cfg)
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errContains)
		})
	}
}
