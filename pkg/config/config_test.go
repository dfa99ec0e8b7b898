package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Crawl.Workers != 10 {
		t.Errorf("Expected default workers to be 10, got %d", config.Crawl.Workers)
	}

	if config.Crawl.MaxAttempts != 9 {
		t.Errorf("Expected default max attempts to be 9, got %d", config.Crawl.MaxAttempts)
	}

	assert.Equal(t, 10*time.Minute, config.Crawl.QuotaCooldown)
	assert.Equal(t, 15*time.Minute, config.Crawl.SeedQuotaCooldown)
	assert.Equal(t, 10, config.Crawl.QuotaAttempts)
	assert.Equal(t, "json", config.API.Format)
	assert.True(t, config.Crawl.CheckQuotaPerSeed)
	assert.NoError(t, config.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TWALER_API_BASE_URL", "http://localhost:8080/1")
	t.Setenv("TWALER_API_USERNAME", "crawler")
	t.Setenv("TWALER_API_PASSWORD", "secret")
	t.Setenv("TWALER_API_USE_AUTH", "true")
	t.Setenv("TWALER_WORKERS", "4")
	t.Setenv("TWALER_QUOTA_COOLDOWN", "90s")
	t.Setenv("TWALER_CACHE_DIR", "/tmp/twaler-cache")
	t.Setenv("TWALER_LOG_LEVEL", "debug")

	config := DefaultConfig()
	require.NoError(t, config.LoadFromEnv())

	assert.Equal(t, "http://localhost:8080/1", config.API.BaseURL)
	assert.Equal(t, "crawler", config.API.Username)
	assert.Equal(t, "secret", config.API.Password)
	assert.True(t, config.API.UseAuth)
	assert.Equal(t, 4, config.Crawl.Workers)
	assert.Equal(t, 90*time.Second, config.Crawl.QuotaCooldown)
	assert.Equal(t, "/tmp/twaler-cache", config.Cache.Dir)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("TWALER_WORKERS", "many")
	t.Setenv("TWALER_API_USE_AUTH", "perhaps")

	config := DefaultConfig()
	err := config.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TWALER_WORKERS")
	assert.Contains(t, err.Error(), "TWALER_API_USE_AUTH")
	assert.Equal(t, 10, config.Crawl.Workers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"zero workers", func(c *Config) { c.Crawl.Workers = 0 }, true},
		{"zero attempts", func(c *Config) { c.Crawl.MaxAttempts = 0 }, true},
		{"bad format", func(c *Config) { c.API.Format = "csv" }, true},
		{"relative base url", func(c *Config) { c.API.BaseURL = "api/1" }, true},
		{"negative gap", func(c *Config) { c.Crawl.ServerErrorGap = -time.Second }, true},
		{"invalid log level", func(c *Config) { c.Logging.Level = "invalid" }, true},
		{"xml format", func(c *Config) { c.API.Format = "xml" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  base_url: http://example.test/1
  format: xml
crawl:
  workers: 3
  server_error_gap: 250ms
  max_pages: 7
cache:
  dir: /data/cache
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config := DefaultConfig()
	require.NoError(t, config.LoadFromFile(path))

	assert.Equal(t, "http://example.test/1", config.API.BaseURL)
	assert.Equal(t, "xml", config.API.Format)
	assert.Equal(t, 3, config.Crawl.Workers)
	assert.Equal(t, 250*time.Millisecond, config.Crawl.ServerErrorGap)
	assert.Equal(t, 7, config.Crawl.MaxPages)
	assert.Equal(t, "/data/cache", config.Cache.Dir)
	assert.Equal(t, "warn", config.Logging.Level)
	// untouched keys keep their defaults
	assert.Equal(t, 9, config.Crawl.MaxAttempts)
}

func TestLoadFromTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[api]
base_url = "http://example.test/1"
use_auth = true

[crawl]
workers = 2
quota_cooldown = "30s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config := DefaultConfig()
	require.NoError(t, config.LoadFromFile(path))

	assert.True(t, config.API.UseAuth)
	assert.Equal(t, 2, config.Crawl.Workers)
	assert.Equal(t, 30*time.Second, config.Crawl.QuotaCooldown)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.yaml", "out.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			config := DefaultConfig()
			config.Crawl.Workers = 6
			require.NoError(t, config.Save(path))

			loaded := DefaultConfig()
			loaded.Crawl.Workers = 1
			require.NoError(t, loaded.LoadFromFile(path))
			assert.Equal(t, 6, loaded.Crawl.Workers)
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()
	config.MergeCommandLineFlags(map[string]interface{}{
		"workers":   5,
		"cache-dir": "/srv/cache",
		"use-auth":  true,
		"max-pages": 2,
		"log-level": "error",
	})

	assert.Equal(t, 5, config.Crawl.Workers)
	assert.Equal(t, "/srv/cache", config.Cache.Dir)
	assert.True(t, config.API.UseAuth)
	assert.Equal(t, 2, config.Crawl.MaxPages)
	assert.Equal(t, "error", config.Logging.Level)
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawl:\n  workers: 3\n  max_pages: 4\n"), 0644))
	t.Setenv("TWALER_WORKERS", "7")

	config, err := Load(path, map[string]interface{}{"max-pages": 9})
	require.NoError(t, err)

	assert.Equal(t, 7, config.Crawl.Workers, "env overrides file")
	assert.Equal(t, 9, config.Crawl.MaxPages, "flags override file")
}
