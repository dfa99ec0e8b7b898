package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "TWALER_"

// Config holds all configuration options for the crawler
type Config struct {
	// Remote API and credentials
	API APIConfig `yaml:"api" toml:"api"`

	// Worker pool, retry and quota policy
	Crawl CrawlConfig `yaml:"crawl" toml:"crawl"`

	// On-disk cache and run ledger
	Cache CacheConfig `yaml:"cache" toml:"cache"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// APIConfig holds remote API settings
type APIConfig struct {
	BaseURL   string        `yaml:"base_url" toml:"base_url"`
	Format    string        `yaml:"format" toml:"format"`
	Username  string        `yaml:"username" toml:"username"`
	Password  string        `yaml:"password" toml:"password"`
	UseAuth   bool          `yaml:"use_auth" toml:"use_auth"`
	Account   string        `yaml:"account" toml:"account"`
	UserAgent string        `yaml:"user_agent" toml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" toml:"timeout"`
	// GzipAll asks for gzip on every kind, not only timelines
	GzipAll bool `yaml:"gzip_all" toml:"gzip_all"`
}

// CrawlConfig holds worker and retry policy
type CrawlConfig struct {
	Workers            int           `yaml:"workers" toml:"workers"`
	MaxAttempts        int           `yaml:"max_attempts" toml:"max_attempts"`
	ServerErrorGap     time.Duration `yaml:"server_error_gap" toml:"server_error_gap"`
	NetworkErrorGap    time.Duration `yaml:"network_error_gap" toml:"network_error_gap"`
	ConnectionErrorGap time.Duration `yaml:"connection_error_gap" toml:"connection_error_gap"`
	QuotaCooldown      time.Duration `yaml:"quota_cooldown" toml:"quota_cooldown"`
	SeedQuotaCooldown  time.Duration `yaml:"seed_quota_cooldown" toml:"seed_quota_cooldown"`
	QuotaAttempts      int           `yaml:"quota_attempts" toml:"quota_attempts"`
	QuotaRetryGap      time.Duration `yaml:"quota_retry_gap" toml:"quota_retry_gap"`
	CheckQuotaPerSeed  bool          `yaml:"check_quota_per_seed" toml:"check_quota_per_seed"`
	MaxReauth          int           `yaml:"max_reauth" toml:"max_reauth"`
	MaxPages           int           `yaml:"max_pages" toml:"max_pages"`
	RequestsPerMinute  int           `yaml:"requests_per_minute" toml:"requests_per_minute"`
}

// CacheConfig holds cache directory configuration
type CacheConfig struct {
	// Dir is the parent of per-run instance directories
	Dir        string `yaml:"dir" toml:"dir"`
	Ledger     bool   `yaml:"ledger" toml:"ledger"`
	LedgerFile string `yaml:"ledger_file" toml:"ledger_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	MaxSize    int    `yaml:"max_size" toml:"max_size"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAge     int    `yaml:"max_age" toml:"max_age"`
	Compress   bool   `yaml:"compress" toml:"compress"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "http://api.twitter.com/1",
			Format:    "json",
			UserAgent: "twaler/1.0",
			Timeout:   60 * time.Second,
		},
		Crawl: CrawlConfig{
			Workers:            10,
			MaxAttempts:        9,
			ServerErrorGap:     2 * time.Second,
			NetworkErrorGap:    5 * time.Second,
			ConnectionErrorGap: 10 * time.Second,
			QuotaCooldown:      10 * time.Minute,
			SeedQuotaCooldown:  15 * time.Minute,
			QuotaAttempts:      10,
			QuotaRetryGap:      10 * time.Second,
			CheckQuotaPerSeed:  true,
			MaxReauth:          1,
		},
		Cache: CacheConfig{
			Dir:        filepath.Join(xdg.DataHome, "twaler", "cache"),
			Ledger:     true,
			LedgerFile: "crawl.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    1,
			MaxBackups: 50,
			MaxAge:     0,
			Compress:   false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	flag := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("API_BASE_URL", &c.API.BaseURL)
	str("API_FORMAT", &c.API.Format)
	str("API_USERNAME", &c.API.Username)
	str("API_PASSWORD", &c.API.Password)
	str("API_ACCOUNT", &c.API.Account)
	str("USER_AGENT", &c.API.UserAgent)
	flag("API_USE_AUTH", &c.API.UseAuth)
	dur("API_TIMEOUT", &c.API.Timeout)

	num("WORKERS", &c.Crawl.Workers)
	num("MAX_ATTEMPTS", &c.Crawl.MaxAttempts)
	num("MAX_PAGES", &c.Crawl.MaxPages)
	num("REQUESTS_PER_MINUTE", &c.Crawl.RequestsPerMinute)
	flag("CHECK_QUOTA_PER_SEED", &c.Crawl.CheckQuotaPerSeed)
	dur("QUOTA_COOLDOWN", &c.Crawl.QuotaCooldown)

	str("CACHE_DIR", &c.Cache.Dir)
	flag("LEDGER", &c.Cache.Ledger)

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML or TOML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".twaler.yaml",
		".twaler.yml",
		".twaler.toml",
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	for _, name := range []string{"config.yaml", "config.yml", "config.toml"} {
		if p, err := xdg.SearchConfigFile(filepath.Join("twaler", name)); err == nil {
			return p
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api base URL is required"))
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api base URL %q is not an absolute URL", c.API.BaseURL))
	}
	switch c.API.Format {
	case "json", "xml":
	default:
		errs = append(errs, fmt.Errorf("api format must be json or xml, got %q", c.API.Format))
	}
	if c.API.Timeout < 0 {
		errs = append(errs, errors.New("api timeout cannot be negative"))
	}

	if c.Crawl.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Crawl.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max attempts must be positive"))
	}
	if c.Crawl.QuotaAttempts <= 0 {
		errs = append(errs, errors.New("quota attempts must be positive"))
	}
	if c.Crawl.MaxReauth < 0 {
		errs = append(errs, errors.New("max reauth cannot be negative"))
	}
	if c.Crawl.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}
	if c.Crawl.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	for name, d := range map[string]time.Duration{
		"server error gap":     c.Crawl.ServerErrorGap,
		"network error gap":    c.Crawl.NetworkErrorGap,
		"connection error gap": c.Crawl.ConnectionErrorGap,
		"quota cooldown":       c.Crawl.QuotaCooldown,
		"seed quota cooldown":  c.Crawl.SeedQuotaCooldown,
		"quota retry gap":      c.Crawl.QuotaRetryGap,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s cannot be negative", name))
		}
	}

	if c.Cache.Dir == "" {
		errs = append(errs, errors.New("cache directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.ToLower(filepath.Ext(path)) == ".toml" {
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(c)
		data = []byte(sb.String())
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := flags["format"].(string); ok && v != "" {
		c.API.Format = v
	}
	if v, ok := flags["account"].(string); ok && v != "" {
		c.API.Account = v
	}
	if v, ok := flags["use-auth"].(bool); ok {
		c.API.UseAuth = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Crawl.Workers = v
	}
	if v, ok := flags["max-pages"].(int); ok && v >= 0 {
		c.Crawl.MaxPages = v
	}
	if v, ok := flags["requests-per-minute"].(int); ok && v >= 0 {
		c.Crawl.RequestsPerMinute = v
	}
	if v, ok := flags["check-quota"].(bool); ok {
		c.Crawl.CheckQuotaPerSeed = v
	}
	if v, ok := flags["cache-dir"].(string); ok && v != "" {
		c.Cache.Dir = v
	}
	if v, ok := flags["ledger"].(bool); ok {
		c.Cache.Ledger = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are not an error
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(xdg.ConfigHome, "twaler", "twaler.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
