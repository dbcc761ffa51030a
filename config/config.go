// Package config provides configuration management for the gateway.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks for the YAML file when the caller has no preference.
const DefaultPath = "config/config.yaml"

// Config holds the gateway configuration. It is treated as immutable once loaded;
// a reload produces a new Config that is handed to Gateway.Initialize.
type Config struct {
	Providers  map[string]ProviderEntry `yaml:"providers"`
	Models     ModelsConfig             `yaml:"models"`
	Async      AsyncConfig              `yaml:"async"`
	Resilience ResilienceConfig         `yaml:"resilience"`
	Logging    LogConfig                `yaml:"logging"`
	Metrics    MetricsConfig            `yaml:"metrics"`
	Jobs       JobsConfig               `yaml:"jobs"`
}

// ProviderEntry holds the credential and optional endpoint override for one vendor.
type ProviderEntry struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// ModelsConfig names the default models served by Gateway.TextProvider and ImageProvider.
type ModelsConfig struct {
	Text  string `yaml:"text"`
	Image string `yaml:"image"`
}

// AsyncConfig holds defaults for the submit-then-poll image vendor.
type AsyncConfig struct {
	Model           string        `yaml:"model"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxPollAttempts int           `yaml:"max_poll_attempts"`
}

// ResilienceConfig groups retry and circuit breaker settings for synchronous vendors.
type ResilienceConfig struct {
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// RetryConfig controls retries of retryable HTTP statuses (429, 502, 503, 504).
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	BackoffFactor  float64       `yaml:"backoff_factor"`
	JitterFactor   float64       `yaml:"jitter_factor"`
}

// CircuitBreakerConfig holds circuit breaker settings
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is "json" or "text" (colourised when attached to a terminal)
	Format string `yaml:"format"`
}

// MetricsConfig toggles Prometheus instrumentation.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// JobsConfig selects the journal backend for asynchronous image jobs.
type JobsConfig struct {
	// Store is "none", "memory" or "redis"
	Store string `yaml:"store"`
	// TTL is how long an entry survives after its last update, in every backend
	TTL   time.Duration `yaml:"ttl"`
	Redis RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
}

// Credential returns the API key configured for a vendor type, or "".
func (c *Config) Credential(vendor string) string {
	if c == nil {
		return ""
	}
	return c.Providers[vendor].APIKey
}

// BaseURL returns the endpoint override configured for a vendor type, or "".
func (c *Config) BaseURL(vendor string) string {
	if c == nil {
		return ""
	}
	return c.Providers[vendor].BaseURL
}

// knownProviderEnvs maps vendor types to their environment variables.
var knownProviderEnvs = []struct {
	vendor     string
	apiKeyEnv  string
	baseURLEnv string
}{
	{"openai", "OPENAI_API_KEY", "OPENAI_BASE_URL"},
	{"anthropic", "ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL"},
	{"bfl", "BFL_API_KEY", "BFL_BASE_URL"},
}

// CredentialEnv returns the environment variable that supplies a vendor's API key.
func CredentialEnv(vendor string) string {
	for _, kp := range knownProviderEnvs {
		if kp.vendor == vendor {
			return kp.apiKeyEnv
		}
	}
	return strings.ToUpper(vendor) + "_API_KEY"
}

// Load reads .env (optional), the YAML file at path (optional) and environment
// overrides, in that order of increasing precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := buildDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// env-only configuration
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal([]byte(expandString(string(data))), cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	cfg.dropUnresolvedCredentials()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildDefaultConfig returns a Config populated with defaults.
func buildDefaultConfig() *Config {
	return &Config{
		Providers: make(map[string]ProviderEntry),
		Models: ModelsConfig{
			Text:  "gpt-4o-mini",
			Image: "dall-e-3",
		},
		Async: AsyncConfig{
			Model:           "flux-pro-1.1",
			PollInterval:    5 * time.Second,
			MaxPollAttempts: 60,
		},
		Resilience: ResilienceConfig{
			Retry: RetryConfig{
				MaxRetries:     0,
				InitialBackoff: time.Second,
				MaxBackoff:     30 * time.Second,
				BackoffFactor:  2.0,
				JitterFactor:   0.1,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Namespace: "gengateway",
		},
		Jobs: JobsConfig{
			Store: "memory",
			TTL:   24 * time.Hour,
			Redis: RedisConfig{
				Key: "gengateway:jobs",
			},
		},
	}
}

// applyDefaults restores defaults for fields the YAML zeroed out.
func (c *Config) applyDefaults() {
	d := buildDefaultConfig()
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderEntry)
	}
	if c.Async.PollInterval <= 0 {
		c.Async.PollInterval = d.Async.PollInterval
	}
	if c.Async.MaxPollAttempts <= 0 {
		c.Async.MaxPollAttempts = d.Async.MaxPollAttempts
	}
	if c.Async.Model == "" {
		c.Async.Model = d.Async.Model
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = d.Metrics.Namespace
	}
	if c.Jobs.Store == "" {
		c.Jobs.Store = d.Jobs.Store
	}
	if c.Jobs.Redis.Key == "" {
		c.Jobs.Redis.Key = d.Jobs.Redis.Key
	}
	if c.Jobs.TTL <= 0 {
		c.Jobs.TTL = d.Jobs.TTL
	}
}

// dropUnresolvedCredentials blanks API keys still holding a ${VAR} placeholder,
// so the gateway reports them as missing instead of sending them upstream.
func (c *Config) dropUnresolvedCredentials() {
	for name, p := range c.Providers {
		if strings.Contains(p.APIKey, "${") {
			p.APIKey = ""
			c.Providers[name] = p
		}
	}
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	switch c.Jobs.Store {
	case "none", "memory":
	case "redis":
		if c.Jobs.Redis.URL == "" {
			return fmt.Errorf("jobs.redis.url is required when jobs.store is redis")
		}
	default:
		return fmt.Errorf("jobs.store must be none, memory or redis, got %q", c.Jobs.Store)
	}
	if c.Resilience.Retry.MaxRetries < 0 {
		return fmt.Errorf("resilience.retry.max_retries must not be negative")
	}
	return nil
}

// applyEnvOverrides overlays well-known environment variables onto cfg.
// Env var values always win over YAML values.
func applyEnvOverrides(cfg *Config) error {
	for _, kp := range knownProviderEnvs {
		apiKey := os.Getenv(kp.apiKeyEnv)
		baseURL := os.Getenv(kp.baseURLEnv)
		if apiKey == "" && baseURL == "" {
			continue
		}
		entry := cfg.Providers[kp.vendor]
		if apiKey != "" {
			entry.APIKey = apiKey
		}
		if baseURL != "" {
			entry.BaseURL = baseURL
		}
		cfg.Providers[kp.vendor] = entry
	}

	setString(&cfg.Models.Text, "GENGATEWAY_TEXT_MODEL")
	setString(&cfg.Models.Image, "GENGATEWAY_IMAGE_MODEL")
	setString(&cfg.Async.Model, "GENGATEWAY_ASYNC_MODEL")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Jobs.Store, "JOBS_STORE")
	setString(&cfg.Jobs.Redis.URL, "REDIS_URL")

	if v := os.Getenv("GENGATEWAY_POLL_INTERVAL"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid GENGATEWAY_POLL_INTERVAL: %w", err)
		}
		cfg.Async.PollInterval = d
	}
	if v := os.Getenv("GENGATEWAY_MAX_POLL_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid GENGATEWAY_MAX_POLL_ATTEMPTS: %w", err)
		}
		cfg.Async.MaxPollAttempts = n
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid METRICS_ENABLED: %w", err)
		}
		cfg.Metrics.Enabled = b
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// parseDuration accepts plain integers (seconds) or Go duration strings.
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString resolves ${VAR} and ${VAR:-default} placeholders.
// A placeholder without default whose variable is unset or empty is left as is.
func expandString(s string) string {
	if s == "" {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		if v := os.Getenv(groups[1]); v != "" {
			return v
		}
		if groups[2] != "" {
			return groups[3]
		}
		return match
	})
}
