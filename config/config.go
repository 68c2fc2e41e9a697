// Package config loads the voxmux configuration from YAML and builds
// the routing core from it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voxmux/voxmux/credentials"
	"github.com/voxmux/voxmux/types"
)

// Config is the top-level voxmux configuration.
type Config struct {
	// Backends lists every speech and chat engine the router may use.
	Backends []BackendConfig `yaml:"backends"`

	// Cache configures the response cache.
	Cache CacheConfig `yaml:"cache,omitempty"`

	// Conversation configures per-session chat history.
	Conversation ConversationConfig `yaml:"conversation,omitempty"`

	// Router configures failover behavior.
	Router RouterConfig `yaml:"router,omitempty"`

	// Metrics configures the Prometheus exporter. Empty address
	// disables the exporter.
	Metrics MetricsConfig `yaml:"metrics,omitempty"`

	// Telemetry configures OTLP trace export. Empty endpoint disables
	// tracing.
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`

	// ConfigDir is the directory the config file was loaded from.
	// Relative credential file paths resolve against it.
	ConfigDir string `yaml:"-"`
}

// BackendConfig describes one engine registration.
type BackendConfig struct {
	// Type selects the provider implementation ("openai", "ollama",
	// "elevenlabs", "cartesia", "azure", "polly", "google", "fallback",
	// "mock").
	Type string `yaml:"type"`

	// Name uniquely identifies the backend.
	Name string `yaml:"name"`

	// Capability is "stt", "tts", or "chat".
	Capability string `yaml:"capability"`

	// Locality is "local" or "cloud". Defaults by type when omitted.
	Locality string `yaml:"locality,omitempty"`

	// Priority orders backends within a capability; lower tries first.
	Priority int `yaml:"priority,omitempty"`

	// DailyLimit caps successful invocations per UTC day. 0 = unlimited.
	DailyLimit int `yaml:"daily_limit,omitempty"`

	// RPS throttles invocation attempts per second. 0 = unthrottled.
	RPS float64 `yaml:"rps,omitempty"`

	// Burst is the throttle burst size.
	Burst int `yaml:"burst,omitempty"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url,omitempty"`

	// Model is the default model. "google" backends put the language
	// code here; "polly" backends the synthesis engine.
	Model string `yaml:"model,omitempty"`

	// Voice is the default synthesis voice.
	Voice string `yaml:"voice,omitempty"`

	// Reply is the canned response for the fallback chat provider.
	Reply string `yaml:"reply,omitempty"`

	// Key configures API key resolution.
	Key *credentials.KeySource `yaml:"key,omitempty"`

	// Cloud selects a cloud SDK credential chain instead of a key.
	Cloud *credentials.CloudConfig `yaml:"cloud,omitempty"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	// TTL is the entry lifetime, e.g. "1h". Defaults to the router's
	// cache TTL when empty.
	TTL string `yaml:"ttl,omitempty"`

	// MaxEntries bounds the in-memory cache. 0 uses the default.
	MaxEntries int `yaml:"max_entries,omitempty"`

	// Redis, when set, selects a Redis-backed cache instead of the
	// in-memory one.
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig points at a Redis server.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// ConversationConfig configures per-session chat history.
type ConversationConfig struct {
	// MaxMessages bounds the retained history per session.
	MaxMessages int `yaml:"max_messages,omitempty"`

	// MaxIdle evicts sessions idle longer than this, e.g. "30m".
	MaxIdle string `yaml:"max_idle,omitempty"`

	// Redis, when set, snapshots session history to Redis so it
	// survives restarts.
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

// RouterConfig configures failover behavior.
type RouterConfig struct {
	// CallTimeout bounds each backend invocation, e.g. "30s".
	CallTimeout string `yaml:"call_timeout,omitempty"`

	// Cooldown is how long a failed backend stays out of rotation.
	Cooldown string `yaml:"cooldown,omitempty"`

	// MaxConcurrent caps in-flight backend invocations.
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	// Addr is the listen address, e.g. ":9090".
	Addr string `yaml:"addr,omitempty"`
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	// Endpoint is the OTLP/HTTP collector URL.
	Endpoint string `yaml:"endpoint,omitempty"`

	// ServiceName overrides the reported service.name.
	ServiceName string `yaml:"service_name,omitempty"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ConfigDir = filepath.Dir(path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	if len(c.Backends) == 0 {
		return fmt.Errorf("no backends configured")
	}

	seen := make(map[string]bool, len(c.Backends))
	for i := range c.Backends {
		b := &c.Backends[i]
		if b.Type == "" {
			return fmt.Errorf("backend %d: missing required field: type", i)
		}
		if b.Name == "" {
			return fmt.Errorf("backend %d: missing required field: name", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("backend %q: duplicate name", b.Name)
		}
		seen[b.Name] = true

		if !types.Capability(b.Capability).Valid() {
			return fmt.Errorf("backend %q: invalid capability %q", b.Name, b.Capability)
		}
		switch b.Locality {
		case "", string(types.LocalityLocal), string(types.LocalityCloud):
		default:
			return fmt.Errorf("backend %q: invalid locality %q", b.Name, b.Locality)
		}
		if b.DailyLimit < 0 {
			return fmt.Errorf("backend %q: daily_limit must not be negative", b.Name)
		}
		if b.RPS < 0 {
			return fmt.Errorf("backend %q: rps must not be negative", b.Name)
		}
	}

	for field, v := range map[string]string{
		"cache.ttl":             c.Cache.TTL,
		"conversation.max_idle": c.Conversation.MaxIdle,
		"router.call_timeout":   c.Router.CallTimeout,
		"router.cooldown":       c.Router.Cooldown,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s duration %q: %w", field, v, err)
		}
	}

	return nil
}

// locality returns the configured locality, defaulting by type.
func (b *BackendConfig) locality() types.Locality {
	if b.Locality != "" {
		return types.Locality(b.Locality)
	}
	switch b.Type {
	case "ollama", "fallback", "mock":
		return types.LocalityLocal
	}
	return types.LocalityCloud
}

func parseDuration(v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
