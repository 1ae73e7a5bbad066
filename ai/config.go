package ai

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backend names accepted in configuration.
const (
	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"
	StoreBackendFile   = "file"
)

// ModelConfig defines the configuration for a single LLM.
type ModelConfig struct {
	Name        string  `json:"name" yaml:"name"`                             // e.g., "gemini", "gpt-4"
	Provider    string  `json:"provider" yaml:"provider"`                     // e.g., "openai", "google", "anthropic"
	APIKey      string  `json:"api_key" yaml:"api_key"`                       // Environment variable reference ("env:NAME") or direct key
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"` // Optional: for custom endpoints
	ModelName   string  `json:"model_name" yaml:"model_name"`                 // The specific model ID (e.g., "gemini-2.5-flash")
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`                 // Max output tokens
	Temperature float64 `json:"temperature" yaml:"temperature"`               // Creativity
	TopP        float64 `json:"top_p" yaml:"top_p"`                           // Nucleus sampling
}

// RedisConfig carries connection settings for the durable backend.
type RedisConfig struct {
	Addr          string `json:"addr" yaml:"addr"`
	Password      string `json:"password,omitempty" yaml:"password,omitempty"` // Supports "env:NAME" indirection
	DB            int    `json:"db" yaml:"db"`
	HistoryPrefix string `json:"history_prefix,omitempty" yaml:"history_prefix,omitempty"`
	CounterKey    string `json:"counter_key,omitempty" yaml:"counter_key,omitempty"`
}

// StoreConfig selects and configures the history store backend.
type StoreConfig struct {
	Backend    string      `json:"backend" yaml:"backend"` // "memory", "redis" or "file"
	Redis      RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
	FileDir    string      `json:"file_dir,omitempty" yaml:"file_dir,omitempty"`        // File-backend history directory
	SessionTTL Duration    `json:"session_ttl,omitempty" yaml:"session_ttl,omitempty"` // Memory-backend idle eviction; 0 disables
}

// Config holds the global service configuration.
type Config struct {
	ListenAddr     string        `json:"listen_addr" yaml:"listen_addr"`
	AllowedOrigins []string      `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
	DefaultModel   string        `json:"default_model" yaml:"default_model"`
	Models         []ModelConfig `json:"models" yaml:"models"`
	Store          StoreConfig   `json:"store" yaml:"store"`
	Persona        string        `json:"persona" yaml:"persona"`
	Shots          []Shot        `json:"shots" yaml:"shots"`
}

// Duration wraps time.Duration so YAML values like "30m" parse directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// LoadConfig reads and parses the configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in values the file may omit.
func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = StoreBackendMemory
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Persona == "" {
		return fmt.Errorf("persona must not be empty")
	}
	if c.DefaultModel == "" {
		return fmt.Errorf("default_model must be set")
	}
	if c.FindModel(c.DefaultModel) == nil {
		return fmt.Errorf("default_model '%s' not found in models", c.DefaultModel)
	}
	switch c.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr must be set for the redis backend")
		}
	case StoreBackendFile:
		if c.Store.FileDir == "" {
			return fmt.Errorf("store.file_dir must be set for the file backend")
		}
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Backend)
	}
	return nil
}

// FindModel returns the model configuration with the given name, or nil.
func (c *Config) FindModel(name string) *ModelConfig {
	for i := range c.Models {
		if c.Models[i].Name == name {
			return &c.Models[i]
		}
	}
	return nil
}
