package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the guide-chat service.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Images    ImagesConfig    `mapstructure:"images"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	AppName  string `mapstructure:"app_name"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	Timezone string `mapstructure:"timezone"`
	// DefaultPlace is the geographic anchor assumed when a tool call
	// carries no coordinates and no place parameter.
	DefaultPlace string `mapstructure:"default_place"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address     string `mapstructure:"address"`
	AllowOrigin string `mapstructure:"allow_origin"`
	// ReadyBudget bounds the upstream ping performed by the readiness probe.
	ReadyBudget time.Duration `mapstructure:"ready_budget"`
}

// LLMConfig contains generation backend settings.
type LLMConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	Temperature   float64       `mapstructure:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout"`
	UseJSONSchema bool          `mapstructure:"use_json_schema"`
}

// ToolsConfig contains tool adapter settings.
type ToolsConfig struct {
	// Offline forces every adapter to return its deterministic stub
	// instead of calling any provider.
	Offline     bool          `mapstructure:"offline"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	// GlobalBudget caps the whole fan-out stage. Must be strictly larger
	// than CallTimeout; zero disables the global budget.
	GlobalBudget time.Duration `mapstructure:"global_budget"`
	Search       SearchConfig  `mapstructure:"search"`
	ForecastDays int           `mapstructure:"forecast_days"`
}

// SearchConfig selects the web search provider.
type SearchConfig struct {
	Provider   string `mapstructure:"provider"` // brave or serper
	APIKey     string `mapstructure:"api_key"`
	MaxResults int    `mapstructure:"max_results"`
}

// ImagesConfig contains image provider settings.
type ImagesConfig struct {
	// ProviderOrder is a comma separated fallback chain, e.g. "unsplash,pexels,generate".
	ProviderOrder   string        `mapstructure:"provider_order"`
	UnsplashKey     string        `mapstructure:"unsplash_key"`
	PexelsKey       string        `mapstructure:"pexels_key"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	PerQuery        int           `mapstructure:"per_query"`
}

// CacheConfig selects and tunes the shared TTL cache.
type CacheConfig struct {
	Backend string        `mapstructure:"backend"` // memory or redis
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig contains redis connection settings for the redis cache backend.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig contains monitoring settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Validate checks cross-field constraints that viper cannot express.
func (t ToolsConfig) Validate() error {
	if t.CallTimeout <= 0 {
		return fmt.Errorf("tools.call_timeout must be > 0")
	}
	if t.GlobalBudget > 0 && t.GlobalBudget <= t.CallTimeout {
		return fmt.Errorf("tools.global_budget (%s) must exceed tools.call_timeout (%s)", t.GlobalBudget, t.CallTimeout)
	}
	return nil
}

func (c CacheConfig) Validate() error {
	switch c.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Backend)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be > 0")
	}
	return nil
}

func (s SearchConfig) Validate() error {
	switch s.Provider {
	case "brave", "serper":
	default:
		return fmt.Errorf("tools.search.provider must be brave or serper, got %q", s.Provider)
	}
	return nil
}

// LoadConfig reads configuration from an optional file plus KINGFISHER_* env
// variables and applies defaults. A missing config file is not an error; a
// malformed one is fatal.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("general.app_name", "kingfisher")
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.timezone", "Australia/Sydney")
	v.SetDefault("general.default_place", "Clarence River, NSW")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.allow_origin", "http://localhost:3000")
	v.SetDefault("server.ready_budget", time.Second)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.4)
	v.SetDefault("llm.max_tokens", 1200)
	v.SetDefault("llm.timeout", 40*time.Second)
	v.SetDefault("llm.use_json_schema", true)
	v.SetDefault("tools.call_timeout", 10*time.Second)
	v.SetDefault("tools.global_budget", 25*time.Second)
	v.SetDefault("tools.forecast_days", 3)
	v.SetDefault("tools.search.provider", "brave")
	v.SetDefault("tools.search.max_results", 3)
	v.SetDefault("images.provider_order", "unsplash,pexels,generate")
	v.SetDefault("images.provider_timeout", 4*time.Second)
	v.SetDefault("images.per_query", 3)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 30*time.Minute)
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.redis.timeout", 5*time.Second)
	v.SetDefault("telemetry.enabled", true)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("KINGFISHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Tools.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Tools.Search.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Cache.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
