package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "QUIZFORGE"

type Config struct {
	Content      ContentConfig
	Model        ModelConfig
	Pricing      PricingConfig
	Logger       LoggerConfig
	Server       ServerConfig
	Redis        RedisConfig
	SessionStore SessionStoreConfig
	Settings     SettingsConfig
}

type ContentConfig struct {
	Root string
}

// ModelConfig holds the provider settings threaded into the ModelClient
// constructor and the generation values consumed by the engine.
type ModelConfig struct {
	Provider            string // "openai" or "ollama"
	Name                string
	APIKey              string
	BaseURL             string
	ContextWindow       int
	RequestDelaySeconds float64
	Timeout             time.Duration
	Temperature         float64
}

// RequestDelay converts RequestDelaySeconds to a duration.
func (m ModelConfig) RequestDelay() time.Duration {
	return time.Duration(m.RequestDelaySeconds * float64(time.Second))
}

// PricingConfig holds optional manual pricing in USD per one million tokens.
type PricingConfig struct {
	Enabled                   bool
	InputPerMillion           float64
	OutputPerMillion          float64
	ResponseTokensPerQuestion int
}

type LoggerConfig struct {
	Level string
	Env   string
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type SessionStoreConfig struct {
	Backend string // "memory" or "redis"
	TTL     time.Duration
}

type SettingsConfig struct {
	Path string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("content.root", "organized_content")
	v.SetDefault("model.provider", "openai")
	v.SetDefault("model.name", "gpt-4o-mini")
	v.SetDefault("model.base_url", "")
	v.SetDefault("model.context_window", 8192)
	v.SetDefault("model.request_delay_seconds", 1)
	v.SetDefault("model.timeout_seconds", 120)
	v.SetDefault("model.temperature", 0.7)
	v.SetDefault("pricing.enabled", false)
	v.SetDefault("pricing.input_per_million", 0.0)
	v.SetDefault("pricing.output_per_million", 0.0)
	v.SetDefault("pricing.response_tokens_per_question", 400)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.env", "development")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 20)
	v.SetDefault("server.write_timeout", 300)
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("session_store.backend", "memory")
	v.SetDefault("session_store.ttl_minutes", 240)
	v.SetDefault("settings.path", "settings.yaml")
}

// FlagKeys maps command line flag names to the config keys they override.
var FlagKeys = map[string]string{
	"content":        "content.root",
	"provider":       "model.provider",
	"model":          "model.name",
	"base-url":       "model.base_url",
	"context-window": "model.context_window",
	"delay":          "model.request_delay_seconds",
	"settings":       "settings.path",
	"log-level":      "logger.level",
}

// LoadConfig reads config.yaml from configPath (a file or a directory; empty
// means "." and "./configs") and overlays QUIZFORGE_* environment variables.
// A missing config file is not an error; defaults and the environment apply.
func LoadConfig(configPath string) (*Config, error) {
	return LoadConfigWithFlags(configPath, nil)
}

// LoadConfigWithFlags is LoadConfig with the flags named in FlagKeys bound on
// top; a flag only wins when it was set explicitly.
func LoadConfigWithFlags(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if configPath != "" && filepath.Ext(configPath) != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if configPath != "" {
			v.AddConfigPath(configPath)
		}
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if configFile := v.ConfigFileUsed(); configFile != "" {
		absPath, _ := filepath.Abs(configFile)
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", absPath)
	}

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Content: ContentConfig{
			Root: v.GetString("content.root"),
		},
		Model: ModelConfig{
			Provider:            strings.ToLower(v.GetString("model.provider")),
			Name:                v.GetString("model.name"),
			APIKey:              v.GetString("model.api_key"),
			BaseURL:             v.GetString("model.base_url"),
			ContextWindow:       v.GetInt("model.context_window"),
			RequestDelaySeconds: v.GetFloat64("model.request_delay_seconds"),
			Timeout:             time.Duration(v.GetInt("model.timeout_seconds")) * time.Second,
			Temperature:         v.GetFloat64("model.temperature"),
		},
		Pricing: PricingConfig{
			Enabled:                   v.GetBool("pricing.enabled"),
			InputPerMillion:           v.GetFloat64("pricing.input_per_million"),
			OutputPerMillion:          v.GetFloat64("pricing.output_per_million"),
			ResponseTokensPerQuestion: v.GetInt("pricing.response_tokens_per_question"),
		},
		Logger: LoggerConfig{
			Level: v.GetString("logger.level"),
			Env:   v.GetString("logger.env"),
		},
		Server: ServerConfig{
			Port:         v.GetInt("server.port"),
			ReadTimeout:  time.Duration(v.GetInt("server.read_timeout")) * time.Second,
			WriteTimeout: time.Duration(v.GetInt("server.write_timeout")) * time.Second,
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		SessionStore: SessionStoreConfig{
			Backend: strings.ToLower(v.GetString("session_store.backend")),
			TTL:     time.Duration(v.GetInt("session_store.ttl_minutes")) * time.Minute,
		},
		Settings: SettingsConfig{
			Path: v.GetString("settings.path"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the engine relies on.
func (c *Config) Validate() error {
	if c.Model.ContextWindow <= 0 {
		return fmt.Errorf("model.context_window must be positive, got %d", c.Model.ContextWindow)
	}
	if c.Model.RequestDelaySeconds < 0 {
		return fmt.Errorf("model.request_delay_seconds must not be negative, got %v", c.Model.RequestDelaySeconds)
	}
	if c.Pricing.InputPerMillion < 0 || c.Pricing.OutputPerMillion < 0 {
		return fmt.Errorf("pricing values must not be negative")
	}
	if c.Pricing.ResponseTokensPerQuestion <= 0 {
		return fmt.Errorf("pricing.response_tokens_per_question must be positive")
	}
	switch c.Model.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unsupported model.provider %q", c.Model.Provider)
	}
	switch c.SessionStore.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported session_store.backend %q", c.SessionStore.Backend)
	}
	return nil
}
