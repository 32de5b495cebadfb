// Package config loads server configuration from an optional YAML file and
// the environment. Environment variables win over file values.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	OpenAI OpenAIConfig `yaml:"openai"`
}

// ServerConfig covers the HTTP/WebSocket listener.
type ServerConfig struct {
	Addr string `yaml:"addr" envconfig:"ADDR"`
}

// LogConfig covers the zerolog setup.
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"` // console or json
}

// OpenAIConfig covers the assist endpoint's chat model. APIKey empty means
// the endpoint answers every question with a configuration error; the sync
// core is unaffected.
type OpenAIConfig struct {
	APIKey      string  `yaml:"api_key" envconfig:"OPENAI_API_KEY"`
	BaseURL     string  `yaml:"base_url" envconfig:"OPENAI_BASE_URL"`
	Model       string  `yaml:"model" envconfig:"OPENAI_MODEL"`
	MaxTokens   int     `yaml:"max_tokens" envconfig:"OPENAI_MAX_TOKENS"`
	Temperature float32 `yaml:"temperature" envconfig:"OPENAI_TEMPERATURE"`
}

// Load reads the YAML file at path (if path is non-empty), applies
// environment overrides, then fills remaining gaps with defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment configuration: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":4000"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.MaxTokens == 0 {
		c.OpenAI.MaxTokens = 2048
	}
}
