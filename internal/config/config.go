// Package config handles agentfriend configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/agentfriend/config.yaml,
// /etc/agentfriend/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "agentfriend", "config.yaml"))
	}

	paths = append(paths, "/etc/agentfriend/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all agentfriend configuration. It is loaded once at startup
// and passed explicitly to the components that need it; nothing mutates it
// afterward.
type Config struct {
	Anthropic   AnthropicConfig `yaml:"anthropic"`
	Ethereum    EthereumConfig  `yaml:"ethereum"`
	Weather     WeatherConfig   `yaml:"weather"`
	Store       StoreConfig     `yaml:"store"`
	Agent       AgentConfig     `yaml:"agent"`
	PersonaFile string          `yaml:"persona_file"`
	LogLevel    string          `yaml:"log_level"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// EthereumConfig defines the blockchain RPC boundary.
type EthereumConfig struct {
	RPCURL  string `yaml:"rpc_url"`
	ChainID int64  `yaml:"chain_id"`
}

// WeatherConfig defines the weather lookup upstream.
// BaseURL defaults to the public wttr.in endpoint when empty.
type WeatherConfig struct {
	BaseURL string `yaml:"base_url"`
}

// StoreConfig defines conversation persistence settings.
type StoreConfig struct {
	// Path is the SQLite database file. Empty means conversations
	// are not persisted across restarts.
	Path string `yaml:"path"`
}

// AgentConfig tunes the turn-processing loop.
type AgentConfig struct {
	// MaxRounds caps model round-trips within a single user turn.
	// A turn that still has pending tool calls after MaxRounds fails.
	MaxRounds int `yaml:"max_rounds"`
	// HistoryWindow is how many recent turns are loaded as context.
	HistoryWindow int `yaml:"history_window"`
	// LLMTimeoutSec bounds each model request, in seconds.
	LLMTimeoutSec int `yaml:"llm_timeout_sec"`
}

// Defaults applied by Load when the file leaves fields unset.
const (
	DefaultModel         = "claude-sonnet-4-20250514"
	DefaultMaxTokens     = 1024
	DefaultMaxRounds     = 8
	DefaultHistoryWindow = 40
	DefaultLLMTimeout    = 120 * time.Second
)

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables so secrets can live outside the file.
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return cfg, nil
}

// Default returns a configuration with sane defaults and no credentials.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     DefaultModel,
			MaxTokens: DefaultMaxTokens,
		},
		Agent: AgentConfig{
			MaxRounds:     DefaultMaxRounds,
			HistoryWindow: DefaultHistoryWindow,
			LLMTimeoutSec: int(DefaultLLMTimeout / time.Second),
		},
	}
}

// LLMTimeout returns the model request timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	if c.Agent.LLMTimeoutSec <= 0 {
		return DefaultLLMTimeout
	}
	return time.Duration(c.Agent.LLMTimeoutSec) * time.Second
}

func (c *Config) applyDefaults() {
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = DefaultModel
	}
	if c.Anthropic.MaxTokens <= 0 {
		c.Anthropic.MaxTokens = DefaultMaxTokens
	}
	if c.Agent.MaxRounds <= 0 {
		c.Agent.MaxRounds = DefaultMaxRounds
	}
	if c.Agent.HistoryWindow <= 0 {
		c.Agent.HistoryWindow = DefaultHistoryWindow
	}
}

// Validate checks that required settings are present for running a chat.
func (c *Config) Validate() error {
	if c.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic.api_key is required")
	}
	return nil
}
