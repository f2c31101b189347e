// Package config loads and validates the process configuration from a YAML
// file. Environment references in the file ($VAR or ${VAR}) are expanded
// once at load; nothing else in the process reads the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/ratelimit"
	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/tools"
)

// Duration is a time.Duration that parses Go duration strings ("30s",
// "2m") in YAML.
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the root configuration structure.
type Config struct {
	Discord   DiscordConfig   `yaml:"discord"`
	Provider  ProviderConfig  `yaml:"provider"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Tools     ToolsConfig     `yaml:"tools"`
	Prompt    PromptConfig    `yaml:"prompt"`
	Engine    EngineConfig    `yaml:"engine"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// DiscordConfig configures the gateway connection and coarse access gates.
type DiscordConfig struct {
	Token           string   `yaml:"token"`
	Prefix          string   `yaml:"prefix"`
	RequiredRoleID  string   `yaml:"required_role_id"`
	AllowedChannels []string `yaml:"allowed_channels"`
	LogChannelID    string   `yaml:"log_channel_id"`
}

// ProviderConfig selects and configures the model backend.
type ProviderConfig struct {
	// Name is "anthropic" or "openai".
	Name    string `yaml:"name"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// RateLimitConfig configures per-user request quotas.
type RateLimitConfig struct {
	Default ratelimit.Policy            `yaml:"default"`
	PerUser map[string]ratelimit.Policy `yaml:"per_user"`
}

// ToolsConfig configures the safety gate over the tool catalog.
type ToolsConfig struct {
	// Cap is the highest safety tier exposed to non-admin users:
	// "low", "mid", or "high". Defaults to "high".
	Cap string `yaml:"cap"`

	// AdminBypass exposes the full catalog to administrators regardless
	// of the cap.
	AdminBypass bool `yaml:"admin_bypass"`
}

// CapTier returns the parsed safety cap. Validate rejects names ParseTier
// does not recognize, so the parse cannot fail after a successful load.
func (c ToolsConfig) CapTier() tools.SafetyTier {
	tier, _ := tools.ParseTier(c.Cap)
	return tier
}

// PromptConfig configures prompt assembly.
type PromptConfig struct {
	SystemOverride string   `yaml:"system_override"`
	Rules          []string `yaml:"rules"`
}

// EngineConfig configures the model run loop.
type EngineConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	MaxSteps      int           `yaml:"max_steps"`
	Temperature   float64       `yaml:"temperature"`
	MaxTokens     int           `yaml:"max_tokens"`
	HandleTimeout Duration `yaml:"handle_timeout"`
}

// LoggingConfig configures the console log sink.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Load reads, expands, parses, and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates raw YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and applies defaults.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord.token is required")
	}

	switch c.Provider.Name {
	case "":
		c.Provider.Name = "anthropic"
	case "anthropic", "openai":
	default:
		return fmt.Errorf("provider.name must be anthropic or openai, got %q", c.Provider.Name)
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider.api_key is required")
	}

	if c.Tools.Cap == "" {
		c.Tools.Cap = "high"
	}
	if _, err := tools.ParseTier(c.Tools.Cap); err != nil {
		return fmt.Errorf("tools.cap: %w", err)
	}

	if c.RateLimit.Default.Limit == 0 {
		c.RateLimit.Default.Limit = 5
	}
	if c.RateLimit.Default.Window == 0 {
		c.RateLimit.Default.Window = time.Minute
	}

	if c.Engine.MaxRetries == 0 {
		c.Engine.MaxRetries = 2
	}
	if c.Engine.MaxSteps == 0 {
		c.Engine.MaxSteps = 5
	}
	if c.Engine.MaxTokens == 0 {
		c.Engine.MaxTokens = 400
	}
	if c.Engine.HandleTimeout == 0 {
		c.Engine.HandleTimeout = Duration(2 * time.Minute)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}

	return nil
}
