package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/jackzampolin/tabula/internal/providers"
)

// Config holds tabula configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Profiles map[string]ProfileCfg `mapstructure:"profiles" yaml:"profiles"`
	Defaults RunCfg                `mapstructure:"defaults" yaml:"defaults"`
}

// ProfileCfg configures one model endpoint preset.
type ProfileCfg struct {
	Type           string `mapstructure:"type" yaml:"type"`                       // "openai" or "gemini"
	Label          string `mapstructure:"label" yaml:"label"`                     // Display name
	BaseURL        string `mapstructure:"base_url" yaml:"base_url,omitempty"`     // Endpoint root (openai type)
	Model          string `mapstructure:"model" yaml:"model"`                     // Model name
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`                 // API key (supports ${ENV_VAR} syntax)
	RateLimit      int    `mapstructure:"rate_limit" yaml:"rate_limit"`           // Requests per minute, 0 = unlimited
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // Per-request HTTP timeout
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
}

// RunCfg holds the defaults a run falls back to when a flag is not set.
type RunCfg struct {
	Profile      string `mapstructure:"profile" yaml:"profile"`
	Concurrency  int    `mapstructure:"concurrency" yaml:"concurrency"`
	MaxRetries   int    `mapstructure:"max_retries" yaml:"max_retries"`
	Delimiter    string `mapstructure:"delimiter" yaml:"delimiter"`
	OutputColumn string `mapstructure:"output_column" yaml:"output_column"`
	Template     string `mapstructure:"template" yaml:"template"` // Saved template name, empty = built-in
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Profiles: map[string]ProfileCfg{
			"deepseek-chat": {
				Type:           providers.TypeOpenAI,
				Label:          "DeepSeek (deepseek-chat)",
				BaseURL:        "https://api.deepseek.com",
				Model:          "deepseek-chat",
				APIKey:         "${DEEPSEEK_API_KEY}",
				TimeoutSeconds: 120,
				Enabled:        true,
			},
			"siliconflow-glm-4.7": {
				Type:           providers.TypeOpenAI,
				Label:          "SiliconFlow GLM-4.7",
				BaseURL:        "https://api.siliconflow.cn/v1",
				Model:          "Pro/zai-org/GLM-4.7",
				APIKey:         "${SILICONFLOW_API_KEY}",
				TimeoutSeconds: 120,
				Enabled:        true,
			},
			"siliconflow-deepseek-r1-qwen-7b": {
				Type:           providers.TypeOpenAI,
				Label:          "SiliconFlow DeepSeek-R1-Distill-Qwen-7B",
				BaseURL:        "https://api.siliconflow.cn/v1",
				Model:          "deepseek-ai/DeepSeek-R1-Distill-Qwen-7B",
				APIKey:         "${SILICONFLOW_API_KEY}",
				TimeoutSeconds: 120,
				Enabled:        true,
			},
			"gemini-flash": {
				Type:           providers.TypeGemini,
				Label:          "Gemini 2.0 Flash",
				Model:          "gemini-2.0-flash",
				APIKey:         "${GEMINI_API_KEY}",
				RateLimit:      15,
				TimeoutSeconds: 120,
				Enabled:        true,
			},
		},
		Defaults: RunCfg{
			Profile:      "deepseek-chat",
			Concurrency:  20,
			MaxRetries:   3,
			Delimiter:    "|",
			OutputColumn: "AI_Output",
		},
	}
}

// GetProfile returns a profile config by name.
func (c *Config) GetProfile(name string) (ProfileCfg, bool) {
	cfg, ok := c.Profiles[name]
	return cfg, ok
}

// ProfileName picks the profile a run should use: name if given,
// otherwise the configured default.
func (c *Config) ProfileName(name string) (string, error) {
	if name == "" {
		name = c.Defaults.Profile
	}
	if name == "" {
		return "", fmt.Errorf("no profile selected and no default configured")
	}
	if _, ok := c.Profiles[name]; !ok {
		return "", fmt.Errorf("%w: %s (known: %v)", providers.ErrUnknownProfile, name, c.ProfileNames())
	}
	return name, nil
}

// ProfileNames returns the configured profile names in sorted order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnabledProfiles returns all enabled profiles.
func (c *Config) EnabledProfiles() map[string]ProfileCfg {
	result := make(map[string]ProfileCfg)
	for name, cfg := range c.Profiles {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// ToProfiles converts the config to the form providers.Registry takes.
// It resolves all ${ENV_VAR} references in API keys.
func (c *Config) ToProfiles() map[string]providers.ProfileConfig {
	out := make(map[string]providers.ProfileConfig, len(c.Profiles))
	for name, p := range c.Profiles {
		out[name] = providers.ProfileConfig{
			Type:      p.Type,
			Label:     p.Label,
			BaseURL:   p.BaseURL,
			Model:     p.Model,
			APIKey:    ResolveEnvVars(p.APIKey),
			RateLimit: p.RateLimit,
			Timeout:   time.Duration(p.TimeoutSeconds) * time.Second,
			Enabled:   p.Enabled,
		}
	}
	return out
}

// Redacted returns a copy safe to print: literal API keys are masked,
// ${ENV_VAR} references are kept as written.
func (c *Config) Redacted() *Config {
	out := *c
	out.Profiles = make(map[string]ProfileCfg, len(c.Profiles))
	for name, p := range c.Profiles {
		if p.APIKey != "" && !envVarPattern.MatchString(p.APIKey) {
			p.APIKey = "****"
		}
		out.Profiles[name] = p
	}
	return &out
}
