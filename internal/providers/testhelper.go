package providers

import (
	"os"
)

// TestConfig holds live endpoint credentials loaded from environment
// variables, so integration tests use the same keys as production.
type TestConfig struct {
	DeepSeekAPIKey string
	GeminiAPIKey   string
}

// LoadTestConfig loads endpoint API keys from environment variables.
// Returns a TestConfig with whatever keys are available.
func LoadTestConfig() TestConfig {
	return TestConfig{
		DeepSeekAPIKey: os.Getenv("DEEPSEEK_API_KEY"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
	}
}

// HasDeepSeek returns true if a DeepSeek API key is configured.
func (c TestConfig) HasDeepSeek() bool {
	return c.DeepSeekAPIKey != ""
}

// HasGemini returns true if a Gemini API key is configured.
func (c TestConfig) HasGemini() bool {
	return c.GeminiAPIKey != ""
}

// NewDeepSeekClient creates a DeepSeek client from test config.
// Returns nil if not configured.
func (c TestConfig) NewDeepSeekClient() *OpenAIClient {
	if !c.HasDeepSeek() {
		return nil
	}
	return NewOpenAIClient(OpenAIConfig{
		Name:    "deepseek-chat",
		APIKey:  c.DeepSeekAPIKey,
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	})
}

// ToProfiles converts test config to profiles for the registry.
// Only includes endpoints that have API keys configured.
func (c TestConfig) ToProfiles() map[string]ProfileConfig {
	profiles := make(map[string]ProfileConfig)

	if c.HasDeepSeek() {
		profiles["deepseek-chat"] = ProfileConfig{
			Type:      TypeOpenAI,
			BaseURL:   "https://api.deepseek.com",
			Model:     "deepseek-chat",
			APIKey:    c.DeepSeekAPIKey,
			RateLimit: 60,
			Enabled:   true,
		}
	}

	if c.HasGemini() {
		profiles["gemini-flash"] = ProfileConfig{
			Type:      TypeGemini,
			Model:     "gemini-2.0-flash",
			APIKey:    c.GeminiAPIKey,
			RateLimit: 15,
			Enabled:   true,
		}
	}

	return profiles
}
