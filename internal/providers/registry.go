package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Profile types understood by the registry.
const (
	TypeOpenAI = "openai" // any OpenAI-compatible chat endpoint
	TypeGemini = "gemini"
)

var (
	// ErrUnknownProfile is returned for a profile name the registry does not hold.
	ErrUnknownProfile = errors.New("unknown profile")

	// ErrProfileDisabled is returned when a profile exists but is switched off.
	ErrProfileDisabled = errors.New("profile disabled")

	// ErrMissingAPIKey is returned when a profile's key resolved to nothing.
	ErrMissingAPIKey = errors.New("missing API key")
)

// ProfileConfig is one named endpoint/model preset with its key resolved.
type ProfileConfig struct {
	Type      string // "openai" or "gemini"
	Label     string // Human-readable name
	BaseURL   string
	Model     string
	APIKey    string  // Resolved API key
	RateLimit int     // Requests per minute (0 = unlimited)
	Timeout   time.Duration
	Enabled   bool
}

// ProfileInfo is the listing view of a profile; it never carries the key.
type ProfileInfo struct {
	Name      string `json:"name" yaml:"name"`
	Type      string `json:"type" yaml:"type"`
	Label     string `json:"label,omitempty" yaml:"label,omitempty"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model     string `json:"model" yaml:"model"`
	RateLimit int    `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	HasKey    bool   `json:"has_key" yaml:"has_key"`
}

// Registry builds and caches one LLMClient and RateLimiter per profile.
type Registry struct {
	mu       sync.Mutex
	profiles map[string]ProfileConfig
	clients  map[string]LLMClient
	limiters map[string]*RateLimiter
	logger   *slog.Logger
}

// NewRegistry creates a registry over the given profiles.
func NewRegistry(profiles map[string]ProfileConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	p := make(map[string]ProfileConfig, len(profiles))
	for name, cfg := range profiles {
		p[name] = cfg
	}
	return &Registry{
		profiles: p,
		clients:  make(map[string]LLMClient),
		limiters: make(map[string]*RateLimiter),
		logger:   logger,
	}
}

// Register installs a ready-made client under name, replacing any profile
// of the same name. Used by tests and by callers with custom transports.
func (r *Registry) Register(name string, client LLMClient, requestsPerMinute int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[name] = ProfileConfig{Type: client.Name(), RateLimit: requestsPerMinute, Enabled: true}
	r.clients[name] = client
	r.limiters[name] = NewRateLimiter(requestsPerMinute)
	r.logger.Debug("registered LLM client", "name", name)
}

// Client returns the client for a profile, creating it on first use.
func (r *Registry) Client(ctx context.Context, name string) (LLMClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[name]; ok {
		return client, nil
	}

	cfg, ok := r.profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrProfileDisabled, name)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w for profile %s", ErrMissingAPIKey, name)
	}

	client, err := createLLMClient(ctx, name, cfg)
	if err != nil {
		return nil, err
	}
	r.clients[name] = client
	r.limiters[name] = NewRateLimiter(cfg.RateLimit)
	r.logger.Info("registered LLM client", "name", name, "type", cfg.Type, "model", cfg.Model)
	return client, nil
}

// Limiter returns the rate limiter for a profile; nil means unlimited.
func (r *Registry) Limiter(name string) *RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limiters[name]
}

// Has reports whether a profile with this name exists.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.profiles[name]
	return ok
}

// List returns every profile sorted by name.
func (r *Registry) List() []ProfileInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]ProfileInfo, 0, len(r.profiles))
	for name, cfg := range r.profiles {
		infos = append(infos, ProfileInfo{
			Name:      name,
			Type:      cfg.Type,
			Label:     cfg.Label,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			RateLimit: cfg.RateLimit,
			Enabled:   cfg.Enabled,
			HasKey:    cfg.APIKey != "",
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// createLLMClient creates an LLM client based on profile type.
func createLLMClient(ctx context.Context, name string, cfg ProfileConfig) (LLMClient, error) {
	switch cfg.Type {
	case TypeOpenAI, "":
		return NewOpenAIClient(OpenAIConfig{
			Name:    name,
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil
	case TypeGemini:
		client, err := NewGeminiClient(ctx, GeminiConfig{
			Name:    name,
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported profile type %q for %s", cfg.Type, name)
	}
}
