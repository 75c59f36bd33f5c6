package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiConfig configures a client for Google's Gemini API.
type GeminiConfig struct {
	Name       string
	APIKey     string
	BaseURL    string // Optional (tests)
	Model      string // e.g. "gemini-2.0-flash"
	Timeout    time.Duration
	HTTPClient *http.Client // Optional (tests)
}

// GeminiClient implements LLMClient using the GenAI SDK.
type GeminiClient struct {
	name   string
	model  string
	client *genai.Client
}

// NewGeminiClient creates a Gemini client. The SDK needs a context to
// resolve credentials, so construction can fail.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.Name == "" {
		cfg.Name = "gemini"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		name:   cfg.Name,
		model:  cfg.Model,
		client: client,
	}, nil
}

// Name returns the client identifier.
func (c *GeminiClient) Name() string {
	return c.name
}

// Model returns the configured default model.
func (c *GeminiClient) Model() string {
	return c.model
}

// Chat sends a generateContent request. System messages become the
// system instruction; everything else is sent as user text.
func (c *GeminiClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.model
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	var system, user []string
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		user = append(user, m.Content)
	}
	if len(system) > 0 {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(system, "\n")}},
		}
	}

	result, err := c.client.Models.GenerateContent(ctx, model, genai.Text(strings.Join(user, "\n")), config)
	if err != nil {
		return nil, mapGeminiError(err)
	}
	if len(result.Candidates) == 0 {
		return nil, ErrEmptyChoices
	}

	out := &ChatResult{
		Content:       strings.TrimSpace(result.Text()),
		ExecutionTime: time.Since(start),
		Provider:      c.name,
		ModelUsed:     model,
		RequestID:     req.RequestID,
	}
	if u := result.UsageMetadata; u != nil {
		out.PromptTokens = int(u.PromptTokenCount)
		out.CompletionTokens = int(u.CandidatesTokenCount)
		out.TotalTokens = int(u.TotalTokenCount)
	}
	return out, nil
}

func mapGeminiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var ptr *genai.APIError
		if !errors.As(err, &ptr) || ptr == nil {
			return fmt.Errorf("gemini generation failed: %w", err)
		}
		apiErr = *ptr
	}
	if apiErr.Code == http.StatusTooManyRequests {
		return &RateLimitError{
			Message:    fmt.Sprintf("rate limited: %s", apiErr.Message),
			StatusCode: apiErr.Code,
		}
	}
	return fmt.Errorf("gemini generation failed (status %d): %s", apiErr.Code, apiErr.Message)
}

var _ LLMClient = (*GeminiClient)(nil)
