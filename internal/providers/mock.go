package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for testing.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailFirst    int    // Fail the first N requests, then answer (0 = never)
	ResponseText string // Returned for every prompt without a Responses entry

	// Responses maps an exact prompt to its reply.
	Responses map[string]string

	// Respond, when set, computes the reply and takes precedence.
	Respond func(prompt string) (string, error)

	// State
	requestCount atomic.Int64
	mu           sync.Mutex
	prompts      []string
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		Latency:      10 * time.Millisecond,
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// RequestCount returns how many Chat calls were made.
func (c *MockClient) RequestCount() int {
	return int(c.requestCount.Load())
}

// Prompts returns the prompts received so far, in arrival order.
func (c *MockClient) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.prompts))
	copy(out, c.prompts)
	return out
}

// Chat sends a mock chat request.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	var prompt string
	if n := len(req.Messages); n > 0 {
		prompt = req.Messages[n-1].Content
	}
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()

	if c.ShouldFail {
		return nil, errors.New("mock client configured to fail")
	}
	if c.FailFirst > 0 && int(count) <= c.FailFirst {
		return nil, fmt.Errorf("mock client failing request %d of first %d", count, c.FailFirst)
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	text := c.ResponseText
	if reply, ok := c.Responses[prompt]; ok {
		text = reply
	}
	if c.Respond != nil {
		reply, err := c.Respond(prompt)
		if err != nil {
			return nil, err
		}
		text = reply
	}

	return &ChatResult{
		Content:          text,
		PromptTokens:     len(prompt) / 4,
		CompletionTokens: len(text) / 4,
		TotalTokens:      (len(prompt) + len(text)) / 4,
		ExecutionTime:    time.Since(start),
		Provider:         MockClientName,
		ModelUsed:        req.Model,
		RequestID:        fmt.Sprintf("mock-%d", count),
	}, nil
}

var _ LLMClient = (*MockClient)(nil)
