package providers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMockClient(t *testing.T) {
	t.Run("chat", func(t *testing.T) {
		c := NewMockClient()
		c.ResponseText = "hello world"

		result, err := c.Chat(context.Background(), &ChatRequest{
			Model: "test-model",
			Messages: []Message{
				{Role: "user", Content: "test"},
			},
		})

		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.Content != "hello world" {
			t.Errorf("Content = %q, want %q", result.Content, "hello world")
		}
		if c.RequestCount() != 1 {
			t.Errorf("RequestCount = %d, want 1", c.RequestCount())
		}
	})

	t.Run("scripted responses by prompt", func(t *testing.T) {
		c := NewMockClient()
		c.Latency = 0
		c.Responses = map[string]string{"a": "A|1", "b": "B|2"}

		for prompt, want := range c.Responses {
			result, err := c.Chat(context.Background(), UserPrompt(prompt))
			if err != nil {
				t.Fatalf("Chat(%q) error = %v", prompt, err)
			}
			if result.Content != want {
				t.Errorf("Chat(%q) = %q, want %q", prompt, result.Content, want)
			}
		}
		if got := len(c.Prompts()); got != 2 {
			t.Errorf("recorded %d prompts, want 2", got)
		}
	})

	t.Run("fail first N", func(t *testing.T) {
		c := NewMockClient()
		c.Latency = 0
		c.FailFirst = 2

		for i := 1; i <= 3; i++ {
			_, err := c.Chat(context.Background(), UserPrompt("x"))
			if i <= 2 && err == nil {
				t.Errorf("request %d should fail", i)
			}
			if i == 3 && err != nil {
				t.Errorf("request 3 should succeed, got %v", err)
			}
		}
	})

	t.Run("respond func error", func(t *testing.T) {
		c := NewMockClient()
		c.Latency = 0
		boom := errors.New("boom")
		c.Respond = func(string) (string, error) { return "", boom }

		if _, err := c.Chat(context.Background(), UserPrompt("x")); !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		c := NewMockClient()
		c.Latency = time.Second

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.Chat(ctx, UserPrompt("x"))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

// fakeClock is advanced by hand so limiter math is deterministic.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(rpm int) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	r := NewRateLimiter(rpm)
	r.now = clock.Now
	r.lastUpdate = clock.Now()
	return r, clock
}

func TestRateLimiter(t *testing.T) {
	t.Run("zero rate means unlimited", func(t *testing.T) {
		limiter := NewRateLimiter(0)
		if limiter != nil {
			t.Fatal("expected nil limiter for rate 0")
		}
		for i := 0; i < 100; i++ {
			if err := limiter.Wait(context.Background()); err != nil {
				t.Fatalf("nil limiter Wait() error = %v", err)
			}
		}
		limiter.Record429(time.Second)
		if limiter.Status().TokensLimit != 0 {
			t.Error("nil limiter should report empty status")
		}
	})

	t.Run("burst up to one minute of requests", func(t *testing.T) {
		limiter, _ := newTestLimiter(3)
		for i := 0; i < 3; i++ {
			if wait := limiter.reserve(); wait != 0 {
				t.Fatalf("request %d had to wait %v", i, wait)
			}
		}
		if wait := limiter.reserve(); wait <= 0 {
			t.Error("fourth request should have to wait")
		}
	})

	t.Run("refills over time", func(t *testing.T) {
		limiter, clock := newTestLimiter(60) // 1 per second
		for i := 0; i < 60; i++ {
			limiter.reserve()
		}
		wait := limiter.reserve()
		if wait <= 0 || wait > time.Second {
			t.Fatalf("wait = %v, want (0, 1s]", wait)
		}
		clock.Advance(time.Second)
		if wait := limiter.reserve(); wait != 0 {
			t.Errorf("after refill wait = %v, want 0", wait)
		}
	})

	t.Run("record 429 pauses callers", func(t *testing.T) {
		limiter, clock := newTestLimiter(600)
		limiter.Record429(5 * time.Second)

		if wait := limiter.reserve(); wait != 5*time.Second {
			t.Errorf("wait = %v, want 5s", wait)
		}
		clock.Advance(5 * time.Second)
		if wait := limiter.reserve(); wait != 0 {
			t.Errorf("after pause wait = %v, want 0", wait)
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		limiter := NewRateLimiter(1)

		// Consume the one allowed token
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("first Wait() error = %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := limiter.Wait(ctx); err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("concurrent requests", func(t *testing.T) {
		limiter := NewRateLimiter(6000)

		var wg sync.WaitGroup
		var failures atomic.Int32

		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := limiter.Wait(context.Background()); err != nil {
					failures.Add(1)
				}
			}()
		}

		wg.Wait()

		if failures.Load() > 0 {
			t.Errorf("had %d errors", failures.Load())
		}
		if status := limiter.Status(); status.TotalConsumed != 10 {
			t.Errorf("TotalConsumed = %d, want 10", status.TotalConsumed)
		}
	})
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{" 1.5 ", 1500 * time.Millisecond},
		{"-1", 0},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
