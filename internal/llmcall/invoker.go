package llmcall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/jackzampolin/tabula/internal/providers"
)

var (
	// ErrNotConfigured is returned when no endpoint client was supplied.
	ErrNotConfigured = errors.New("model endpoint not configured")

	// ErrInvalidRetries is returned when maxRetries < 1.
	ErrInvalidRetries = errors.New("max retries must be at least 1")
)

// Defaults for the backoff policy: wait BackoffBase^attempt * BackoffUnit
// after a failed zero-indexed attempt.
const (
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 2.0
	DefaultBackoffUnit = time.Second
)

// Timer schedules backoff waits. Tests inject a fake to avoid sleeping.
type Timer interface {
	After(time.Duration) <-chan time.Time
}

// BackoffPolicy describes the wait between attempts.
type BackoffPolicy struct {
	Base float64
	Unit time.Duration
}

// Delay returns the wait after the failed zero-indexed attempt.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	return time.Duration(math.Pow(p.Base, float64(attempt)) * float64(p.Unit))
}

// Config configures an Invoker.
type Config struct {
	// Client is the endpoint handle. Nil makes every Invoke fail with
	// ErrNotConfigured.
	Client providers.LLMClient

	// Limiter throttles attempts; nil means unlimited.
	Limiter *providers.RateLimiter

	// Recorder captures every attempt; nil disables recording.
	Recorder *Recorder

	// Backoff defaults to base 2 in seconds.
	Backoff BackoffPolicy

	// Temperature is sent with every request. Zero is the most
	// deterministic setting and the default.
	Temperature float64

	// Timer overrides the clock used for backoff waits.
	Timer Timer

	Logger *slog.Logger
}

// Invoker wraps a single blocking chat call with bounded retries.
type Invoker struct {
	client      providers.LLMClient
	limiter     *providers.RateLimiter
	recorder    *Recorder
	backoff     BackoffPolicy
	temperature float64
	timer       Timer
	logger      *slog.Logger
}

// NewInvoker creates an Invoker from cfg.
func NewInvoker(cfg Config) *Invoker {
	if cfg.Backoff.Base <= 0 {
		cfg.Backoff.Base = DefaultBackoffBase
	}
	if cfg.Backoff.Unit <= 0 {
		cfg.Backoff.Unit = DefaultBackoffUnit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Invoker{
		client:      cfg.Client,
		limiter:     cfg.Limiter,
		recorder:    cfg.Recorder,
		backoff:     cfg.Backoff,
		temperature: cfg.Temperature,
		timer:       cfg.Timer,
		logger:      cfg.Logger,
	}
}

// Configured reports whether the invoker has an endpoint.
func (inv *Invoker) Configured() bool {
	return inv != nil && inv.client != nil
}

// Invoke sends prompt as a single user message, retrying failed attempts
// up to maxRetries in total. It returns the trimmed response text, or ""
// once every attempt has failed or ctx is done. The only errors are
// ErrNotConfigured and ErrInvalidRetries.
func (inv *Invoker) Invoke(ctx context.Context, prompt string, maxRetries int) (string, error) {
	if !inv.Configured() {
		return "", ErrNotConfigured
	}
	if maxRetries < 1 {
		return "", fmt.Errorf("%w: got %d", ErrInvalidRetries, maxRetries)
	}

	requestID := uuid.New().String()
	logger := inv.logger.With("request_id", requestID, "provider", inv.client.Name())

	attempt := 0
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(maxRetries)),
		retry.LastErrorOnly(true),
		retry.DelayType(func(_ uint, _ error, _ *retry.Config) time.Duration {
			// attempt has already been incremented for the call that failed
			return inv.backoff.Delay(attempt - 1)
		}),
		retry.OnRetry(func(_ uint, err error) {
			logger.Warn("model call failed",
				"attempt", attempt,
				"max_attempts", maxRetries,
				"error", err)
		}),
	}
	if inv.timer != nil {
		opts = append(opts, retry.WithTimer(inv.timer))
	}

	text, err := retry.DoWithData(func() (string, error) {
		attempt++
		return inv.attempt(ctx, prompt, requestID, attempt)
	}, opts...)
	if err != nil {
		logger.Debug("model call exhausted", "attempts", attempt, "error", err)
		return "", nil
	}
	return text, nil
}

func (inv *Invoker) attempt(ctx context.Context, prompt, requestID string, attempt int) (string, error) {
	if err := inv.limiter.Wait(ctx); err != nil {
		return "", retry.Unrecoverable(err)
	}

	req := providers.UserPrompt(prompt)
	req.Temperature = inv.temperature
	req.RequestID = requestID

	started := time.Now()
	result, err := inv.client.Chat(ctx, req)
	inv.recorder.Record(newCall(inv.client.Name(), requestID, attempt, started, result, err))
	if err != nil {
		if rle, ok := providers.IsRateLimitError(err); ok {
			inv.limiter.Record429(rle.RetryAfter)
		}
		if ctx.Err() != nil {
			return "", retry.Unrecoverable(err)
		}
		return "", err
	}
	return strings.TrimSpace(result.Content), nil
}
