// Package llmcall invokes a model endpoint with a bounded retry policy and
// keeps an in-memory record of every attempt for run statistics.
package llmcall

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/tabula/internal/providers"
)

// Call represents one recorded attempt against a model endpoint.
type Call struct {
	// Unique identifier
	ID string `json:"id" yaml:"id"`

	// Timing
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	LatencyMs int       `json:"latency_ms" yaml:"latency_ms"`

	// Request tracking
	RequestID string `json:"request_id" yaml:"request_id"`
	Attempt   int    `json:"attempt" yaml:"attempt"`

	// Model info
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`

	// Token usage
	InputTokens  int `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int `json:"output_tokens" yaml:"output_tokens"`

	// Status
	Success bool   `json:"success" yaml:"success"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Stats aggregates recorded calls.
type Stats struct {
	Requests     int `json:"requests" yaml:"requests"`
	Succeeded    int `json:"succeeded" yaml:"succeeded"`
	Failed       int `json:"failed" yaml:"failed"`
	InputTokens  int `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int `json:"output_tokens" yaml:"output_tokens"`
}

// newCall builds a Call for one attempt. result may be nil on failure.
func newCall(provider, requestID string, attempt int, started time.Time, result *providers.ChatResult, err error) Call {
	call := Call{
		ID:        uuid.New().String(),
		Timestamp: started,
		LatencyMs: int(time.Since(started).Milliseconds()),
		RequestID: requestID,
		Attempt:   attempt,
		Provider:  provider,
		Success:   err == nil,
	}
	if result != nil {
		call.Model = result.ModelUsed
		call.InputTokens = result.PromptTokens
		call.OutputTokens = result.CompletionTokens
	}
	if err != nil {
		call.Error = err.Error()
	}
	return call
}

// Recorder keeps the calls made during one run. Safe for concurrent use;
// a nil *Recorder discards everything.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends a call.
func (r *Recorder) Record(call Call) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

// Calls returns a copy of the recorded calls in arrival order.
func (r *Recorder) Calls() []Call {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Stats summarizes the recorded calls.
func (r *Recorder) Stats() Stats {
	var s Stats
	for _, c := range r.Calls() {
		s.Requests++
		if c.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
		s.InputTokens += c.InputTokens
		s.OutputTokens += c.OutputTokens
	}
	return s
}
