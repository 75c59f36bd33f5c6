package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackzampolin/tabula/internal/prompts"
)

// Failure reasons recorded on a RowOutcome.
const (
	ReasonEmptyResponse    = "empty response"
	ReasonMissingDelimiter = "missing delimiter"
)

// DefaultMaxRetries is the per-row attempt budget handed to the invoker.
const DefaultMaxRetries = 3

// Invoker is the model call a row task makes. *llmcall.Invoker satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, maxRetries int) (string, error)
}

// RowInput is the immutable input for one dispatched row.
type RowInput struct {
	RowIndex       int
	MergedText     string
	Delimiter      string
	PromptTemplate string
}

// RowOutcome is the resolved result for one row. A successful output
// always contains the delimiter; a failed one is FailureOutput(delimiter).
type RowOutcome struct {
	RowIndex    int    `json:"row_index" yaml:"row_index"`
	OutputText  string `json:"output_text" yaml:"output_text"`
	IsError     bool   `json:"is_error" yaml:"is_error"`
	ErrorReason string `json:"error_reason,omitempty" yaml:"error_reason,omitempty"`
}

// WithRow returns a copy of o placed at row.
func (o RowOutcome) WithRow(row int) RowOutcome {
	o.RowIndex = row
	return o
}

// FailureOutput is the sentinel written for a row that could not be resolved.
func FailureOutput(delimiter string) string {
	return "FAIL" + delimiter + "FAIL"
}

// MergeFields joins the selected column values with newlines.
func MergeFields(values []string) string {
	return strings.Join(values, "\n")
}

// RenderPrompt substitutes {merged_text} and {delimiter} in one pass, so
// placeholder-looking text inside the row is left as written.
func RenderPrompt(template, mergedText, delimiter string) string {
	return strings.NewReplacer(
		prompts.PlaceholderMergedText, mergedText,
		prompts.PlaceholderDelimiter, delimiter,
	).Replace(template)
}

// Classify turns a raw model response into an outcome for row.
func Classify(row int, response, delimiter string) RowOutcome {
	response = strings.TrimSpace(response)
	switch {
	case response == "":
		return failed(row, delimiter, ReasonEmptyResponse)
	case !strings.Contains(response, delimiter):
		return failed(row, delimiter, ReasonMissingDelimiter)
	default:
		return RowOutcome{RowIndex: row, OutputText: response}
	}
}

func failed(row int, delimiter, reason string) RowOutcome {
	return RowOutcome{
		RowIndex:    row,
		OutputText:  FailureOutput(delimiter),
		IsError:     true,
		ErrorReason: reason,
	}
}

// RowTask is the unit of work a pool worker executes.
type RowTask struct {
	Input      RowInput
	Key        CacheKey
	MaxRetries int
}

// Execute renders the prompt, calls the model and validates the reply.
// It never returns an error: every failure is encoded in the outcome.
func (t RowTask) Execute(ctx context.Context, inv Invoker) RowOutcome {
	in := t.Input
	retries := t.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}

	prompt := RenderPrompt(in.PromptTemplate, in.MergedText, in.Delimiter)
	response, err := inv.Invoke(ctx, prompt, retries)
	if err != nil {
		return failed(in.RowIndex, in.Delimiter, fmt.Sprintf("invoke: %v", err))
	}
	return Classify(in.RowIndex, response, in.Delimiter)
}
