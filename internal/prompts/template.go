// Package prompts manages named prompt templates: a built-in default plus
// user templates saved as YAML files in the home directory.
package prompts

import (
	_ "embed"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Placeholders substituted into a template when a row is rendered.
const (
	PlaceholderMergedText = "{merged_text}"
	PlaceholderDelimiter  = "{delimiter}"
)

// DefaultName is the name of the built-in template.
const DefaultName = "literature-screening"

// DefaultDelimiter is the delimiter the built-in template is written for.
const DefaultDelimiter = "|"

//go:embed default.tmpl
var defaultContent string

// Template is a named prompt with the delimiter it expects.
type Template struct {
	Name      string    `json:"name" yaml:"name"`
	Content   string    `json:"content" yaml:"content"`
	Delimiter string    `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	BuiltIn   bool      `json:"built_in,omitempty" yaml:"-"`
}

// DefaultTemplate returns the built-in literature-screening template.
func DefaultTemplate() Template {
	return Template{
		Name:      DefaultName,
		Content:   defaultContent,
		Delimiter: DefaultDelimiter,
		BuiltIn:   true,
	}
}

// placeholderPattern matches {identifier} tokens.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// ExtractPlaceholders returns the distinct {name} tokens in text, sorted.
func ExtractPlaceholders(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	sort.Strings(names)
	return names
}

// CheckPlaceholders returns human-readable warnings for a template that
// lacks {merged_text} or {delimiter}, or carries tokens that are never filled.
func CheckPlaceholders(content string) []string {
	var warnings []string
	if !strings.Contains(content, PlaceholderMergedText) {
		warnings = append(warnings, "template has no {merged_text} placeholder; row text will not be sent")
	}
	if !strings.Contains(content, PlaceholderDelimiter) {
		warnings = append(warnings, "template has no {delimiter} placeholder; the model is never told which delimiter to answer with")
	}
	for _, name := range ExtractPlaceholders(content) {
		if name == "merged_text" || name == "delimiter" {
			continue
		}
		warnings = append(warnings, "placeholder {"+name+"} is not substituted")
	}
	return warnings
}
