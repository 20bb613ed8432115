// Package llm defines the narrow capability interfaces the core depends on
// for AI-generated prose — a Scan summary, eventually a weekly-brief
// narrative — treating the LLM as an external, non-authoritative
// collaborator per the error-handling design: any failure here must fall
// back to a deterministic template, never block persistence.
package llm

import (
	"context"
	"strings"
)

// Summarizer produces a short natural-language summary of a Scan's
// findings. Implementations must respect ctx cancellation and should
// apply their own timeout; callers wrap every call in an error shield.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Clamp truncates s to at most maxWords words, per spec.md's 120-word
// summary ceiling, appending an ellipsis when truncated.
func Clamp(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "…"
}

// NullSummarizer always fails, forcing every caller onto its deterministic
// fallback template — the default when no LLM key is configured.
type NullSummarizer struct{}

func (NullSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	return "", errNoSummarizerConfigured
}

var errNoSummarizerConfigured = &summarizerError{"no summarizer configured"}

type summarizerError struct{ msg string }

func (e *summarizerError) Error() string { return e.msg }
