package generation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/context-engine/config"
	"github.com/context-engine/models"
)

// ErrorClass buckets provider failures the way callers need to react to
// them: auth and rate-limit are caller problems, unavailable and timeout
// are provider problems, other is everything else.
type ErrorClass string

const (
	ErrorClassAuth        ErrorClass = "auth"
	ErrorClassRateLimit   ErrorClass = "rate-limit"
	ErrorClassUnavailable ErrorClass = "unavailable"
	ErrorClassTimeout     ErrorClass = "timeout"
	ErrorClassOther       ErrorClass = "other"
)

// Error annotates a failed generation with provider, model, and class. The
// wrapped cause stays reachable through Unwrap.
type Error struct {
	Provider string
	Model    string
	Class    ErrorClass
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("generation failed (provider=%s, model=%s, class=%s): %v", e.Provider, e.Model, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(provider, model string, class ErrorClass, err error) *Error {
	return &Error{Provider: provider, Model: model, Class: class, Err: err}
}

// Usage reports provider token accounting when available.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// MetaRequest carries one generation job: identity plus the structural
// extraction the prompt summarizes.
type MetaRequest struct {
	OrgID     uuid.UUID
	Name      string
	Framework models.Framework
	Extracted *models.ExtractedData
	Hints     string
}

// MetaResult is the provider-agnostic outcome.
type MetaResult struct {
	Meta  *models.ComponentMeta
	Usage *Usage
	Model string
}

// Generator produces semantic component metadata with a single tool-forced
// LLM call.
type Generator interface {
	GenerateMeta(ctx context.Context, req MetaRequest) (*MetaResult, error)
	Provider() string
	Model() string
}

// NewGenerator selects the provider from configuration.
func NewGenerator(cfg config.LLMConfig, log zerolog.Logger) (Generator, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicGenerator(cfg, log), nil
	case "gemini":
		return NewGeminiGenerator(cfg, log)
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", cfg.Provider)
	}
}
