package llm

import (
	"context"
	"errors"
	"fmt"

	"adaptive-meal-planner/internal/config"
	"adaptive-meal-planner/internal/shared"
)

// ErrNoCredentials is returned when the selected provider has no API key.
var ErrNoCredentials = errors.New("llm: no API key configured for provider")

// Request is a single structured-generation call.
type Request struct {
	// SystemInstruction sets the model's role and standing rules.
	SystemInstruction string
	Prompt            string
	// Schema, when set, constrains the JSON object the model must return.
	Schema *Schema
	// Temperature overrides the provider default when non-nil.
	Temperature *float32
}

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator is an interface for generating JSON text from a request.
type TextGenerator interface {
	GenerateContent(ctx context.Context, req Request) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

// NewTextGenerator builds the generator for the configured provider.
// It returns ErrNoCredentials when the provider's key is missing.
func NewTextGenerator(ctx context.Context, cfg *config.Config) (TextGenerator, error) {
	if !cfg.HasLLMCredentials() {
		return nil, fmt.Errorf("%w: %s", ErrNoCredentials, cfg.LLMProvider)
	}
	switch cfg.LLMProvider {
	case config.ProviderGroq:
		return NewGroqClient(cfg), nil
	default:
		client, err := NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// Temperature is a convenience for filling Request.Temperature.
func Temperature(t float32) *float32 {
	return &t
}
