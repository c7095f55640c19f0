package llm

import (
	"context"
	"errors"
	"fmt"

	"wellness-meal-planner/internal/config"
	"wellness-meal-planner/internal/shared"
)

var (
	// ErrMissingAPIKey means the generation service is not configured.
	// Callers detect it before any request is sent.
	ErrMissingAPIKey = errors.New("gemini API key not configured")

	// ErrMalformedResponse covers a 2xx reply that does not carry
	// candidates[0].content.parts[0].text.
	ErrMalformedResponse = errors.New("invalid response from generation service")
)

// TransportError is a network failure or a non-2xx reply from the
// generation service.
type TransportError struct {
	StatusCode int // 0 when no response was received
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("generation service returned status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("generation service request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// GenerationConfig mirrors the generationConfig block of a generateContent call.
type GenerationConfig struct {
	Temperature     float32 `json:"temperature"`
	TopK            int32   `json:"topK"`
	TopP            float32 `json:"topP"`
	MaxOutputTokens int32   `json:"maxOutputTokens"`
}

// DefaultGenerationConfig is what every meal plan request is sent with.
var DefaultGenerationConfig = GenerationConfig{
	Temperature:     0.7,
	TopK:            1,
	TopP:            1,
	MaxOutputTokens: 2048,
}

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator is an interface for generating text from a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

// Client is a TextGenerator holding resources that must be released.
type Client interface {
	TextGenerator
	Closer
}

// NewClient picks the backend named by cfg.LLMBackend.
func NewClient(ctx context.Context, cfg *config.Config) (Client, error) {
	if cfg.LLMBackend == config.BackendSDK {
		c, err := NewGeminiSDKClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return NewGeminiClient(cfg, nil), nil
}
