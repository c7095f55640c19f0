package llm

import (
	"context"
	"fmt"

	"wellness-meal-planner/internal/config"
	"wellness-meal-planner/internal/shared"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiSDKClient is the google/generative-ai-go backed alternative to
// GeminiClient, selected with LLM_BACKEND=sdk.
type GeminiSDKClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
}

// NewGeminiSDKClient creates a new Gemini API client. Without an API key
// the returned client answers every call with ErrMissingAPIKey.
func NewGeminiSDKClient(ctx context.Context, cfg *config.Config) (*GeminiSDKClient, error) {
	if cfg.GeminiAPIKey == "" {
		return &GeminiSDKClient{modelName: cfg.GeminiModel}, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.GeminiModel)
	model.SetTemperature(DefaultGenerationConfig.Temperature)
	model.SetTopK(DefaultGenerationConfig.TopK)
	model.SetTopP(DefaultGenerationConfig.TopP)
	model.SetMaxOutputTokens(DefaultGenerationConfig.MaxOutputTokens)

	return &GeminiSDKClient{client: client, model: model, modelName: cfg.GeminiModel}, nil
}

// GenerateContent sends a prompt to the Gemini model and returns the generated text.
func (c *GeminiSDKClient) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	if c.model == nil {
		return ContentResponse{}, ErrMissingAPIKey
	}

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return ContentResponse{}, &TransportError{Err: err}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ContentResponse{}, ErrMalformedResponse
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return ContentResponse{}, fmt.Errorf("%w: first part is not text", ErrMalformedResponse)
	}

	usage := shared.TokenUsage{Model: c.modelName}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return ContentResponse{Content: string(text), Usage: usage}, nil
}

// Close closes the underlying Gemini client.
func (c *GeminiSDKClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
