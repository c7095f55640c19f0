package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"wellness-meal-planner/internal/config"
	"wellness-meal-planner/internal/shared"
)

// maxErrorBody bounds how much of a failed reply is kept for logs.
const maxErrorBody = 2048

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content *geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// GeminiClient calls the generateContent REST endpoint directly. The API
// key travels as the "key" query parameter.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	genConfig  GenerationConfig
	httpClient *http.Client
}

// NewGeminiClient creates a REST client. A nil httpClient means
// http.DefaultClient; no timeout is imposed beyond the caller's context.
func NewGeminiClient(cfg *config.Config, httpClient *http.Client) *GeminiClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GeminiClient{
		apiKey:     cfg.GeminiAPIKey,
		baseURL:    cfg.GeminiBaseURL,
		model:      cfg.GeminiModel,
		genConfig:  DefaultGenerationConfig,
		httpClient: httpClient,
	}
}

// GenerateContent sends a prompt to the Gemini model and returns the generated text.
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	if c.apiKey == "" {
		return ContentResponse{}, ErrMissingAPIKey
	}

	body, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: c.genConfig,
	})
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	endpoint := c.endpoint(url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to create request: %w", c.maskKey(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ContentResponse{}, &TransportError{Err: c.maskKey(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return ContentResponse{}, &TransportError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return ContentResponse{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if len(gr.Candidates) == 0 || gr.Candidates[0].Content == nil || len(gr.Candidates[0].Content.Parts) == 0 {
		return ContentResponse{}, ErrMalformedResponse
	}

	return ContentResponse{
		Content: gr.Candidates[0].Content.Parts[0].Text,
		Usage: shared.TokenUsage{
			PromptTokens:     gr.UsageMetadata.PromptTokenCount,
			CompletionTokens: gr.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gr.UsageMetadata.TotalTokenCount,
			Model:            c.model,
		},
	}, nil
}

func (c *GeminiClient) endpoint(key string) string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, key)
}

// maskKey rewrites the URL quoted by a url.Error, which carries the key.
func (c *GeminiClient) maskKey(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = c.endpoint("REDACTED")
	}
	return err
}

// Close is a no-op; it lets the REST and SDK clients share call sites.
func (c *GeminiClient) Close() error {
	return nil
}
