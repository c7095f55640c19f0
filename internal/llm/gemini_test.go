package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wellness-meal-planner/internal/config"
)

func newTestClient(serverURL, key string) *GeminiClient {
	return NewGeminiClient(&config.Config{
		GeminiAPIKey:  key,
		GeminiBaseURL: serverURL,
		GeminiModel:   "gemini-test",
	}, nil)
}

func TestGeminiClientGenerateContent(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("Expected POST, got %s", r.Method)
			}
			if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
				t.Errorf("Unexpected path %s", r.URL.Path)
			}
			if r.URL.Query().Get("key") != "test_key" {
				t.Errorf("Expected key 'test_key', got '%s'", r.URL.Query().Get("key"))
			}

			var body geminiRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode request: %v", err)
			}
			if len(body.Contents) != 1 || body.Contents[0].Parts[0].Text != "plan my week" {
				t.Errorf("Unexpected contents: %+v", body.Contents)
			}
			if body.GenerationConfig != DefaultGenerationConfig {
				t.Errorf("Unexpected generation config: %+v", body.GenerationConfig)
			}

			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, `{
				"candidates": [{"content": {"parts": [{"text": "{\"weeklyPlan\": {}}"}]}}],
				"usageMetadata": {"promptTokenCount": 120, "candidatesTokenCount": 900, "totalTokenCount": 1020}
			}`)
		}))
		defer server.Close()

		resp, err := newTestClient(server.URL, "test_key").GenerateContent(context.Background(), "plan my week")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if resp.Content != `{"weeklyPlan": {}}` {
			t.Errorf("Unexpected content %q", resp.Content)
		}
		if resp.Usage.PromptTokens != 120 || resp.Usage.CompletionTokens != 900 || resp.Usage.Model != "gemini-test" {
			t.Errorf("Unexpected usage %+v", resp.Usage)
		}
	})

	t.Run("ServerError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error": {"message": "backend unavailable"}}`)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, "test_key").GenerateContent(context.Background(), "p")
		var te *TransportError
		if !errors.As(err, &te) {
			t.Fatalf("Expected TransportError, got %v", err)
		}
		if te.StatusCode != http.StatusInternalServerError {
			t.Errorf("Expected status 500, got %d", te.StatusCode)
		}
	})

	t.Run("NetworkError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		_, err := newTestClient(url, "test_key").GenerateContent(context.Background(), "p")
		var te *TransportError
		if !errors.As(err, &te) {
			t.Fatalf("Expected TransportError, got %v", err)
		}
		if te.StatusCode != 0 {
			t.Errorf("Expected no status code, got %d", te.StatusCode)
		}
		if strings.Contains(err.Error(), "test_key") {
			t.Errorf("Expected the API key to be masked, got %q", err.Error())
		}
		if !strings.Contains(err.Error(), "key=REDACTED") {
			t.Errorf("Expected a masked request URL, got %q", err.Error())
		}
	})

	t.Run("NoCandidates", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"candidates": []}`)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, "test_key").GenerateContent(context.Background(), "p")
		if !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("Expected ErrMalformedResponse, got %v", err)
		}
	})

	t.Run("MissingContentNesting", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"candidates": [{"finishReason": "SAFETY"}]}`)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, "test_key").GenerateContent(context.Background(), "p")
		if !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("Expected ErrMalformedResponse, got %v", err)
		}
	})

	t.Run("MissingAPIKey", func(t *testing.T) {
		called := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, "").GenerateContent(context.Background(), "p")
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Fatalf("Expected ErrMissingAPIKey, got %v", err)
		}
		if called {
			t.Error("Expected no request to be sent without an API key")
		}
	})
}

func TestSDKClientWithoutKey(t *testing.T) {
	c, err := NewGeminiSDKClient(context.Background(), &config.Config{GeminiModel: "gemini-test"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer c.Close()

	if _, err := c.GenerateContent(context.Background(), "p"); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Expected ErrMissingAPIKey, got %v", err)
	}
}
