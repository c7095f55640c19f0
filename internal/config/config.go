package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-1.5-flash-latest"
	DefaultDatabasePath  = "data/meal-planner.db"
	DefaultPort          = "8080"
	DefaultTokenTTL      = 24 * time.Hour

	BackendREST = "rest"
	BackendSDK  = "sdk"
)

// Config holds the configuration for the application.
type Config struct {
	// Generation service. GeminiAPIKey may be empty: the planner then
	// falls back without calling out.
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	LLMBackend    string

	// Storage
	DatabasePath string
	DatabaseURL  string // Postgres profile store, optional

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// HTTP
	Port    string
	LogMode string

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64
}

// NewFromEnv creates a new Config object from environment variables.
// A .env file in the working directory is loaded first when present.
func NewFromEnv() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable not set")
	}

	backend := strings.ToLower(envOr("LLM_BACKEND", BackendREST))
	if backend != BackendREST && backend != BackendSDK {
		return nil, fmt.Errorf("LLM_BACKEND must be %q or %q, got %q", BackendREST, BackendSDK, backend)
	}

	tokenTTL := DefaultTokenTTL
	if raw := os.Getenv("TOKEN_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TOKEN_TTL %q: %w", raw, err)
		}
		tokenTTL = d
	}

	allowed, err := parseIDList(os.Getenv("TELEGRAM_ALLOWED_USER_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS: %w", err)
	}

	var adminID int64
	if raw := os.Getenv("ADMIN_TELEGRAM_ID"); raw != "" {
		adminID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID %q: %w", raw, err)
		}
	}

	return &Config{
		GeminiAPIKey:           os.Getenv("GEMINI_API_KEY"),
		GeminiModel:            envOr("GEMINI_MODEL", DefaultGeminiModel),
		GeminiBaseURL:          strings.TrimRight(envOr("GEMINI_BASE_URL", DefaultGeminiBaseURL), "/"),
		LLMBackend:             backend,
		DatabasePath:           envOr("DATABASE_PATH", DefaultDatabasePath),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		JWTSecret:              jwtSecret,
		TokenTTL:               tokenTTL,
		Port:                   envOr("PORT", DefaultPort),
		LogMode:                envOr("LOG_MODE", "dev"),
		TelegramBotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL:     os.Getenv("TELEGRAM_WEBHOOK_URL"),
		TelegramAllowedUserIDs: allowed,
		AdminTelegramID:        adminID,
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseIDList reads a comma separated list of Telegram user IDs.
func parseIDList(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
