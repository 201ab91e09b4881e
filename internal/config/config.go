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
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
)

// Config holds the configuration for the application.
type Config struct {
	// LLM backend
	LLMProvider  string
	GeminiAPIKey string
	GeminiModel  string
	GroqAPIKey   string
	GroqModel    string

	// GenerationTimeout bounds a single backend call made by the outer surfaces.
	// Zero means no deadline.
	GenerationTimeout time.Duration

	DatabasePath string

	// HTTP API
	Port              string
	SessionSigningKey string
	SessionTTL        time.Duration
	SessionCapacity   int

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64
}

// NewFromEnv creates a new Config object from environment variables.
// A .env file in the working directory is loaded first when present.
// Missing LLM keys are not an error here: the generation gateway reports
// them as unavailable when a request is made.
func NewFromEnv() (*Config, error) {
	_ = godotenv.Load()

	provider := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	if provider == "" {
		provider = ProviderGemini
	}
	if provider != ProviderGemini && provider != ProviderGroq {
		return nil, fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderGemini, ProviderGroq, provider)
	}

	generationTimeout, err := durationFromEnv("GENERATION_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}

	sessionTTL, err := durationFromEnv("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	sessionCapacity := 1024
	if raw := strings.TrimSpace(os.Getenv("SESSION_CAPACITY")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("SESSION_CAPACITY must be a positive integer, got %q", raw)
		}
		sessionCapacity = n
	}

	allowedIDs, err := int64ListFromEnv("TELEGRAM_ALLOWED_USER_IDS")
	if err != nil {
		return nil, err
	}

	var adminID int64
	if raw := strings.TrimSpace(os.Getenv("ADMIN_TELEGRAM_ID")); raw != "" {
		adminID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_ID must be an integer, got %q", raw)
		}
	}

	return &Config{
		LLMProvider:            provider,
		GeminiAPIKey:           os.Getenv("GEMINI_API_KEY"),
		GeminiModel:            envOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		GroqAPIKey:             os.Getenv("GROQ_API_KEY"),
		GroqModel:              envOrDefault("GROQ_MODEL", "llama-3.3-70b-versatile"),
		GenerationTimeout:      generationTimeout,
		DatabasePath:           envOrDefault("DATABASE_PATH", "data/meal-coach.db"),
		Port:                   envOrDefault("PORT", "8080"),
		SessionSigningKey:      os.Getenv("SESSION_SIGNING_KEY"),
		SessionTTL:             sessionTTL,
		SessionCapacity:        sessionCapacity,
		TelegramBotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL:     os.Getenv("TELEGRAM_WEBHOOK_URL"),
		TelegramAllowedUserIDs: allowedIDs,
		AdminTelegramID:        adminID,
	}, nil
}

// HasLLMCredentials reports whether the selected provider has an API key.
func (c *Config) HasLLMCredentials() bool {
	switch c.LLMProvider {
	case ProviderGroq:
		return c.GroqAPIKey != ""
	default:
		return c.GeminiAPIKey != ""
	}
}

// RequireServer checks the settings the HTTP API cannot start without.
func (c *Config) RequireServer() error {
	if c.SessionSigningKey == "" {
		return fmt.Errorf("SESSION_SIGNING_KEY environment variable not set")
	}
	return nil
}

// RequireTelegram checks the settings the Telegram bot cannot start without.
func (c *Config) RequireTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.TelegramWebhookURL == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration, got %q", key, raw)
	}
	return d, nil
}

func int64ListFromEnv(key string) ([]int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
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
			return nil, fmt.Errorf("%s contains a non-integer id %q", key, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
