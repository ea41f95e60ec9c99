package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	HTTP        HTTPConfig
	Logs        LogConfig
	Store       StoreConfig
	Auth        AuthConfig
	AI          AIConfig
	Idempotency IdempotencyConfig
}

type HTTPConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Style string // "json" or "console"
	Level string
}

type StoreConfig struct {
	Driver        string // "postgres" or "memory"
	PostgresURL   string
	AutoMigrate   bool
	CommitTimeout time.Duration
	// SeedUserIDs are created as freemium users at startup when missing.
	SeedUserIDs []string
}

type AuthConfig struct {
	JWTSecret string
}

type AIConfig struct {
	// Provider "mock" replaces every vendor with canned local responses.
	Provider       string
	OpenAIKey      string
	OpenAIBaseURL  string
	GeminiKey      string
	CreativeModel  string
	StructureModel string
	SchemaModel    string
	PassTimeout    time.Duration
	PassAttempts   int
}

type IdempotencyConfig struct {
	RedisURL string
	TTL      time.Duration
}

func LoadConfig() (*Config, error) {
	var errs []error

	cfg := &Config{
		HTTP: HTTPConfig{
			Port:            getEnvWithDefault("PORT", "8080"),
			ShutdownTimeout: durationEnv("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second, &errs),
		},
		Logs: LogConfig{
			Style: getEnvWithDefault("LOG_STYLE", "json"),
			Level: getEnvWithDefault("LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(getEnvWithDefault("STORE_DRIVER", "postgres")),
			PostgresURL:   os.Getenv("POSTGRES_URL"),
			AutoMigrate:   boolEnv("DB_AUTO_MIGRATE", true, &errs),
			CommitTimeout: durationEnv("COMMIT_TIMEOUT", 5*time.Second, &errs),
			SeedUserIDs:   listEnv("STORE_SEED_USER_IDS"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		AI: AIConfig{
			Provider:       strings.ToLower(getEnvWithDefault("AI_PROVIDER", "vendors")),
			OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
			GeminiKey:      os.Getenv("GEMINI_API_KEY"),
			CreativeModel:  os.Getenv("AI_CREATIVE_MODEL"),
			StructureModel: os.Getenv("AI_STRUCTURE_MODEL"),
			SchemaModel:    os.Getenv("AI_SCHEMA_MODEL"),
			PassTimeout:    durationEnv("AI_PASS_TIMEOUT", 45*time.Second, &errs),
			PassAttempts:   intEnv("AI_PASS_MAX_ATTEMPTS", 2, &errs),
		},
		Idempotency: IdempotencyConfig{
			RedisURL: os.Getenv("REDIS_URL"),
			TTL:      durationEnv("IDEMPOTENCY_TTL", 24*time.Hour, &errs),
		},
	}

	errs = append(errs, cfg.Validate())
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks required fields and consistency.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "postgres":
		if c.Store.PostgresURL == "" {
			errs = append(errs, errors.New("POSTGRES_URL is required when STORE_DRIVER=postgres"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	switch c.AI.Provider {
	case "vendors":
		if c.AI.OpenAIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required"))
		}
		if c.AI.GeminiKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required"))
		}
	case "mock":
	default:
		errs = append(errs, fmt.Errorf("unsupported AI_PROVIDER %q", c.AI.Provider))
	}

	if c.AI.PassAttempts < 1 {
		errs = append(errs, errors.New("AI_PASS_MAX_ATTEMPTS must be at least 1"))
	}

	return errors.Join(errs...)
}

// getEnvWithDefault returns environment variable or default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func listEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durationEnv(key string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func intEnv(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func boolEnv(key string, def bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}
