package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	// Webhook credentials
	AppSecret   string // shared secret for xhub signature verification
	VerifyToken string // subscription verification handshake token

	// Custom-integration mode: a single static token instead of
	// per-community tokens resolved from the database.
	AppID       string
	AccessToken string

	// BaseURL is used to build callback and asset URLs (extension
	// launch pages, document links, icons).
	BaseURL string

	AdminUserID string

	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	// GraphURL overrides the Graph API base URL (tests, sandboxes).
	GraphURL string

	// ValidateXHub gates rejection of callbacks with a bad or missing
	// signature. Recording still happens either way.
	ValidateXHub bool
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		Env:          getEnv("ENV", "development"),
		AppSecret:    os.Getenv("APP_SECRET"),
		VerifyToken:  os.Getenv("VERIFY_TOKEN"),
		AppID:        os.Getenv("APP_ID"),
		AccessToken:  os.Getenv("ACCESS_TOKEN"),
		BaseURL:      getEnv("BASE_URL", "https://localhost:8080/"),
		AdminUserID:  os.Getenv("ADMIN_USER_ID"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		SQLitePath:   os.Getenv("SQLITE_PATH"),
		RedisURL:     os.Getenv("REDIS_URL"),
		GraphURL:     getEnv("GRAPH_URL", "https://graph.facebook.com"),
		ValidateXHub: getEnv("VALIDATE_XHUB", "true") != "false",
	}

	// In production, require the webhook credentials
	if cfg.Env == "production" {
		if cfg.AppSecret == "" {
			panic("APP_SECRET is required in production")
		}
		if cfg.VerifyToken == "" {
			panic("VERIFY_TOKEN is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
