package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the guidance service.
type Config struct {
	// Server configuration
	Port string

	// Speech-instruction service
	SpeechBaseURL string
	SpeechAPIKey  string
	SpeechTimeout time.Duration

	// Frame-quality service
	QualityBaseURL      string
	QualityAPIKey       string
	QualityTimeout      time.Duration
	QualityResetTimeout time.Duration

	// Health probes against both backing services
	HealthTimeout time.Duration

	// Session lifecycle
	SessionIdleTimeout time.Duration
	CleanupInterval    time.Duration

	// Optional catalog override file (YAML); empty means built-in steps
	CatalogPath string

	// Language used when a session does not specify one
	DefaultLanguage string
}

// Load loads configuration from environment variables. A .env file is
// honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		SpeechBaseURL:       getEnv("SPEECH_BASE_URL", "http://localhost:8091"),
		SpeechAPIKey:        getEnv("SPEECH_API_KEY", ""),
		SpeechTimeout:       getEnvDuration("SPEECH_TIMEOUT", 5*time.Second),
		QualityBaseURL:      getEnv("QUALITY_BASE_URL", "http://localhost:8092"),
		QualityAPIKey:       getEnv("QUALITY_API_KEY", ""),
		QualityTimeout:      getEnvDuration("QUALITY_TIMEOUT", 5*time.Second),
		QualityResetTimeout: getEnvDuration("QUALITY_RESET_TIMEOUT", 3*time.Second),
		HealthTimeout:       getEnvDuration("HEALTH_TIMEOUT", 3*time.Second),
		SessionIdleTimeout:  getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		CleanupInterval:     getEnvDuration("CLEANUP_INTERVAL", 5*time.Minute),
		CatalogPath:         getEnv("CATALOG_PATH", ""),
		DefaultLanguage:     getEnv("DEFAULT_LANGUAGE", "en"),
	}

	if cfg.SessionIdleTimeout <= 0 {
		return nil, fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive")
	}
	if cfg.CleanupInterval <= 0 {
		return nil, fmt.Errorf("CLEANUP_INTERVAL must be positive")
	}

	return cfg, nil
}

// Helper functions for getting environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
