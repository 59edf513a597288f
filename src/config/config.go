package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port               string
	LogLevel           string
	DatabasePath       string
	MaxUploadSizeBytes int64

	// TemplatesPath points to an optional YAML file of institution templates
	// merged over the built-in ones.
	TemplatesPath    string
	ImportSessionTTL time.Duration
	PreviewRowLimit  int

	BackendAPIURL  string
	BackendTimeout time.Duration

	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")
	Cfg = FromEnv()

	if err := Cfg.Validate(); err != nil {
		log.Fatalf("FATAL: invalid configuration: %v", err)
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, BackendAPI=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.BackendAPIURL)
}

// FromEnv builds a configuration from environment variables and defaults
// without loading any .env file.
func FromEnv() *AppConfig {
	return &AppConfig{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabasePath:       getEnv("DATABASE_PATH", "./imports.db"),
		MaxUploadSizeBytes: getEnvAsInt64("MAX_UPLOAD_SIZE_BYTES", 10*1024*1024),

		TemplatesPath:    getEnv("TEMPLATES_PATH", ""),
		ImportSessionTTL: getEnvAsDuration("IMPORT_SESSION_TTL", 30*time.Minute),
		PreviewRowLimit:  getEnvAsInt("PREVIEW_ROW_LIMIT", 25),

		BackendAPIURL:  strings.TrimRight(getEnv("BACKEND_API_URL", "http://localhost:8000"), "/"),
		BackendTimeout: getEnvAsDuration("BACKEND_TIMEOUT", 20*time.Second),

		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 30),
	}
}

func (c *AppConfig) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.MaxUploadSizeBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_SIZE_BYTES must be positive, got %d", c.MaxUploadSizeBytes))
	}
	if c.ImportSessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("IMPORT_SESSION_TTL must be positive, got %s", c.ImportSessionTTL))
	}
	if c.PreviewRowLimit <= 0 {
		errs = append(errs, fmt.Errorf("PREVIEW_ROW_LIMIT must be positive, got %d", c.PreviewRowLimit))
	}
	if c.BackendAPIURL == "" {
		errs = append(errs, errors.New("BACKEND_API_URL must not be empty"))
	}
	if c.BackendTimeout <= 0 {
		errs = append(errs, fmt.Errorf("BACKEND_TIMEOUT must be positive, got %s", c.BackendTimeout))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive, got %g/%d", c.RateLimitRPS, c.RateLimitBurst))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid number for %s ('%s'), using default: %g", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
