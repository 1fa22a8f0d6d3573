package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"vcf-drop/internal/domain"
	"vcf-drop/internal/export"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	Environment    string

	RedisURL        string
	SupabaseURL     string
	SupabaseAnonKey string
	DatabaseURL     string

	AdminPassword  string
	AdminJWTSecret string
	AdminTokenTTL  time.Duration

	TargetCount            int
	CountdownDuration      time.Duration
	CountdownCheckInterval time.Duration

	DefaultGroupURL  string
	DefaultGroupName string

	VCardOrg         string
	VCardNote        string
	ExportFilePrefix string

	SubmitRatePerMinute int
	SubmitRateBurst     int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:5174")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Environment:    getEnv("ENVIRONMENT", "production"),

		RedisURL:        getEnv("REDIS_URL", ""),
		SupabaseURL:     getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey: getEnv("SUPABASE_ANON_KEY", ""),
		DatabaseURL:     getEnv("DATABASE_URL", ""),

		AdminPassword:  getEnv("ADMIN_PASSWORD", "1"),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		AdminTokenTTL:  getDurationEnv("ADMIN_TOKEN_TTL", 12*time.Hour),

		TargetCount:            getIntEnv("TARGET_COUNT", domain.DefaultTargetCount),
		CountdownDuration:      getDurationEnv("COUNTDOWN_DURATION", domain.DefaultCountdownDuration),
		CountdownCheckInterval: getDurationEnv("COUNTDOWN_CHECK_INTERVAL", 5*time.Second),

		DefaultGroupURL:  getEnv("DEFAULT_GROUP_URL", domain.DefaultGroupURL),
		DefaultGroupName: getEnv("DEFAULT_GROUP_NAME", domain.DefaultGroupName),

		VCardOrg:         getEnv("VCARD_ORG", export.DefaultOrg),
		VCardNote:        getEnv("VCARD_NOTE", export.DefaultNote),
		ExportFilePrefix: getEnv("EXPORT_FILE_PREFIX", export.DefaultFilePrefix),

		SubmitRatePerMinute: getIntEnv("SUBMIT_RATE_PER_MINUTE", 30),
		SubmitRateBurst:     getIntEnv("SUBMIT_RATE_BURST", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the campaign cannot run with. A missing remote
// store is not an error; the service runs local-only.
func (c *Config) Validate() error {
	if c.TargetCount <= 0 {
		return fmt.Errorf("TARGET_COUNT must be positive, got %d", c.TargetCount)
	}
	if c.CountdownDuration <= 0 {
		return fmt.Errorf("COUNTDOWN_DURATION must be positive, got %s", c.CountdownDuration)
	}
	if c.CountdownCheckInterval <= 0 {
		return fmt.Errorf("COUNTDOWN_CHECK_INTERVAL must be positive, got %s", c.CountdownCheckInterval)
	}
	if c.AdminTokenTTL <= 0 {
		return fmt.Errorf("ADMIN_TOKEN_TTL must be positive, got %s", c.AdminTokenTTL)
	}
	if c.SubmitRatePerMinute <= 0 || c.SubmitRateBurst <= 0 {
		return fmt.Errorf("submit rate limit must be positive")
	}
	if c.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD must not be empty")
	}
	return nil
}

// SupabaseEnabled reports whether the hosted store is configured
func (c *Config) SupabaseEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseAnonKey != ""
}

// CloudEnabled reports whether any remote store is configured
func (c *Config) CloudEnabled() bool {
	return c.SupabaseEnabled() || c.DatabaseURL != ""
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseOrigins parses comma-separated origins into a slice
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// getIntEnv gets an integer environment variable with a fallback value.
// Unparseable values fall back.
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getDurationEnv accepts Go durations ("90s", "12h")
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
