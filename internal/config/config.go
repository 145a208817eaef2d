package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort string

	// Database
	DatabaseType string
	DatabasePath string
	DatabaseURL  string

	// Auth
	JWTSecret         string
	JWTIssuer         string
	TokenDuration     time.Duration
	AdminPasswordHash string

	// Pairing policy
	JoinRequestTTL time.Duration

	// Change notifications
	AMQPURL      string
	AMQPExchange string

	// Email (SES)
	AWSRegion    string
	SESFromEmail string
	SESFromName  string
	AppBaseURL   string

	// Spreadsheet export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	RateLimitPerMinute int
	LogLevel           slog.Level
}

// LoadDotEnv loads a .env file if one exists. Missing files are ignored.
func LoadDotEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		ServerPort: getEnv("PORT", "8080"),

		DatabaseType: getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath: getEnv("DATABASE_PATH", "./data/usos.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		JWTIssuer:         getEnv("JWT_ISSUER", "usos"),
		TokenDuration:     getEnvDuration("TOKEN_DURATION", 24*time.Hour),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),

		JoinRequestTTL: getEnvDuration("JOIN_REQUEST_TTL", 0),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "usos.events"),

		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "US OS"),
		AppBaseURL:   getEnv("APP_BASE_URL", "http://localhost:3000"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Expenses"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		LogLevel:           getEnvLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// Validate checks the configuration and reports every problem at once
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.ServerPort); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.ServerPort))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.DatabaseType) {
	case "sqlite", "sqlite3", "":
		if c.DatabasePath == "" {
			problems = append(problems, "DATABASE_PATH cannot be empty when using sqlite")
		}
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			problems = append(problems, fmt.Sprintf("DATABASE_URL is required when using %s", c.DatabaseType))
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported database type '%s': must be sqlite, postgres or mysql", c.DatabaseType))
	}

	if len(c.JWTSecret) < 32 {
		problems = append(problems, "JWT_SECRET must be at least 32 characters")
	}

	if c.JoinRequestTTL < 0 {
		problems = append(problems, fmt.Sprintf("invalid join request TTL %v: must not be negative", c.JoinRequestTTL))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" && c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
		problems = append(problems, "GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON is required for spreadsheet export")
	}

	if c.RateLimitPerMinute < 1 {
		problems = append(problems, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(value)); err == nil {
			return level
		}
	}
	return defaultValue
}
