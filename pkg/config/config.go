package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration
type Config struct {
	Environment        string
	ServerPort         int
	DatabaseHost       string
	DatabasePort       int
	DatabaseUser       string
	DatabasePassword   string
	DatabaseName       string
	DatabaseSSLMode    string
	RedisURL           string
	JWTSecret          string
	SessionTTLMinutes  int
	BcryptCost         int
	BootstrapTenant    string
	BootstrapEmail     string
	BootstrapPassword  string
	LogLevel           string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	ExtractionWorkers  int
}

// Load reads configuration from environment variables. JWT_SECRET has no
// default; a server without one refuses to start rather than sign tokens with
// a guessable value.
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DATABASE_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_PORT: %w", err)
	}

	sessionTTL, err := strconv.Atoi(getEnv("SESSION_TTL_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL_MINUTES: %w", err)
	}
	if sessionTTL <= 0 {
		return nil, errors.New("SESSION_TTL_MINUTES must be positive")
	}

	bcryptCost, err := strconv.Atoi(getEnv("BCRYPT_COST", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}

	rateLimit, err := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "120"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
	}

	workers, err := strconv.Atoi(getEnv("EXTRACTION_WORKERS", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid EXTRACTION_WORKERS: %w", err)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return &Config{
		Environment:       getEnv("ENVIRONMENT", "development"),
		ServerPort:        port,
		DatabaseHost:      getEnv("DATABASE_HOST", "localhost"),
		DatabasePort:      dbPort,
		DatabaseUser:      getEnv("DATABASE_USER", "policydesk"),
		DatabasePassword:  getEnv("DATABASE_PASSWORD", "dev"),
		DatabaseName:      getEnv("DATABASE_NAME", "policydesk"),
		DatabaseSSLMode:   getEnv("DATABASE_SSLMODE", "disable"),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:         secret,
		SessionTTLMinutes: sessionTTL,
		BcryptCost:        bcryptCost,
		BootstrapTenant:   getEnv("BOOTSTRAP_TENANT_NAME", "Default Tenant"),
		BootstrapEmail:    getEnv("BOOTSTRAP_ADMIN_EMAIL", "admin@policydesk.local"),
		BootstrapPassword: getEnv("BOOTSTRAP_ADMIN_PASSWORD", "changeme-now"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}),
		RateLimitPerMinute: rateLimit,
		ExtractionWorkers:  workers,
	}, nil
}

// DatabaseURL renders the postgres connection URL used by the migrator.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DatabaseUser, c.DatabasePassword, c.DatabaseHost, c.DatabasePort,
		c.DatabaseName, c.DatabaseSSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
