package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/apperr"
)

type Config struct {
	// Server
	Port        string
	CORSOrigins []string
	LogLevel    string

	// Per client IP limit on the public auth endpoints; a zero rate
	// disables it.
	AuthRatePerSecond float64
	AuthRateBurst     int

	// Database
	DB DBConfig

	// Auth
	Tokens TokenConfig

	// Housekeeping: spent or expired refresh sessions are kept for
	// SessionRetention past expiry, then removed every SweepInterval.
	SessionRetention time.Duration
	SweepInterval    time.Duration
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds the postgres connection string gorm expects.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode,
	)
}

// TokenConfig carries the signing secrets and lifetimes for both credential
// kinds. It is injected into the token codec; nothing reads secrets from the
// environment after Load.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Load reads configuration from the environment (and .env, if present).
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		AuthRatePerSecond: getEnvFloat("AUTH_RATE_PER_SECOND", 1),
		AuthRateBurst:     getEnvInt("AUTH_RATE_BURST", 10),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getEnv("DB_NAME", "hackernews"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Tokens: TokenConfig{
			AccessSecret:  os.Getenv("JWT_ACCESS_SECRET"),
			RefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
			AccessTTL:     getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTTL:    getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		},
		SessionRetention: getEnvDuration("SESSION_RETENTION", 24*time.Hour),
		SweepInterval:    getEnvDuration("SWEEP_INTERVAL", time.Hour),
	}
}

// Validate reports missing secrets or nonsensical lifetimes as a
// configuration error. Callers should abort startup on failure.
func (c *Config) Validate() error {
	return c.Tokens.Validate()
}

func (c TokenConfig) Validate() error {
	const op = "config.Validate"
	switch {
	case c.AccessSecret == "":
		return apperr.Configuration(op, "JWT_ACCESS_SECRET is not set")
	case c.RefreshSecret == "":
		return apperr.Configuration(op, "JWT_REFRESH_SECRET is not set")
	case c.AccessSecret == c.RefreshSecret:
		return apperr.Configuration(op, "access and refresh secrets must differ")
	case c.AccessTTL <= 0:
		return apperr.Configuration(op, "ACCESS_TOKEN_TTL must be positive")
	case c.RefreshTTL <= 0:
		return apperr.Configuration(op, "REFRESH_TOKEN_TTL must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		// Bare integers are read as seconds.
		if n, err := strconv.Atoi(val); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
