package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	// Auth
	AuthJWTSecret string

	// Stripe payment gateway
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeBaseURL       string
	PaymentCurrency     string

	// Consultation rooms
	RoomTokenSecret string
	RoomTokenTTL    time.Duration

	// Realtime presence
	PresenceTTL time.Duration

	// SendGrid (optional confirmation emails)
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// HTTP server
	ShutdownGraceSeconds int
	MetricsEnabled       bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeBaseURL:       getEnv("STRIPE_BASE_URL", ""),
		PaymentCurrency:     getEnv("PAYMENT_CURRENCY", "usd"),

		RoomTokenSecret: getEnv("ROOM_TOKEN_SECRET", ""),
		RoomTokenTTL:    getEnvAsDuration("ROOM_TOKEN_TTL", time.Hour),

		PresenceTTL: getEnvAsDuration("PRESENCE_TTL", 90*time.Second),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Clinicore"),

		ShutdownGraceSeconds: getEnvAsInt("SHUTDOWN_GRACE_SECONDS", 30),
		MetricsEnabled:       getEnvAsBool("METRICS_ENABLED", true),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
