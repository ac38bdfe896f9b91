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

	// SMS provider credentials for outbound sends and webhook verification.
	SMSAPIBaseURL    string
	SMSAPIKey        string
	SMSFromNumber    string
	WebhookSecret    string
	SendMaxAttempts  int
	SendBaseDelay    time.Duration
	RetryInterval    time.Duration
	RetryMaxAttempts int

	// Booking link issuer collaborator.
	BookingLinkURL   string
	BookingLinkToken string

	// Operational alerting.
	AlertEmail        string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// Admin transcript endpoint.
	AdminToken string

	SessionTTL time.Duration
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

		SMSAPIBaseURL:    getEnv("SMS_API_BASE_URL", "https://api.telnyx.com/v2/messages"),
		SMSAPIKey:        getEnv("SMS_API_KEY", ""),
		SMSFromNumber:    getEnv("SMS_FROM_NUMBER", ""),
		WebhookSecret:    getEnv("SMS_WEBHOOK_SECRET", ""),
		SendMaxAttempts:  getEnvAsInt("SMS_SEND_MAX_ATTEMPTS", 3),
		SendBaseDelay:    getEnvAsDuration("SMS_SEND_BASE_DELAY", time.Second),
		RetryInterval:    getEnvAsDuration("SMS_RETRY_INTERVAL", time.Minute),
		RetryMaxAttempts: getEnvAsInt("SMS_RETRY_MAX_ATTEMPTS", 5),

		BookingLinkURL:   getEnv("BOOKING_LINK_URL", ""),
		BookingLinkToken: getEnv("BOOKING_LINK_TOKEN", ""),

		AlertEmail:        getEnv("ALERT_EMAIL", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Selenas"),

		AdminToken: getEnv("ADMIN_TOKEN", ""),

		SessionTTL: getEnvAsDuration("SESSION_TTL", 7*24*time.Hour),
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
