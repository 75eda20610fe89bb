package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingAPIKey is returned by Validate when no generative API key is set.
// The dashboard cannot render anything but setup instructions without it.
var ErrMissingAPIKey = errors.New("config: API_KEY is required")

// Config holds application configuration
type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	// Backend
	DatabaseURL         string
	AppointmentsTable   string
	AppointmentsChannel string

	// Fact generation
	GeminiAPIKey    string
	GeminiModelID   string
	BedrockModelID  string
	FactTimeout     time.Duration
	RecentListLimit int

	// Anthropic fallback, used when no Bedrock model is configured
	AnthropicAPIKey  string
	AnthropicModelID string

	// Periodic full refresh alongside the change feed; empty disables it
	ResyncSchedule string

	// POST /api/refresh limit per client IP
	RefreshRate  float64
	RefreshBurst int

	// AWS (Bedrock fallback)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Settings persistence
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SettingsKey   string

	// Email notifications
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string
	NotifyEmailTo     string

	// Slack notifications
	SlackBotToken  string
	SlackChannelID string

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DatabaseURL:         getEnv("DATABASE_URL", ""),
		AppointmentsTable:   getEnv("APPOINTMENTS_TABLE", "Appointments"),
		AppointmentsChannel: getEnv("APPOINTMENTS_CHANNEL", "appointments_changes"),

		GeminiAPIKey:    strings.TrimSpace(getEnv("API_KEY", getEnv("GEMINI_API_KEY", ""))),
		GeminiModelID:   getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		BedrockModelID:  getEnv("BEDROCK_MODEL_ID", ""),
		FactTimeout:     getEnvAsDuration("FACT_TIMEOUT", 30*time.Second),
		RecentListLimit: getEnvAsInt("RECENT_APPOINTMENTS_LIMIT", 5),

		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModelID: getEnv("ANTHROPIC_MODEL_ID", ""),

		ResyncSchedule: strings.TrimSpace(getEnv("RESYNC_SCHEDULE", "*/15 * * * *")),
		RefreshRate:    getEnvAsFloat("REFRESH_RATE", 0.2),
		RefreshBurst:   getEnvAsInt("REFRESH_BURST", 3),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SettingsKey:   getEnv("SETTINGS_KEY", "dashboard-settings"),

		EmailProvider:     strings.ToLower(getEnv("EMAIL_PROVIDER", "sendgrid")),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Appointment Dashboard"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "Appointment Dashboard"),
		NotifyEmailTo:     getEnv("NOTIFY_EMAIL_TO", ""),

		SlackBotToken:  getEnv("SLACK_BOT_TOKEN", ""),
		SlackChannelID: getEnv("SLACK_CHANNEL_ID", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
}

// Validate checks the hard preconditions for serving the dashboard.
func (c *Config) Validate() error {
	if c == nil || strings.TrimSpace(c.GeminiAPIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
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

func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
