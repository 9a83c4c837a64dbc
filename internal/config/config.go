package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	DatabaseURL string

	UseMemoryQueue bool
	WorkerCount    int

	AWSRegion            string
	AWSAccessKeyID       string
	AWSSecretAccessKey   string
	AWSEndpointOverride  string
	CRMSyncQueueURL      string
	BookingQueueURL      string
	NotificationQueueURL string

	LLMProvider            string
	BedrockModelID         string
	BedrockFallbackModelID string
	GeminiAPIKey           string
	GeminiModel            string
	LLMTimeout             time.Duration
	LLMMaxTokens           int

	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioFromNumber    string
	TwilioWebhookSecret string

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	CRMProvider   string
	CRMBaseURL    string
	CRMAPIKey     string
	CRMLocationID string
	CRMCalendarID string

	RedisAddr          string
	RedisPassword      string
	RedisTLS           bool
	DealershipCacheTTL time.Duration

	AdminJWTSecret string

	StaleConversationAge time.Duration
	CleanupInterval      time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),

		AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:       getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:  getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		CRMSyncQueueURL:      getEnv("CRM_SYNC_QUEUE_URL", ""),
		BookingQueueURL:      getEnv("BOOKING_QUEUE_URL", ""),
		NotificationQueueURL: getEnv("NOTIFICATION_QUEUE_URL", ""),

		LLMProvider:            strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "bedrock"))),
		BedrockModelID:         getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-5-sonnet-20241022-v2:0"),
		BedrockFallbackModelID: getEnv("BEDROCK_FALLBACK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),
		GeminiAPIKey:           getEnv("GEMINI_API_KEY", ""),
		GeminiModel:            getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		LLMTimeout:             getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		LLMMaxTokens:           getEnvAsInt("LLM_MAX_TOKENS", 1024),

		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:    getEnv("TWILIO_FROM_NUMBER", ""),
		TwilioWebhookSecret: getEnv("TWILIO_WEBHOOK_SECRET", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Shiftly AI"),

		CRMProvider:   strings.ToLower(strings.TrimSpace(getEnv("CRM_PROVIDER", "gohighlevel"))),
		CRMBaseURL:    getEnv("CRM_BASE_URL", "https://rest.gohighlevel.com/v1"),
		CRMAPIKey:     getEnv("CRM_API_KEY", ""),
		CRMLocationID: getEnv("CRM_LOCATION_ID", ""),
		CRMCalendarID: getEnv("CRM_CALENDAR_ID", ""),

		RedisAddr:          getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		DealershipCacheTTL: getEnvAsDuration("DEALERSHIP_CACHE_TTL", 15*time.Minute),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		StaleConversationAge: getEnvAsDuration("STALE_CONVERSATION_AGE", 90*24*time.Hour),
		CleanupInterval:      getEnvAsDuration("CLEANUP_INTERVAL", 6*time.Hour),
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
