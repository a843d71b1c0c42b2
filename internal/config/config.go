package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// LINE Messaging API
	LineChannelSecret      string
	LineChannelAccessToken string
	LineAPIBaseURL         string

	// Record store. Empty DatabaseURL selects the in-memory repository.
	DatabaseURL    string
	RecordsTimeout time.Duration

	// Session store
	SessionBackend string
	SessionTTL     time.Duration
	SessionSweep   time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool

	// Dialogue
	RecordKeywords  []string
	HistoryKeywords []string
	StrictDateTime  bool

	// Advice generation
	LLMProvider         string
	LLMFallbackProvider string
	AdviceTimeout       time.Duration
	AdviceMaxTokens     int
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	BedrockModelID      string
	OpenAIAPIKey        string
	OpenAIModel         string
	GeminiAPIKey        string
	GeminiModel         string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "5000"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		LineChannelSecret:      getEnv("LINE_CHANNEL_SECRET", ""),
		LineChannelAccessToken: getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
		LineAPIBaseURL:         getEnv("LINE_API_BASE_URL", "https://api.line.me"),


		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RecordsTimeout: getEnvAsDuration("RECORDS_TIMEOUT", 5*time.Second),

		SessionBackend: strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", "memory"))),
		SessionTTL:     getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		SessionSweep:   getEnvAsDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute),
		RedisAddr:      getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),

		RecordKeywords:  getEnvAsList("RECORD_KEYWORDS", []string{"record", "記録"}),
		HistoryKeywords: getEnvAsList("HISTORY_KEYWORDS", []string{"history", "履歴"}),
		StrictDateTime:  getEnvAsBool("STRICT_DATE_TIME", false),

		LLMProvider:         strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "bedrock"))),
		LLMFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("LLM_FALLBACK_PROVIDER", ""))),
		AdviceTimeout:       getEnvAsDuration("ADVICE_TIMEOUT", 45*time.Second),
		AdviceMaxTokens:     getEnvAsInt("ADVICE_MAX_TOKENS", 1500),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-5-sonnet-20240620-v1:0"),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
	}
}

// Validate reports every missing setting the server cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.LineChannelSecret) == "" {
		missing = append(missing, "LINE_CHANNEL_SECRET")
	}
	if strings.TrimSpace(c.LineChannelAccessToken) == "" {
		missing = append(missing, "LINE_CHANNEL_ACCESS_TOKEN")
	}
	switch c.LLMProvider {
	case "openai":
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	case "gemini":
		if strings.TrimSpace(c.GeminiAPIKey) == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	case "bedrock":
		if strings.TrimSpace(c.BedrockModelID) == "" {
			missing = append(missing, "BEDROCK_MODEL_ID")
		}
	default:
		return fmt.Errorf("config: unsupported LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.LLMFallbackProvider {
	case "", "openai", "gemini", "bedrock":
	default:
		return fmt.Errorf("config: unsupported LLM_FALLBACK_PROVIDER %q", c.LLMFallbackProvider)
	}
	switch c.SessionBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unsupported SESSION_BACKEND %q", c.SessionBackend)
	}
	if len(missing) > 0 {
		return errors.New("config: missing required config: " + strings.Join(missing, ", "))
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

// getEnvAsList splits a comma-separated variable, dropping blank entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
