package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
	Security      SecurityConfig
	Pool          PoolConfig
	Credits       CreditsConfig
	Inference     InferenceConfig
	Channels      ChannelsConfig
	RateLimit     RateLimitConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the conversation-cache configuration
type RedisConfig struct {
	URL     string
	Enabled bool
	TTL     time.Duration
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// SecurityConfig holds secrets and auth configuration
type SecurityConfig struct {
	// PoolCipherKey seals bot tokens at rest. 32 bytes, base64 or hex encoded.
	PoolCipherKey string
	AdminAPIKey   string
	TokenSecret   string
	TokenIssuer   string
	TokenLifetime time.Duration
}

// PoolConfig holds resource pool configuration
type PoolConfig struct {
	LowThreshold int
}

// CreditsConfig holds credit accounting configuration
type CreditsConfig struct {
	StarterCredits      int64
	LowBalanceThreshold int64
	StarterTierCredits  int64
	GrowthTierCredits   int64
	PAYGTierCredits     int64
}

// InferenceConfig holds the language-model backend configuration
type InferenceConfig struct {
	BaseURL      string
	ChatEndpoint string
	APIKey       string
	Model        string
	Timeout      time.Duration
}

// ChannelsConfig holds per-channel credit costs and the chat-bot provider API
type ChannelsConfig struct {
	ChatAPIBase    string
	ChatAPITimeout time.Duration
	WebhookSecret  string
	PublicBaseURL  string
	EmailDomain    string
	CostChatBot    int64
	CostEmail      int64
	CostVoice      int64
	CostSMS        int64
	CostWebWidget  int64
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "agentdesk"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "agentdesk"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", "redis://localhost:6379"),
			Enabled: parseBool("REDIS_ENABLED", false),
			TTL:     parseDuration("REDIS_MEMORY_TTL", "10m"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "agentdesk"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		Security: SecurityConfig{
			PoolCipherKey: getEnv("POOL_CIPHER_KEY", ""),
			AdminAPIKey:   getEnv("ADMIN_API_KEY", ""),
			TokenSecret:   getEnv("TOKEN_SECRET", ""),
			TokenIssuer:   getEnv("TOKEN_ISSUER", "agentdesk"),
			TokenLifetime: parseDuration("TOKEN_LIFETIME", "720h"),
		},
		Pool: PoolConfig{
			LowThreshold: parseInt("LOW_POOL_THRESHOLD", 10),
		},
		Credits: CreditsConfig{
			StarterCredits:      parseInt64("STARTER_CREDITS", 50),
			LowBalanceThreshold: parseInt64("LOW_BALANCE_THRESHOLD", 50),
			StarterTierCredits:  parseInt64("STARTER_PLAN_CREDITS", 500),
			GrowthTierCredits:   parseInt64("GROWTH_PLAN_CREDITS", 2000),
			PAYGTierCredits:     parseInt64("PAYG_PLAN_CREDITS", 300),
		},
		Inference: InferenceConfig{
			BaseURL:      getEnv("INFERENCE_API_URL", "http://localhost:8089"),
			ChatEndpoint: getEnv("INFERENCE_CHAT_ENDPOINT", "/v1/chat/completions"),
			APIKey:       getEnv("INFERENCE_API_KEY", ""),
			Model:        getEnv("INFERENCE_MODEL", ""),
			Timeout:      parseDuration("INFERENCE_TIMEOUT", "20s"),
		},
		Channels: ChannelsConfig{
			ChatAPIBase:    getEnv("CHAT_API_BASE", "https://api.telegram.org"),
			ChatAPITimeout: parseDuration("CHAT_API_TIMEOUT", "10s"),
			WebhookSecret:  getEnv("CHAT_WEBHOOK_SECRET", ""),
			PublicBaseURL:  getEnv("PUBLIC_BASE_URL", ""),
			EmailDomain:    getEnv("AGENT_EMAIL_DOMAIN", "mail.agentdesk.io"),
			CostChatBot:    parseInt64("COST_CHAT_BOT_MSG", 1),
			CostEmail:      parseInt64("COST_EMAIL", 2),
			CostVoice:      parseInt64("COST_VOICE_PER_MIN", 2),
			CostSMS:        parseInt64("COST_SMS", 1),
			CostWebWidget:  parseInt64("COST_WEB_WIDGET", 1),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 10)),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Security.PoolCipherKey == "" {
		return fmt.Errorf("POOL_CIPHER_KEY is required")
	}
	if c.Security.TokenSecret == "" {
		return fmt.Errorf("TOKEN_SECRET is required")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
