// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Catalog drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds all application configuration.
type Config struct {
	Port                string
	FrontendURL         string
	MaxImageBytes       int64
	MaxRequestBodyBytes int64
	SessionTTL          time.Duration
	Catalog             CatalogConfig
	LLM                 LLMConfig
	RateLimit           RateLimitConfig
	ConversationLog     ConversationLogConfig
}

// CatalogConfig selects and configures the product table backend.
type CatalogConfig struct {
	Driver      string
	DBPath      string
	DatabaseURL string
	Table       string
	SeedPath    string
	SeedDefault bool
}

// LLMConfig configures the hosted chat-completion provider.
type LLMConfig struct {
	Provider     string
	OpenAIAPIKey string
	OpenAIURL    string
	OpenAIModel  string
	GoogleAPIKey string
	GeminiModel  string
	MaxTokens    int
	Timeout      time.Duration
}

// RateLimitConfig controls per-client throttling of chat turns.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
	// MaxOpenFiles bounds the per-session log files kept open at once.
	MaxOpenFiles  int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		FrontendURL:         getEnv("FRONTEND_URL", ""),
		MaxImageBytes:       int64(getEnvInt("MAX_IMAGE_BYTES", 4<<20)),
		MaxRequestBodyBytes: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 6<<20)),
		SessionTTL:          getEnvDuration("SESSION_TTL", 60*time.Minute),
		Catalog: CatalogConfig{
			Driver:      strings.ToLower(getEnv("CATALOG_DRIVER", DriverSQLite)),
			DBPath:      getEnv("DB_PATH", "./data/catalog.db"),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			Table:       getEnv("PRODUCT_TABLE", "products"),
			SeedPath:    getEnv("CATALOG_SEED_PATH", ""),
			SeedDefault: getEnvBool("CATALOG_SEED_DEFAULT", true),
		},
		LLM: LLMConfig{
			Provider:     strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
			OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
			OpenAIURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o"),
			GoogleAPIKey: getEnv("GOOGLE_API_KEY", ""),
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			MaxTokens:    getEnvInt("LLM_MAX_TOKENS", 400),
			Timeout:      getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
			MaxOpenFiles:  getEnvInt("CONVERSATION_LOG_MAX_OPEN_FILES", 64),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
//
//nolint:gocyclo // Flat list of independent checks.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be > 0")
	}
	if c.MaxRequestBodyBytes < c.MaxImageBytes {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be >= MAX_IMAGE_BYTES")
	}
	switch c.Catalog.Driver {
	case DriverSQLite:
		if c.Catalog.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case DriverPostgres:
		if c.Catalog.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL cannot be empty when CATALOG_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown CATALOG_DRIVER %q", c.Catalog.Driver)
	}
	if c.Catalog.Table == "" {
		return fmt.Errorf("PRODUCT_TABLE cannot be empty")
	}
	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY cannot be empty")
		}
	case ProviderGemini:
		if c.LLM.GoogleAPIKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY cannot be empty")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.MaxOpenFiles <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_MAX_OPEN_FILES must be > 0")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins the API accepts.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	origins := []string{}
	for _, o := range strings.Split(c.FrontendURL, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
