package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// LLM provider
	LLM LLMConfig

	// Feature ingest providers
	Ingest IngestConfig

	// Candidate universe
	Universe UniverseConfig

	// Market calendar
	Market MarketConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// LLMConfig holds the generative backend configuration
// Provider 전환은 config 선택이지 코드 포크가 아님
type LLMConfig struct {
	Provider        string // anthropic, openai
	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIModel     string
	MaxTokens       int
	Timeout         time.Duration
}

// IngestConfig holds external feature-data provider configuration
type IngestConfig struct {
	BaseURL      string
	APIKey       string
	FeaturesPath string
	Timeout      time.Duration
	Retries      int
	RatePerSec   float64 // requests per second against the provider
}

// UniverseConfig holds candidate universe criteria
type UniverseConfig struct {
	MaxCandidates   int     // LLM에 전달할 후보 수 (200..500)
	MinCandidates   int     // 이 미만이면 run 실패 처리
	MinTradingValue float64 // 0이면 필터 없음
	Stub            bool    // DB 없이 합성 후보 생성
}

// MarketConfig holds exchange calendar configuration
type MarketConfig struct {
	Holidays   []time.Time // KR_MARKET_HOLIDAYS="YYYY-MM-DD,YYYY-MM-DD"
	CutoffHour int         // KST 기준 EOD 데이터 확정 시각
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "3000"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 5),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// LLM
		LLM: LLMConfig{
			Provider:        getEnv("LLM_PROVIDER", "anthropic"),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o"),
			MaxTokens:       getEnvAsInt("LLM_MAX_TOKENS", 8192),
			Timeout:         getEnvAsDuration("LLM_TIMEOUT", "120s"),
		},

		// Ingest
		Ingest: IngestConfig{
			BaseURL:      getEnv("DATA_PROVIDER_BASE_URL", ""),
			APIKey:       getEnv("DATA_PROVIDER_API_KEY", ""),
			FeaturesPath: getEnv("DATA_PROVIDER_FEATURES_PATH", "/v1/stock_features_daily"),
			Timeout:      getEnvAsDuration("DATA_PROVIDER_TIMEOUT", "30s"),
			Retries:      getEnvAsInt("DATA_PROVIDER_RETRIES", 3),
			RatePerSec:   getEnvAsFloat("DATA_PROVIDER_RATE_PER_SEC", 5),
		},

		// Universe
		Universe: UniverseConfig{
			MaxCandidates:   getEnvAsInt("UNIVERSE_MAX_CANDIDATES", 200),
			MinCandidates:   getEnvAsInt("UNIVERSE_MIN_CANDIDATES", 200),
			MinTradingValue: getEnvAsFloat("UNIVERSE_MIN_TRADING_VALUE", 0),
			Stub:            getEnvAsBool("UNIVERSE_STUB", false),
		},

		// Market
		Market: MarketConfig{
			Holidays:   getEnvAsDates("KR_MARKET_HOLIDAYS"),
			CutoffHour: getEnvAsInt("MARKET_CLOSE_CUTOFF_HOUR", 16),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.LLM.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of: anthropic, openai")
	}

	if c.Universe.MaxCandidates < 200 || c.Universe.MaxCandidates > 500 {
		return fmt.Errorf("UNIVERSE_MAX_CANDIDATES must be in [200, 500], got %d", c.Universe.MaxCandidates)
	}

	if c.Universe.MinCandidates < 0 || c.Universe.MinCandidates > c.Universe.MaxCandidates {
		return fmt.Errorf("UNIVERSE_MIN_CANDIDATES must be in [0, UNIVERSE_MAX_CANDIDATES]")
	}

	if c.Market.CutoffHour < 0 || c.Market.CutoffHour > 23 {
		return fmt.Errorf("MARKET_CLOSE_CUTOFF_HOUR must be in [0, 23]")
	}

	return nil
}

// RequireDatabaseURL returns the database URL or an error when unset.
// DB 없이 도는 커맨드(dry-run 등)가 있어서 validate()에서는 강제하지 않음
func (c *Config) RequireDatabaseURL() (string, error) {
	if c.Database.URL == "" {
		return "", fmt.Errorf("DATABASE_URL is required")
	}
	return c.Database.URL, nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsDates parses a comma-separated list of YYYY-MM-DD dates.
// 파싱 실패한 항목은 무시
func getEnvAsDates(key string) []time.Time {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}

	var out []time.Time
	for _, part := range strings.Split(valueStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.Parse("2006-01-02", part)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}
