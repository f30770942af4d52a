package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Generation   GenerationConfig   `mapstructure:"generation"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Image        ImageConfig        `mapstructure:"image"`
	Log          LogConfig          `mapstructure:"log"`
	DedupWindow  time.Duration      `mapstructure:"dedup_window"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

// LLMConfig 語言模型供應商設定
type LLMConfig struct {
	Provider          string        `mapstructure:"provider"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	ConversationModel string        `mapstructure:"conversation_model"`
	RecipeModel       string        `mapstructure:"recipe_model"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Temperature       float64       `mapstructure:"temperature"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxConcurrent     int           `mapstructure:"max_concurrent"`
}

// GenerationConfig 食譜生成迴圈設定
type GenerationConfig struct {
	MaxAttempts     int `mapstructure:"max_attempts"`
	TargetCount     int `mapstructure:"target_count"`
	QuickMaxMinutes int `mapstructure:"quick_max_minutes"`
	RetrievalLimit  int `mapstructure:"retrieval_limit"`
}

// CacheConfig 緩存配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Backend         string        `mapstructure:"backend"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RedisConfig Redis 連線設定
type RedisConfig struct {
	Addr           string `mapstructure:"addr"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"`
	ConnectRetries uint   `mapstructure:"connect_retries"`
}

// DatabaseConfig 資料庫設定
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	SeedFile string `mapstructure:"seed_file"`
}

// AuthConfig 認證設定
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// ConversationConfig 會話保留設定
type ConversationConfig struct {
	MaxPerUser int `mapstructure:"max_per_user"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// ImageConfig 食譜圖片設定
type ImageConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// LogConfig 日誌設定
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// 加載 .env 文件，不存在時只用環境變數與預設值
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// 設定環境變數前綴
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定環境變量
	bindings := map[string]string{
		"llm.provider":           "LLM_PROVIDER",
		"llm.api_key":            "LLM_API_KEY",
		"llm.base_url":           "LLM_BASE_URL",
		"llm.conversation_model": "CONVERSATION_MODEL",
		"llm.recipe_model":       "RECIPE_MODEL",
		"llm.timeout":            "LLM_TIMEOUT",
		"server.port":            "PORT",
		"database.driver":        "DATABASE_DRIVER",
		"database.dsn":           "DATABASE_URL",
		"database.seed_file":     "RECIPE_SEED_FILE",
		"auth.jwt_secret":        "JWT_SECRET",
		"cache.enabled":          "CACHE_ENABLED",
		"cache.backend":          "CACHE_BACKEND",
		"redis.addr":             "REDIS_ADDR",
		"redis.password":         "REDIS_PASSWORD",
		"rate_limit.enabled":     "RATE_LIMIT_ENABLED",
		"rate_limit.requests":    "RATE_LIMIT_REQUESTS",
		"rate_limit.window":      "RATE_LIMIT_WINDOW",
		"dedup_window":           "DEDUP_WINDOW",
		"log.level":              "LOG_LEVEL",
		"log.file":               "LOG_FILE",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}
	// Gemini 沿用 GOOGLE_API_KEY
	if os.Getenv("LLM_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") != "" {
		v.Set("llm.api_key", os.Getenv("GOOGLE_API_KEY"))
	}

	// 解析設定
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// MaskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "todays-meal")

	// 伺服器設定（SSE 需要較長的寫入逾時）
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "5m")
	v.SetDefault("server.max_body_bytes", 1<<20)

	// LLM 設定
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.conversation_model", "gemini-2.5-flash")
	v.SetDefault("llm.recipe_model", "gemini-2.5-flash")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_concurrent", 8)

	// 食譜生成設定
	v.SetDefault("generation.max_attempts", 6)
	v.SetDefault("generation.target_count", 3)
	v.SetDefault("generation.quick_max_minutes", 20)
	v.SetDefault("generation.retrieval_limit", 5)

	// 快取設定
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_interval", "10m")

	// Redis 設定
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)

	// 資料庫設定
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/todays-meal.db")

	// 會話保留
	v.SetDefault("conversation.max_per_user", 10)

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 30)
	v.SetDefault("rate_limit.window", "1m")

	// 圖片設定
	v.SetDefault("image.base_url", "/images/recipes")

	// 日誌設定
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("dedup_window", "1s")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	// 驗證伺服器設定
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	switch config.LLM.Provider {
	case "openrouter", "gemini":
	default:
		return fmt.Errorf("unsupported llm provider %q", config.LLM.Provider)
	}
	if config.LLM.APIKey == "" {
		return fmt.Errorf("llm api key is required")
	}
	if config.LLM.Timeout <= 0 {
		return fmt.Errorf("invalid llm timeout")
	}
	if config.LLM.MaxConcurrent <= 0 {
		return fmt.Errorf("invalid llm max concurrent")
	}

	if config.Generation.MaxAttempts <= 0 || config.Generation.TargetCount <= 0 {
		return fmt.Errorf("generation attempts and target count must be positive")
	}
	if config.Generation.TargetCount > config.Generation.MaxAttempts {
		return fmt.Errorf("generation target count exceeds max attempts")
	}

	// 驗證快取設定
	if config.Cache.Enabled {
		if config.Cache.Backend != "memory" && config.Cache.Backend != "redis" {
			return fmt.Errorf("unsupported cache backend %q", config.Cache.Backend)
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
		if config.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("invalid cache cleanup interval")
		}
	}

	switch config.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}

	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if config.Conversation.MaxPerUser <= 0 {
		return fmt.Errorf("invalid conversation max per user")
	}

	return nil
}
