package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Env      string
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Stream   StreamConfig
	Webhook  WebhookConfig
	Exchange ExchangeConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  string // для WebSocket CheckOrigin, "*" = любой
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Host         string
	Port         int
	Name         string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	EncryptionKey     string
	AdminUsername     string
	AdminPasswordHash string // bcrypt
	UserHeader        string // заголовок с ID пользователя от upstream прокси
}

// StreamConfig - SSE поток логов
type StreamConfig struct {
	Interval      time.Duration // период полной отправки снимка
	KeepAlive     time.Duration // период комментариев-keepalive
	SnapshotLimit int           // записей в снимке
	RetryMillis   int           // значение поля retry: для EventSource
}

// WebhookConfig - прием вебхуков
type WebhookConfig struct {
	Rate         float64 // вебхуков/сек на автоматизацию
	Burst        float64
	MaxBodyBytes int64
	LogRetention time.Duration // сколько хранить логи вебхуков
	JanitorEvery time.Duration // период очистки логов и лимитеров
}

// ExchangeConfig - Coinbase API
type ExchangeConfig struct {
	CoinbaseBaseURL string
	RequestTimeout  time.Duration
	RateLimit       float64 // запросов/сек к публичному API
	PairsCacheDir   string  // пусто = in-memory badger
	PairsCacheTTL   time.Duration
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level      string
	Format     string
	Output     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load загружает конфигурацию из переменных окружения
//
// Файл .env (если есть) подгружается заранее и не перекрывает
// уже заданные переменные.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("ENV", "production"),
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnv("ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			Name:         getEnv("DB_NAME", "tradehook"),
			User:         getEnv("DB_USER", "tradehook"),
			Password:     getEnv("DB_PASSWORD", ""),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Security: SecurityConfig{
			EncryptionKey:     getEnv("ENCRYPTION_KEY", ""),
			AdminUsername:     getEnv("ADMIN_USERNAME", ""),
			AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
			UserHeader:        getEnv("USER_HEADER", "X-User-ID"),
		},
		Stream: StreamConfig{
			Interval:      getEnvAsDuration("STREAM_INTERVAL", 2*time.Second),
			KeepAlive:     getEnvAsDuration("STREAM_KEEPALIVE", 15*time.Second),
			SnapshotLimit: getEnvAsInt("STREAM_SNAPSHOT_LIMIT", 50),
			RetryMillis:   getEnvAsInt("STREAM_RETRY_MS", 5000),
		},
		Webhook: WebhookConfig{
			Rate:         getEnvAsFloat("WEBHOOK_RATE", 1),
			Burst:        getEnvAsFloat("WEBHOOK_BURST", 5),
			MaxBodyBytes: int64(getEnvAsInt("WEBHOOK_MAX_BODY_BYTES", 64*1024)),
			LogRetention: getEnvAsDuration("LOG_RETENTION", 720*time.Hour),
			JanitorEvery: getEnvAsDuration("JANITOR_INTERVAL", 10*time.Minute),
		},
		Exchange: ExchangeConfig{
			CoinbaseBaseURL: getEnv("COINBASE_BASE_URL", "https://api.exchange.coinbase.com"),
			RequestTimeout:  getEnvAsDuration("COINBASE_TIMEOUT", 10*time.Second),
			RateLimit:       getEnvAsFloat("COINBASE_RATE_LIMIT", 8),
			PairsCacheDir:   getEnv("PAIRS_CACHE_DIR", ""),
			PairsCacheTTL:   getEnvAsDuration("PAIRS_CACHE_TTL", 10*time.Minute),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stderr"),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 30),
		},
	}

	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsDevelopment - режим разработки (admin без пароля допустим)
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_KEY обязателен для шифрования API ключей бирж
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for encrypting API keys")
	}
	if len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	if c.Security.UserHeader == "" {
		return fmt.Errorf("USER_HEADER cannot be empty")
	}

	if c.IsDevelopment() {
		return nil
	}

	if c.Security.AdminUsername == "" || c.Security.AdminPasswordHash == "" {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD_HASH are required outside development")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", c.Database.MaxOpenConns)
	}

	if c.Stream.Interval <= 0 {
		return fmt.Errorf("STREAM_INTERVAL must be positive, got %v", c.Stream.Interval)
	}
	if c.Stream.KeepAlive <= 0 {
		return fmt.Errorf("STREAM_KEEPALIVE must be positive, got %v", c.Stream.KeepAlive)
	}
	if c.Stream.SnapshotLimit < 1 || c.Stream.SnapshotLimit > 200 {
		return fmt.Errorf("STREAM_SNAPSHOT_LIMIT must be between 1 and 200, got %d", c.Stream.SnapshotLimit)
	}
	if c.Stream.RetryMillis < 0 {
		return fmt.Errorf("STREAM_RETRY_MS cannot be negative, got %d", c.Stream.RetryMillis)
	}

	if c.Webhook.Rate <= 0 {
		return fmt.Errorf("WEBHOOK_RATE must be positive, got %v", c.Webhook.Rate)
	}
	if c.Webhook.Burst < 1 {
		return fmt.Errorf("WEBHOOK_BURST must be at least 1, got %v", c.Webhook.Burst)
	}
	if c.Webhook.MaxBodyBytes <= 0 {
		return fmt.Errorf("WEBHOOK_MAX_BODY_BYTES must be positive, got %d", c.Webhook.MaxBodyBytes)
	}

	if c.Webhook.LogRetention <= 0 {
		return fmt.Errorf("LOG_RETENTION must be positive, got %v", c.Webhook.LogRetention)
	}
	if c.Webhook.JanitorEvery <= 0 {
		return fmt.Errorf("JANITOR_INTERVAL must be positive, got %v", c.Webhook.JanitorEvery)
	}

	if c.Exchange.RequestTimeout <= 0 {
		return fmt.Errorf("COINBASE_TIMEOUT must be positive, got %v", c.Exchange.RequestTimeout)
	}
	if c.Exchange.PairsCacheTTL <= 0 {
		return fmt.Errorf("PAIRS_CACHE_TTL must be positive, got %v", c.Exchange.PairsCacheTTL)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := cast.ToIntE(os.Getenv(key))
	if os.Getenv(key) == "" || err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := cast.ToFloat64E(os.Getenv(key))
	if os.Getenv(key) == "" || err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
