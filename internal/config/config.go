package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for the realtime layer.
const (
	DefaultLocationIdleTimeout  = 5 * time.Minute
	DefaultLocationHistoryLimit = 100
	DefaultWSMaxMessageSize     = 4096
	DefaultWSSendBuffer         = 256
)

// Config holds the service configuration read from the environment.
type Config struct {
	AppEnv   string // APP_ENV
	HTTPPort string // HTTP_PORT
	LogLevel string // LOG_LEVEL

	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	JWTSecret string

	TelegramBotToken    string
	TelegramAlertChatID int64

	LocationIdleTimeout  time.Duration
	LocationHistoryLimit int

	WSMaxMessageSize int64
	WSSendBuffer     int
}

// Load reads configuration from the environment, loading .env first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "user")
	cfg.DB.Password = getEnv("DB_PASSWORD", "password")
	cfg.DB.Name = getEnv("DB_NAME", "safecircle")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")

	var err error
	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if raw := os.Getenv("TELEGRAM_ALERT_CHAT_ID"); raw != "" {
		if cfg.TelegramAlertChatID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("TELEGRAM_ALERT_CHAT_ID: %w", err)
		}
	}
	if cfg.LocationIdleTimeout, err = getDuration("LOCATION_IDLE_TIMEOUT", DefaultLocationIdleTimeout); err != nil {
		return nil, err
	}
	if cfg.LocationHistoryLimit, err = getInt("LOCATION_HISTORY_LIMIT", DefaultLocationHistoryLimit); err != nil {
		return nil, err
	}
	if cfg.WSSendBuffer, err = getInt("WS_SEND_BUFFER", DefaultWSSendBuffer); err != nil {
		return nil, err
	}
	maxMsg, err := getInt("WS_MAX_MESSAGE_SIZE", DefaultWSMaxMessageSize)
	if err != nil {
		return nil, err
	}
	cfg.WSMaxMessageSize = int64(maxMsg)

	return cfg, nil
}

// Validate checks the values the service cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.LocationIdleTimeout <= 0 {
		return errors.New("LOCATION_IDLE_TIMEOUT must be positive")
	}
	if c.LocationHistoryLimit <= 0 {
		return errors.New("LOCATION_HISTORY_LIMIT must be positive")
	}
	if c.WSMaxMessageSize <= 0 || c.WSSendBuffer <= 0 {
		return errors.New("websocket limits must be positive")
	}
	return nil
}

// DSN returns the PostgreSQL connection string for gorm.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DB.Host, c.DB.User, c.DB.Password, c.DB.Name, c.DB.Port, c.DB.SSLMode)
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.HTTPPort
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
