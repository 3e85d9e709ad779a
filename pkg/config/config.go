package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	CORS         CORSConfig
	Log          LogConfig
	Availability AvailabilityConfig
	Booking      BookingConfig
	Export       ExportConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AvailabilityConfig tunes the availability snapshot cache and timezone fallback.
type AvailabilityConfig struct {
	CacheEnabled    bool
	CacheTTL        time.Duration
	DefaultTimezone string
}

// BookingConfig governs the public booking submission endpoint.
type BookingConfig struct {
	RateLimitPerMinute int
	RateLimitBurst     int
	RateLimitIdleTTL   time.Duration
	QueueWorkers       int
	QueueRetries       int
	QueueRetryDelay    time.Duration
}

// ExportConfig bounds availability report generation.
type ExportConfig struct {
	MaxRangeDays int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Availability = AvailabilityConfig{
		CacheEnabled:    v.GetBool("ENABLE_AVAILABILITY_CACHE"),
		CacheTTL:        parseDuration(v.GetString("AVAILABILITY_CACHE_TTL"), time.Minute),
		DefaultTimezone: v.GetString("AVAILABILITY_DEFAULT_TIMEZONE"),
	}

	cfg.Booking = BookingConfig{
		RateLimitPerMinute: v.GetInt("BOOKING_RATE_LIMIT_PER_MINUTE"),
		RateLimitBurst:     v.GetInt("BOOKING_RATE_LIMIT_BURST"),
		RateLimitIdleTTL:   parseDuration(v.GetString("BOOKING_RATE_LIMIT_IDLE_TTL"), 10*time.Minute),
		QueueWorkers:       v.GetInt("BOOKING_QUEUE_WORKERS"),
		QueueRetries:       v.GetInt("BOOKING_QUEUE_RETRIES"),
		QueueRetryDelay:    parseDuration(v.GetString("BOOKING_QUEUE_RETRY_DELAY"), time.Second),
	}

	cfg.Export = ExportConfig{
		MaxRangeDays: v.GetInt("EXPORT_MAX_RANGE_DAYS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "law_analytics")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_AVAILABILITY_CACHE", true)
	v.SetDefault("AVAILABILITY_CACHE_TTL", "1m")
	v.SetDefault("AVAILABILITY_DEFAULT_TIMEZONE", "UTC")

	v.SetDefault("BOOKING_RATE_LIMIT_PER_MINUTE", 20)
	v.SetDefault("BOOKING_RATE_LIMIT_BURST", 5)
	v.SetDefault("BOOKING_RATE_LIMIT_IDLE_TTL", "10m")
	v.SetDefault("BOOKING_QUEUE_WORKERS", 2)
	v.SetDefault("BOOKING_QUEUE_RETRIES", 3)
	v.SetDefault("BOOKING_QUEUE_RETRY_DELAY", "1s")

	v.SetDefault("EXPORT_MAX_RANGE_DAYS", 92)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
