package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config aggregates all runtime settings for the evidence pipeline service.
type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Exports   ExportsConfig
	Media     MediaConfig
	Canvas    CanvasConfig
	Formatter FormatterConfig
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

// ExportsConfig governs document generation and storage of generated payloads.
type ExportsConfig struct {
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	WorkerConcurrency int
	WorkerRetries     int
	MaxImageWidthMM   float64
	MaxImageHeightMM  float64
}

// MediaConfig tunes the binary object storage client.
type MediaConfig struct {
	StorageDir   string
	FetchTimeout time.Duration
	BaseURL      string
}

// CanvasConfig bounds annotation session behaviour.
type CanvasConfig struct {
	ImageLoadTimeout time.Duration
	MaxSessions      int
}

// FormatterConfig points at the external text-formatting service.
type FormatterConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Load reads configuration from the environment with .env support.
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
		if !errors.As(err, &notFound) {
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

	cfg.Exports = ExportsConfig{
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
		MaxImageWidthMM:   v.GetFloat64("EXPORTS_MAX_IMAGE_WIDTH_MM"),
		MaxImageHeightMM:  v.GetFloat64("EXPORTS_MAX_IMAGE_HEIGHT_MM"),
	}

	cfg.Media = MediaConfig{
		StorageDir:   v.GetString("MEDIA_STORAGE_DIR"),
		FetchTimeout: parseDuration(v.GetString("MEDIA_FETCH_TIMEOUT"), 10*time.Second),
		BaseURL:      v.GetString("MEDIA_BASE_URL"),
	}

	cfg.Canvas = CanvasConfig{
		ImageLoadTimeout: parseDuration(v.GetString("CANVAS_IMAGE_LOAD_TIMEOUT"), 5*time.Second),
		MaxSessions:      v.GetInt("CANVAS_MAX_SESSIONS"),
	}

	cfg.Formatter = FormatterConfig{
		BaseURL: v.GetString("FORMATTER_BASE_URL"),
		Timeout: parseDuration(v.GetString("FORMATTER_TIMEOUT"), 8*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "evidence")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 2)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)
	v.SetDefault("EXPORTS_MAX_IMAGE_WIDTH_MM", 120.0)
	v.SetDefault("EXPORTS_MAX_IMAGE_HEIGHT_MM", 90.0)

	v.SetDefault("MEDIA_STORAGE_DIR", "./media")

	v.SetDefault("CANVAS_MAX_SESSIONS", 64)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
