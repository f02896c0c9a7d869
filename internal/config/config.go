package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/MagnunAVF/shortlink/internal/logger"
)

const (
	SinkQueue  = "queue"
	SinkDirect = "direct"
)

type Config struct {
	Env         string
	HTTPAddr    string
	AppDomain   string
	CORSOrigins string
	ProxyHeader string

	DBURL             string
	GormLogLevel      string
	GormSlowThreshold time.Duration

	Redis RedisConfig

	RabbitMQURL        string
	ClickQueue         string
	ClickSink          string
	ClickBatchSize     int
	ClickFlushInterval time.Duration

	IDServiceURL  string
	IDServiceAddr string
	NodeID        int64

	JWTSecret string
	TokenTTL  time.Duration

	RedirectLookupTimeout time.Duration
	RecordTimeout         time.Duration
	AnalyticsTimeout      time.Duration
	ShutdownTimeout       time.Duration

	Logging logger.Config
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LinkTTL  time.Duration
}

func defaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")
	v.SetDefault("API_SERVICE_PORT", ":8080")
	v.SetDefault("APP_DOMAIN", "http://localhost:8080")
	v.SetDefault("CORS_ORIGIN", "*")
	v.SetDefault("GORM_LOG_LEVEL", "warn")
	v.SetDefault("GORM_SLOW_THRESHOLD", "200ms")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_LINK_TTL", "1h")
	v.SetDefault("CLICK_QUEUE_NAME", "clicks")
	v.SetDefault("CLICK_SINK", SinkQueue)
	v.SetDefault("CLICK_BATCH_SIZE", 100)
	v.SetDefault("CLICK_FLUSH_INTERVAL", "2s")
	v.SetDefault("ID_SERVICE_PORT", ":8081")
	v.SetDefault("NODE_ID", 1)
	v.SetDefault("TOKEN_TTL", "1h")
	v.SetDefault("REDIRECT_LOOKUP_TIMEOUT", "500ms")
	v.SetDefault("RECORD_TIMEOUT", "5s")
	v.SetDefault("ANALYTICS_TIMEOUT", "10s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_OUTPUT", "stdout")
}

// Load reads the given .env files (missing files are ignored) and then the
// process environment. service names the binary in log lines.
func Load(service string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			slog.Debug(".env file not loaded, relying on env vars", "file", f, "err", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	cfg := &Config{
		Env:         v.GetString("ENV"),
		HTTPAddr:    v.GetString("API_SERVICE_PORT"),
		AppDomain:   strings.TrimRight(v.GetString("APP_DOMAIN"), "/"),
		CORSOrigins: v.GetString("CORS_ORIGIN"),
		ProxyHeader: v.GetString("PROXY_HEADER"),

		DBURL:             v.GetString("DB_URL"),
		GormLogLevel:      v.GetString("GORM_LOG_LEVEL"),
		GormSlowThreshold: v.GetDuration("GORM_SLOW_THRESHOLD"),

		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			LinkTTL:  v.GetDuration("REDIS_LINK_TTL"),
		},

		RabbitMQURL:        v.GetString("RABBITMQ_URL"),
		ClickQueue:         v.GetString("CLICK_QUEUE_NAME"),
		ClickSink:          strings.ToLower(v.GetString("CLICK_SINK")),
		ClickBatchSize:     v.GetInt("CLICK_BATCH_SIZE"),
		ClickFlushInterval: v.GetDuration("CLICK_FLUSH_INTERVAL"),

		IDServiceURL:  v.GetString("ID_SERVICE_URL"),
		IDServiceAddr: v.GetString("ID_SERVICE_PORT"),
		NodeID:        v.GetInt64("NODE_ID"),

		JWTSecret: v.GetString("JWT_SECRET"),
		TokenTTL:  v.GetDuration("TOKEN_TTL"),

		RedirectLookupTimeout: v.GetDuration("REDIRECT_LOOKUP_TIMEOUT"),
		RecordTimeout:         v.GetDuration("RECORD_TIMEOUT"),
		AnalyticsTimeout:      v.GetDuration("ANALYTICS_TIMEOUT"),
		ShutdownTimeout:       v.GetDuration("SHUTDOWN_TIMEOUT"),

		Logging: logger.Config{
			Level:      v.GetString("LOG_LEVEL"),
			Format:     v.GetString("LOG_FORMAT"),
			AddSource:  v.GetBool("LOG_ADD_SOURCE"),
			Service:    firstNonEmpty(v.GetString("LOG_SERVICE"), service),
			Env:        firstNonEmpty(v.GetString("LOG_ENV"), v.GetString("ENV")),
			Version:    v.GetString("VERSION"),
			Output:     v.GetString("LOG_OUTPUT"),
			MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
			MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
		},
	}

	if cfg.ClickSink != SinkQueue && cfg.ClickSink != SinkDirect {
		return nil, fmt.Errorf("CLICK_SINK must be %q or %q, got %q", SinkQueue, SinkDirect, cfg.ClickSink)
	}
	if cfg.ClickBatchSize <= 0 {
		return nil, errors.New("CLICK_BATCH_SIZE must be positive")
	}
	return cfg, nil
}

// ValidateAPI checks what the api-service cannot start without.
func (c *Config) ValidateAPI() error {
	var errs []error
	if c.DBURL == "" {
		errs = append(errs, errors.New("DB_URL is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.ClickSink == SinkQueue && c.RabbitMQURL == "" {
		errs = append(errs, errors.New("RABBITMQ_URL is required when CLICK_SINK=queue"))
	}
	return errors.Join(errs...)
}

func (c *Config) ValidateWorker() error {
	var errs []error
	if c.DBURL == "" {
		errs = append(errs, errors.New("DB_URL is required"))
	}
	if c.RabbitMQURL == "" {
		errs = append(errs, errors.New("RABBITMQ_URL is required"))
	}
	return errors.Join(errs...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
