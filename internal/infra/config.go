package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv              string
	Port                string
	DatabaseURL         string
	JWTSecret           string
	GeoIPDBPath         string
	DefaultLocale       string
	WorkerBaseURL       string
	WorkerAPIKey        string
	WorkerWebhookSecret string
	WorkerTimeout       time.Duration
	ReconcilePollEvery  time.Duration
	ReconcileStaleAfter time.Duration
	ReconcileBatchSize  int
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPIdleTimeout     time.Duration
	RateLimitPerMin     int
	DBMaxConns          int32
	CORSAllowedOrigins  []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		GeoIPDBPath:         os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:       getEnv("DEFAULT_LOCALE", "en"),
		WorkerBaseURL:       getEnv("WORKER_BASE_URL", "https://render.example.com/api/v1"),
		WorkerAPIKey:        os.Getenv("WORKER_API_KEY"),
		WorkerWebhookSecret: os.Getenv("WORKER_WEBHOOK_SECRET"),
		WorkerTimeout:       time.Second * time.Duration(getEnvInt("WORKER_TIMEOUT_SECONDS", 30)),
		ReconcilePollEvery:  time.Second * time.Duration(getEnvInt("RECONCILE_POLL_SECONDS", 30)),
		ReconcileStaleAfter: time.Second * time.Duration(getEnvInt("RECONCILE_STALE_AFTER_SECONDS", 120)),
		ReconcileBatchSize:  getEnvInt("RECONCILE_BATCH_SIZE", 50),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:     getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		DBMaxConns:          int32(getEnvInt("DB_MAX_CONNS", 10)),
		CORSAllowedOrigins:  splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.WorkerTimeout <= 0 {
		return nil, fmt.Errorf("WORKER_TIMEOUT_SECONDS must be positive")
	}

	return cfg, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
