package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// PlatformSharedSecret signs inbound platform webhooks.
	PlatformSharedSecret string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	WebhookWorkers       int
	WebhookMaxAttempts   int
	WebhookRetryBase     time.Duration
	WebhookRetryCap      time.Duration
	DedupRetention       time.Duration
	HandlerTimeout       time.Duration
	SchedulerRunInterval time.Duration

	GatewayBaseURL  string
	GatewaySecret   string
	GatewayTimeout  time.Duration
	BillingGraceDay int

	// SeedDefaultPlans bootstraps the plan catalog on startup so a
	// fresh install is usable without manual setup.
	SeedDefaultPlans bool
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "backoffice"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		PlatformSharedSecret: strings.TrimSpace(getenv("PLATFORM_SHARED_SECRET", "")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "backoffice"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		WebhookWorkers:       getenvInt("WEBHOOK_WORKERS", 4),
		WebhookMaxAttempts:   getenvInt("WEBHOOK_MAX_ATTEMPTS", 5),
		WebhookRetryBase:     getenvDuration("WEBHOOK_RETRY_BASE", 2*time.Second),
		WebhookRetryCap:      getenvDuration("WEBHOOK_RETRY_CAP", 5*time.Minute),
		DedupRetention:       getenvDuration("WEBHOOK_DEDUP_RETENTION", 72*time.Hour),
		HandlerTimeout:       getenvDuration("WEBHOOK_HANDLER_TIMEOUT", 30*time.Second),
		SchedulerRunInterval: getenvDuration("SCHEDULER_RUN_INTERVAL", time.Minute),

		GatewayBaseURL:  getenv("GATEWAY_BASE_URL", "https://gateway.local"),
		GatewaySecret:   strings.TrimSpace(getenv("GATEWAY_SECRET", "")),
		GatewayTimeout:  getenvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		BillingGraceDay: getenvInt("BILLING_GRACE_DAYS", 7),

		SeedDefaultPlans: getenvBool("SEED_DEFAULT_PLANS", true),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
