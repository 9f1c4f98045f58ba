package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName       string
	AppVersion    string
	Environment   string
	HTTPAddr      string
	DefaultRestID int64

	OTLPEndpoint string

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
	DBConnMaxIdleTime int

	RateLimit RateLimitConfig

	FCMCredentialsFile string

	Bootstrap BootstrapConfig
}

// RateLimitConfig controls the redis-backed guards around point mutations.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RecalcAllRate  float64
	RecalcAllBurst int

	PointLockTTLSeconds int
}

// BootstrapConfig controls startup seeding for self-hosted deployments.
type BootstrapConfig struct {
	EnsureDefaultRestaurant bool
	EnsureDefaultTiers      bool
	EnsureDevAPIKey         bool
}

// Module provides Config to the fx graph.
var Module = fx.Provide(Load)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:       getenv("APP_SERVICE", "stampkit"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		DefaultRestID: getenvInt64("DEFAULT_RESTAURANT", 0),
		OTLPEndpoint:  getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "stampkit"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		RateLimit: RateLimitConfig{
			Enabled:             getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:           getenv("RATE_LIMIT_REDIS_ADDR", ""),
			RedisPassword:       getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:             getenvInt("RATE_LIMIT_REDIS_DB", 0),
			RecalcAllRate:       getenvFloat("RATE_LIMIT_RECALC_ALL_RATE", 0.1),
			RecalcAllBurst:      getenvInt("RATE_LIMIT_RECALC_ALL_BURST", 2),
			PointLockTTLSeconds: getenvInt("RATE_LIMIT_POINT_LOCK_TTL", 10),
		},

		FCMCredentialsFile: getenv("FCM_CREDENTIALS_FILE", ""),

		Bootstrap: BootstrapConfig{
			EnsureDefaultRestaurant: getenvBool("BOOTSTRAP_DEFAULT_RESTAURANT", true),
			EnsureDefaultTiers:      getenvBool("BOOTSTRAP_DEFAULT_TIERS", true),
			EnsureDevAPIKey:         getenvBool("BOOTSTRAP_DEV_API_KEY", false),
		},
	}
}

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
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

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
