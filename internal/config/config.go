package config

import (
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config collects every environment-driven knob in one place.
type Config struct {
	Port    string
	AppName string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	DBSchema   string

	JWTSecret     string
	WebhookSecret string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ProviderTimeout time.Duration

	ExpiryEnabled bool
	ExpiryAfter   time.Duration
	ExpirySweep   time.Duration

	PushEndpoint string

	AllowedOrigins []string
	LogLevel       string
}

func Load() Config {
	return Config{
		Port:    getenv("PORT", "8080"),
		AppName: getenv("APP_NAME", "EMIRAFRIK"),

		DBUser:     os.Getenv("PORTAL_DB_USERNAME"),
		DBPassword: os.Getenv("PORTAL_DB_PASSWORD"),
		DBHost:     getenv("PORTAL_DB_HOST", "localhost"),
		DBPort:     getenv("PORTAL_DB_PORT", "5432"),
		DBName:     os.Getenv("PORTAL_DB_DATABASE"),
		DBSchema:   getenv("PORTAL_DB_SCHEMA", "public"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getint("REDIS_DB", 0),

		ProviderTimeout: getduration("PROVIDER_TIMEOUT", 5*time.Second),

		ExpiryEnabled: getbool("PAYMENT_EXPIRY_ENABLED", false),
		ExpiryAfter:   getduration("PAYMENT_EXPIRY_AFTER", 24*time.Hour),
		ExpirySweep:   getduration("PAYMENT_EXPIRY_SWEEP", 10*time.Minute),

		PushEndpoint: getenv("PUSH_ENDPOINT", "https://exp.host/--/api/v2/push/send"),

		AllowedOrigins: []string{getenv("ALLOWED_ORIGIN", "http://localhost:5173")},
		LogLevel:       getenv("LOG_LEVEL", "info"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getbool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
