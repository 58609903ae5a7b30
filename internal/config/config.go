package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	AppPort        string
	AppEnv         string
	LogLevel       string
	RequestTimeout time.Duration

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	RazorpayBaseURL       string
	RazorpayTimeout       time.Duration

	JWTSecret string

	RedisAddr       string
	RedisPassword   string
	CatalogCacheTTL time.Duration
	SequenceBackend string

	KafkaBrokers []string
	KafkaTopic   string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),

		AppPort:        getEnv("APP_PORT", "8080"),
		AppEnv:         os.Getenv("APP_ENV"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 30*time.Second),

		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		RazorpayBaseURL:       getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
		RazorpayTimeout:       getDuration("RAZORPAY_TIMEOUT", 15*time.Second),

		JWTSecret: os.Getenv("JWT_SECRET"),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		CatalogCacheTTL: getDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		SequenceBackend: getEnv("SEQUENCE_BACKEND", "postgres"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "order-events"),
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Environment variables not loaded properly: %v", err)
	}

	return cfg
}

// Validate checks the settings the server cannot start without. Missing
// payment credentials are not fatal here; the gateway reports them as a
// configuration error on first use.
func (c *Config) Validate() error {
	if c.DBHost == "" {
		return errors.New("DB_HOST is required")
	}
	if c.SequenceBackend != "postgres" && c.SequenceBackend != "redis" {
		return errors.New("SEQUENCE_BACKEND must be postgres or redis")
	}
	if c.SequenceBackend == "redis" && c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required when SEQUENCE_BACKEND=redis")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// bare numbers are seconds
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
