package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/circuitbreaker"
)

type Config struct {
	HTTPPort           string
	RequestTimeout     time.Duration
	PayWaitTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	LogLevel  string
	LogFormat string

	Currency        string
	MaxDeclines     int
	CheckoutIdleTTL time.Duration
	ReaperInterval  time.Duration
	CartIdleTTL     time.Duration

	// SlotBackend is redis, mongo or memory.
	SlotBackend   string
	SlotTTL       time.Duration
	RedisAddr     string
	RedisPassword string
	MongoURI      string
	MongoDBName   string

	CatalogDBPath string

	// OrdersBackend is postgres or memory.
	OrdersBackend    string
	DBHost           string
	DBPort           int
	DBUser           string
	DBPassword       string
	DBName           string
	ReconcileTimeout time.Duration

	// KafkaBrokers empty means flags go straight to the in-process consumer.
	KafkaBrokers []string

	ProviderURL     string
	ProviderTimeout time.Duration
	ProviderBreaker circuitbreaker.Settings
	SandboxEnabled  bool
	SandboxPort     string
	// SandboxDecider is random or token.
	SandboxDecider string
}

func loadConfig() *Config {
	breaker := circuitbreaker.DefaultSettings("payment-provider")
	breaker.FailureThreshold = uint32(getEnvInt("PROVIDER_BREAKER_THRESHOLD", int(breaker.FailureThreshold)))
	breaker.Timeout = getEnvDuration("PROVIDER_BREAKER_TIMEOUT", breaker.Timeout)

	sandboxPort := getEnv("SANDBOX_PORT", "8090")

	return &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		PayWaitTimeout:     getEnvDuration("PAY_WAIT_TIMEOUT", 20*time.Second),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: 1 << 20, // 1MB

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		Currency:        getEnv("CURRENCY", "USD"),
		MaxDeclines:     getEnvInt("MAX_DECLINES", 3),
		CheckoutIdleTTL: getEnvDuration("CHECKOUT_IDLE_TTL", 30*time.Minute),
		ReaperInterval:  getEnvDuration("CHECKOUT_REAPER_INTERVAL", time.Minute),
		CartIdleTTL:     getEnvDuration("CART_IDLE_TTL", time.Hour),

		SlotBackend:   getEnv("CART_SLOT_BACKEND", "redis"),
		SlotTTL:       getEnvDuration("CART_SLOT_TTL", 7*24*time.Hour),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:   getEnv("MONGO_DB_NAME", "cartdb"),

		CatalogDBPath: getEnv("CATALOG_DB_PATH", "./catalog.db"),

		OrdersBackend:    getEnv("ORDERS_BACKEND", "postgres"),
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBPort:           getEnvInt("DB_PORT", 5432),
		DBUser:           getEnv("DB_USER", "postgres"),
		DBPassword:       getEnv("DB_PASSWORD", "postgres"),
		DBName:           getEnv("DB_NAME", "ecommerce"),
		ReconcileTimeout: getEnvDuration("RECONCILE_TIMEOUT", 10*time.Second),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),

		ProviderURL:     getEnv("PROVIDER_URL", "http://localhost:"+sandboxPort),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second),
		ProviderBreaker: breaker,
		SandboxEnabled:  getEnvBool("SANDBOX_ENABLED", true),
		SandboxPort:     sandboxPort,
		SandboxDecider:  getEnv("SANDBOX_DECIDER", "random"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
