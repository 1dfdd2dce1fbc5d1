// Package config loads and validates service configuration.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Payment  PaymentConfig
	Fraud    FraudConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// PaymentConfig holds the two external payment rail integrations.
type PaymentConfig struct {
	CheckoutBaseURL string
	CheckoutAPIKey  string
	CryptoBaseURL   string
	CryptoAPIKey    string
	// CaptureTimeout is a soft limit on the capture round-trip. Hitting it
	// surfaces a "taking too long" message; it never cancels the in-flight
	// server-side capture.
	CaptureTimeout    time.Duration
	PlatformFeeRate   float64
	StalePendingAfter time.Duration
}

// FraudConfig is the single named configuration block for the pattern
// scanner heuristics. Thresholds are fixed here, never guessed per call.
type FraudConfig struct {
	DisputeMinOrders    int     // multiple_disputes: minimum orders involving the user
	DisputeRatio        float64 // multiple_disputes: disputes/orders ratio above which the flag fires
	NewAccountMaxAge    time.Duration
	NewAccountMaxOrders int // suspicious_activity: orders above which a young account is flagged
	RapidWindow         time.Duration
	RapidOrderCount     int     // rapid_transactions: orders within RapidWindow
	LowPriceFactor      float64 // low_pricing: fraction of the same-game mean price
	LowPriceMinPeers    int     // low_pricing: minimum comparable listings
	FastDeliveryWindow  time.Duration
	FastDeliveryCount   int // account_manipulation: completed orders delivered within the window
	ScanConcurrency     int // bounded workers for the batch loop
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:      normalizeRedisURL(getEnv("REDIS_URL", "localhost:6379")),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "change-this-secret"),
			Expiration: getDurationEnv("JWT_EXPIRATION", 15*time.Minute),
		},
		Payment: PaymentConfig{
			CheckoutBaseURL:   getEnv("CHECKOUT_API_URL", "https://api.checkout.example.com"),
			CheckoutAPIKey:    getEnv("CHECKOUT_API_KEY", ""),
			CryptoBaseURL:     getEnv("CRYPTO_API_URL", "https://api.cryptopay.example.com"),
			CryptoAPIKey:      getEnv("CRYPTO_API_KEY", ""),
			CaptureTimeout:    getDurationEnv("PAYMENT_CAPTURE_TIMEOUT", 60*time.Second),
			PlatformFeeRate:   getFloatEnv("PLATFORM_FEE_RATE", 0.05),
			StalePendingAfter: getDurationEnv("STALE_PENDING_AFTER", 24*time.Hour),
		},
		Fraud: DefaultFraudConfig(),
	}
}

// DefaultFraudConfig returns the fixed heuristic thresholds.
func DefaultFraudConfig() FraudConfig {
	return FraudConfig{
		DisputeMinOrders:    3,
		DisputeRatio:        0.30,
		NewAccountMaxAge:    7 * 24 * time.Hour,
		NewAccountMaxOrders: 10,
		RapidWindow:         time.Hour,
		RapidOrderCount:     5,
		LowPriceFactor:      0.30,
		LowPriceMinPeers:    3,
		FastDeliveryWindow:  5 * time.Minute,
		FastDeliveryCount:   3,
		ScanConcurrency:     getIntEnv("FRAUD_SCAN_CONCURRENCY", 4),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func normalizeRedisURL(url string) string {
	// Strip redis:// or redis+tls:// scheme if present
	if strings.HasPrefix(url, "redis+tls://") {
		return url[len("redis+tls://"):]
	}
	if strings.HasPrefix(url, "redis://") {
		return url[len("redis://"):]
	}
	return url
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
