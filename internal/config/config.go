package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port         string
	Env          string
	DatabaseURL  string
	KafkaBrokers []string
	JWTSecret    string
	TokenTTL     time.Duration

	// InitialBalance seeds every newly opened account. Deterministic and
	// configurable rather than randomized.
	InitialBalance decimal.Decimal

	// TransferCeiling rejects absurdly large transfer amounts up front.
	TransferCeiling decimal.Decimal
}

// Load reads .env if present, then the environment. A missing .env is not
// an error in production.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "production"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}
	cfg.TokenTTL = ttl

	cfg.InitialBalance, err = decimal.NewFromString(getEnv("INITIAL_BALANCE", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid INITIAL_BALANCE: %w", err)
	}
	if cfg.InitialBalance.IsNegative() {
		return nil, fmt.Errorf("INITIAL_BALANCE must not be negative")
	}

	cfg.TransferCeiling, err = decimal.NewFromString(getEnv("TRANSFER_CEILING", "1000000"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSFER_CEILING: %w", err)
	}
	if !cfg.TransferCeiling.IsPositive() {
		return nil, fmt.Errorf("TRANSFER_CEILING must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
