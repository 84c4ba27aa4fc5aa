// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"meroku/pkg/domain"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	AdminToken    string
	JWTSigningKey string
	JWTIssuer     string
}

// RedisConfig captures cache connection settings. An empty URL disables the
// reserved-name cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

// KafkaConfig captures event publishing settings. No brokers means transfer
// events are only logged.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Namespace captures the fee and duration schedule of one ledger.
type Namespace struct {
	TokenLife time.Duration
	RenewLife time.Duration
	MintFees  int64
	RenewFees int64
}

// Config is the full runtime configuration.
type Config struct {
	Server      Server
	PostgresURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Owner       domain.Address
	AddressBook string
	Namespaces  map[domain.Namespace]Namespace
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Server: Server{
			Addr:          getEnv("MEROKU_ADDR", ":8080"),
			AdminToken:    getEnv("MEROKU_ADMIN_TOKEN", ""),
			JWTSigningKey: getEnv("MEROKU_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     getEnv("MEROKU_JWT_ISSUER", "meroku"),
		},
		PostgresURL: getEnv("MEROKU_POSTGRES_URL", ""),
		Redis: RedisConfig{
			URL:          getEnv("MEROKU_REDIS_URL", ""),
			PoolSize:     getEnvInt("MEROKU_REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("MEROKU_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			CacheTTL:     getEnvDuration("MEROKU_RESERVED_CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(getEnv("MEROKU_KAFKA_BROKERS", "")),
			Topic:   getEnv("MEROKU_KAFKA_TOPIC", "meroku.transfers"),
		},
		AddressBook: getEnv("MEROKU_ADDRESS_BOOK", "addresses.json"),
		Namespaces:  make(map[domain.Namespace]Namespace),
	}

	if owner, err := domain.ParseAddress(getEnv("MEROKU_OWNER_ADDRESS", "")); err == nil {
		cfg.Owner = owner
	}

	defaults := Namespace{
		TokenLife: getEnvDuration("MEROKU_TOKEN_LIFE", 365*24*time.Hour),
		RenewLife: getEnvDuration("MEROKU_RENEW_LIFE", 30*24*time.Hour),
		MintFees:  int64(getEnvInt("MEROKU_MINT_FEES", 0)),
		RenewFees: int64(getEnvInt("MEROKU_RENEW_FEES", 0)),
	}
	for _, ns := range domain.Namespaces() {
		cfg.Namespaces[ns] = defaults
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
