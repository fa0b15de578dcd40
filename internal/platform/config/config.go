// Package config builds runtime configuration from environment variables so
// main stays lean. Each backing service gets its own struct; empty URLs mean
// the dependency is not configured and the in-memory fallback is used.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "fundforge/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	AdminToken      string
	JWTSigningKey   string
	ShutdownTimeout time.Duration
}

// Postgres captures connection pool settings for the durable campaign store.
type Postgres struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Redis captures cache settings for projections and request deduplication.
type Redis struct {
	URL            string
	PoolSize       int
	MinIdleConns   int
	DialTimeout    time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	ProjectionTTL  time.Duration
	IdempotencyTTL time.Duration
}

// Kafka captures the audit event stream settings.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Config is the full runtime configuration.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
}

// FromEnv reads configuration from the environment, applying development
// defaults for anything unset.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            envString("FUNDFORGE_ADDR", ":8080"),
			AdminToken:      envString("FUNDFORGE_ADMIN_TOKEN", "dev-admin-token"),
			JWTSigningKey:   envString("FUNDFORGE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			ShutdownTimeout: envDuration("FUNDFORGE_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: Postgres{
			URL:             os.Getenv("FUNDFORGE_POSTGRES_URL"),
			MaxOpenConns:    envInt("FUNDFORGE_POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("FUNDFORGE_POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("FUNDFORGE_POSTGRES_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: Redis{
			URL:            os.Getenv("FUNDFORGE_REDIS_URL"),
			PoolSize:       envInt("FUNDFORGE_REDIS_POOL_SIZE", 10),
			MinIdleConns:   envInt("FUNDFORGE_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:    envDuration("FUNDFORGE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:    envDuration("FUNDFORGE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:   envDuration("FUNDFORGE_REDIS_WRITE_TIMEOUT", 3*time.Second),
			ProjectionTTL:  envDuration("FUNDFORGE_PROJECTION_TTL", 30*time.Second),
			IdempotencyTTL: envDuration("FUNDFORGE_IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Kafka: Kafka{
			Brokers: envList("FUNDFORGE_KAFKA_BROKERS"),
			Topic:   envString("FUNDFORGE_KAFKA_AUDIT_TOPIC", "fundforge.audit"),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	return pstrings.DedupeAndTrim(strings.Split(v, ","))
}
