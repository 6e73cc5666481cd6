// Package config loads cardsync's server configuration from the process
// environment, optionally seeded from a .env file.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-tunable knob the server needs at startup.
type Config struct {
	ListenAddr string

	PostgresDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Bucket string
	S3Region string

	BatchSize    int
	BatchTimeout time.Duration
}

// Load reads a .env file if present (missing is not an error, matching
// godotenv's own CLI behavior) and then builds a Config from the
// environment: Redis uses the teacher's addr/host+port fallback chain,
// Postgres uses DATABASE_URL or per-variable defaults, and the remaining
// settings are single env reads with defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env present but unreadable: %v", err)
	}

	cfg := &Config{
		ListenAddr: getEnvDefault("LISTEN_ADDR", ":8080"),

		PostgresDSN: postgresDSN(),

		RedisAddr:     redisAddr(),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		S3Bucket: os.Getenv("CARDSYNC_S3_BUCKET"),
		S3Region: getEnvDefault("CARDSYNC_S3_REGION", "us-east-1"),

		BatchSize:    getEnvInt("BATCH_SIZE", 10),
		BatchTimeout: getEnvDuration("BATCH_TIMEOUT_MS", 100*time.Millisecond),
	}

	return cfg, nil
}

// redisAddr mirrors the teacher's redis/connection.go fallback chain:
// REDIS_ADDR wins outright (docker-compose friendly); otherwise
// REDIS_HOST+REDIS_PORT are combined; otherwise localhost:6379.
func redisAddr() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	host := os.Getenv("REDIS_HOST")
	port := os.Getenv("REDIS_PORT")
	if host != "" && port != "" {
		return fmt.Sprintf("%s:%s", host, port)
	}
	return "localhost:6379"
}

// postgresDSN returns DATABASE_URL when it is set; otherwise it assembles a
// libpq connection string from discrete env vars, each falling back to the
// teacher's hardcoded local default.
func postgresDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}

	host := getEnvDefault("PGHOST", "localhost")
	port := getEnvDefault("PGPORT", "5432")
	user := getEnvDefault("PGUSER", "postgres")
	password := getEnvDefault("PGPASSWORD", "password")
	dbname := getEnvDefault("PGDATABASE", "cardsync")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, dbname)
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid int for %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid duration (ms) for %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
