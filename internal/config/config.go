package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	DatabaseURL    string
	StorageBackend string
	ReplicaURLs    []string

	CacheAddrs []string

	JWTSecret     string
	SessionExpiry time.Duration
	Audience      string

	RetryAfter int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	sessionExpiry, err := time.ParseDuration(getEnv("SESSION_EXPIRY", "24h"))
	if err != nil {
		sessionExpiry = 24 * time.Hour
	}

	retryAfter, err := strconv.Atoi(getEnv("RETRY_AFTER", "120"))
	if err != nil {
		retryAfter = 120
	}

	return &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		StorageBackend: getEnv("STORAGE_BACKEND", "sql"),
		ReplicaURLs:    splitList(getEnv("REPLICA_URLS", "")),

		CacheAddrs: splitList(getEnv("CACHE_ADDRS", "")),

		JWTSecret:     getEnvOrPanic("JWT_SECRET"),
		SessionExpiry: sessionExpiry,
		Audience:      getEnv("VERIFY_AUDIENCE", ""),

		RetryAfter: retryAfter,
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvOrPanic(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		panic("required environment variable not set: " + key)
	}
	return value
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
