package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the binaries read from the environment.
type Config struct {
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	CatalogCacheTTL   time.Duration
	LowStockThreshold int
}

// Load reads a .env file when present, then the process environment.
// Missing optional values fall back to sane local defaults.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		CatalogCacheTTL:   time.Duration(getEnvInt("CATALOG_CACHE_TTL_SECONDS", 60)) * time.Second,
		LowStockThreshold: getEnvInt("LOW_STOCK_THRESHOLD", 10),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
