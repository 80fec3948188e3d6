package config

import (
	"errors"
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	CacheURL      string
	CacheToken    string
	CronSecret    string
	HistoryDBPath string
	Environment   string
}

var AppConfig *Config

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:          getEnv("PORT", "8080"),
		CacheURL:      firstEnv("KV_REST_API_URL", "UPSTASH_REDIS_REST_URL"),
		CacheToken:    firstEnv("KV_REST_API_TOKEN", "UPSTASH_REDIS_REST_TOKEN"),
		CronSecret:    getEnv("CRON_SECRET", ""),
		HistoryDBPath: getEnv("HISTORY_DB_PATH", "data/history.db"),
		Environment:   getEnv("ENVIRONMENT", "development"),
	}

	if config.CacheURL == "" || config.CacheToken == "" {
		return nil, errors.New("cache store is not configured: set KV_REST_API_URL/KV_REST_API_TOKEN or UPSTASH_REDIS_REST_URL/UPSTASH_REDIS_REST_TOKEN")
	}

	AppConfig = config
	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// firstEnv returns the first non-empty value among the given keys. The
// cache store accepts two naming schemes so deployments on either hosting
// convention work without renaming variables.
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}
