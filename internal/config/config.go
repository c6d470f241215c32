package config

import (
	"os"
	"strconv"
	"strings"
)

// Config centralizes runtime settings for the API, dispatcher and
// ingest worker.
type Config struct {
	Port      string
	AuthToken string

	DatabaseURL string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	CacheKeyPrefix string

	CacheTTLDays          int
	CacheSweepIntervalMin int
	CacheWriteTimeoutMS   int

	DispatchToken       string
	DispatchEnabled     bool
	DispatchIntervalSec int
	WorkerURL           string
	WorkerToken         string
	WorkerTimeoutMS     int

	JobMaxAttempts int
	JobQueueName   string

	SimilarityThreshold float64
	MaxSearchResults    int
	EmbeddingDimension  int
	ChunkSize           int
	ChunkOverlap        int

	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string
}

func Load() Config {
	return Config{
		Port:      getEnv("PORT", "8080"),
		AuthToken: getEnv("API_AUTH_TOKEN", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		CacheKeyPrefix: getEnv("CACHE_KEY_PREFIX", "qcache"),

		CacheTTLDays:          getEnvInt("CACHE_TTL_DAYS", 30),
		CacheSweepIntervalMin: getEnvInt("CACHE_SWEEP_INTERVAL_MIN", 360),
		CacheWriteTimeoutMS:   getEnvInt("CACHE_WRITE_TIMEOUT_MS", 5000),

		DispatchToken:       getEnv("DISPATCH_TOKEN", ""),
		DispatchEnabled:     getEnvBool("DISPATCH_ENABLED", true),
		DispatchIntervalSec: getEnvInt("DISPATCH_INTERVAL_SECONDS", 5),
		WorkerURL:           getEnv("WORKER_URL", ""),
		WorkerToken:         getEnv("WORKER_TOKEN", ""),
		WorkerTimeoutMS:     getEnvInt("WORKER_TIMEOUT_MS", 10000),

		JobMaxAttempts: getEnvInt("JOB_MAX_ATTEMPTS", 3),
		JobQueueName:   getEnv("JOB_QUEUE_NAME", "ingest"),

		SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", 0.4),
		MaxSearchResults:    getEnvInt("MAX_SEARCH_RESULTS", 10),
		EmbeddingDimension:  getEnvInt("EMBEDDING_DIMENSION", 256),
		ChunkSize:           getEnvInt("CHUNK_SIZE_WORDS", 200),
		ChunkOverlap:        getEnvInt("CHUNK_OVERLAP_WORDS", 20),

		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 40),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", nil),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
