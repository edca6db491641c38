package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// MissingReferenceStrategy controls what happens to rows whose foreign
// reference cannot be resolved during an import run.
type MissingReferenceStrategy string

const (
	MissingRefSkip         MissingReferenceStrategy = "skip"
	MissingRefAbort        MissingReferenceStrategy = "abort"
	MissingRefInsertAnyway MissingReferenceStrategy = "insert-anyway"
)

type Config struct {
	Addr        string
	DatabaseURL string
	Env         string

	APIMaxBodyBytes    int64
	ImportMaxFileBytes int64
	ImportMaxRows      int

	BulkChunkSize          int
	MissingRefStrategy     MissingReferenceStrategy
	AutoCreatePlaceholders bool
	SchemaCacheTTL         time.Duration
	FailedRowsDir          string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RateLimitPerMin   int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:        getEnv("API_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Env:         getEnv("APP_ENV", "dev"),

		APIMaxBodyBytes:    int64(getEnvInt("API_MAX_BODY_MB", 2)) * 1024 * 1024,
		ImportMaxFileBytes: int64(getEnvInt("IMPORT_MAX_FILE_MB", 25)) * 1024 * 1024,
		ImportMaxRows:      getEnvInt("IMPORT_MAX_ROWS", 50000),

		BulkChunkSize:          getEnvInt("BULK_CHUNK_SIZE", 2000),
		AutoCreatePlaceholders: getEnvBool("AUTO_CREATE_PLACEHOLDERS", false),
		SchemaCacheTTL:         time.Duration(getEnvInt("SCHEMA_CACHE_TTL_SEC", 300)) * time.Second,
		FailedRowsDir:          getEnv("FAILED_ROWS_DIR", os.TempDir()),

		ReadHeaderTimeout: time.Duration(getEnvInt("API_READ_HEADER_TIMEOUT_SEC", 5)) * time.Second,
		ReadTimeout:       time.Duration(getEnvInt("API_READ_TIMEOUT_SEC", 60)) * time.Second,
		WriteTimeout:      time.Duration(getEnvInt("API_WRITE_TIMEOUT_SEC", 120)) * time.Second,
		IdleTimeout:       time.Duration(getEnvInt("API_IDLE_TIMEOUT_SEC", 60)) * time.Second,
		RateLimitPerMin:   getEnvInt("IMPORT_RATE_LIMIT_PER_MIN", 30),
	}

	strategy, err := ParseMissingRefStrategy(getEnv("MISSING_REFERENCE_STRATEGY", string(MissingRefSkip)))
	if err != nil {
		return Config{}, err
	}
	cfg.MissingRefStrategy = strategy

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.BulkChunkSize < 1 {
		return Config{}, fmt.Errorf("BULK_CHUNK_SIZE must be at least 1")
	}

	return cfg, nil
}

func ParseMissingRefStrategy(raw string) (MissingReferenceStrategy, error) {
	switch MissingReferenceStrategy(raw) {
	case MissingRefSkip, MissingRefAbort, MissingRefInsertAnyway:
		return MissingReferenceStrategy(raw), nil
	default:
		return "", fmt.Errorf("MISSING_REFERENCE_STRATEGY must be skip, abort, or insert-anyway, got %q", raw)
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
