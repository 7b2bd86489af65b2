package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"medstudy-backend/internal/shared/telemetry"
)

const defaultUploadMaxBytes int64 = 50 << 20

// Config holds application configuration.
type Config struct {
	Port                 string
	CORSAllowOrigin      []string
	ObjectStoreType      string
	LocalStoreDir        string
	AWSRegion            string
	S3Bucket             string
	S3Prefix             string
	SSEKMSKeyID          string
	LLMProvider          string
	LLMModel             string
	OpenAIAPIKey         string
	GeminiAPIKey         string
	OpenAITimeout        time.Duration
	DatabaseURL          string
	Env                  string
	JWTSecret            string
	UploadMaxBytes       int64
	IngestWorkers        int
	IngestQueueSize      int
	SQSQueueURL          string
	StaleProcessingAfter time.Duration
	StaleSweepSchedule   string
	AutoMigrate          bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		telemetry.Warn("config.database_url_missing", map[string]any{"env": env})
	}

	return Config{
		Port:                 getEnv("PORT", "8080"),
		CORSAllowOrigin:      splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType:      normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:        getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:            getEnv("AWS_REGION", ""),
		S3Bucket:             getEnv("S3_BUCKET", ""),
		S3Prefix:             getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:          getEnv("SSE_KMS_KEY_ID", ""),
		LLMProvider:          normalizeProvider(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:             getEnv("LLM_MODEL", ""),
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		OpenAITimeout:        time.Duration(getInt64("OPENAI_TIMEOUT_SECONDS", 60)) * time.Second,
		DatabaseURL:          dbURL,
		Env:                  env,
		JWTSecret:            getEnv("JWT_SECRET", ""),
		UploadMaxBytes:       getInt64("UPLOAD_MAX_BYTES", defaultUploadMaxBytes),
		IngestWorkers:        int(getInt64("INGEST_WORKERS", 4)),
		IngestQueueSize:      int(getInt64("INGEST_QUEUE_SIZE", 64)),
		SQSQueueURL:          getEnv("MS_SQS_QUEUE_URL", ""),
		StaleProcessingAfter: getDuration("STALE_PROCESSING_AFTER", 30*time.Minute),
		StaleSweepSchedule:   getEnv("STALE_SWEEP_SCHEDULE", "@every 5m"),
		AutoMigrate:          getBool("DB_AUTO_MIGRATE", env != "production"),
	}
}

// IsDevLike reports whether the environment allows in-memory fallbacks.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		telemetry.Warn("config.invalid_int", map[string]any{"key": key, "value": raw})
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		telemetry.Warn("config.invalid_bool", map[string]any{"key": key, "value": raw})
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		telemetry.Warn("config.invalid_duration", map[string]any{"key": key, "value": raw})
		return def
	}
	return v
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "test":
		return "test"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return "openai"
	case "gemini", "google":
		return "gemini"
	default:
		return "none"
	}
}
