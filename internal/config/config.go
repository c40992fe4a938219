package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	GinMode      string
	CORSOrigins  []string
	MaxFileSize  int64
	AllowedTypes []string

	RateLimitReqs   int
	RateLimitWindow int

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Storage backend: "redis" (default), "mongo" or "memory"
	StoreBackend string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// MongoDB Configuration
	MongoURI        string
	DBName          string
	MongoCollection string

	// Index layout
	VectorIndexPrefix string
	DocumentsKey      string
	CompressRecords   bool

	// Embeddings configuration
	EmbeddingsProvider    string // "local" (default), "gemini"
	VectorDimensions      int
	GeminiAPIKey          string
	GoogleEmbeddingsModel string
	EmbeddingsRPM         int
	SimilarityLimit       int

	// Background jobs
	IndexSweepCron string
	WorkerQueue    string

	// Telemetry
	TracingEnabled       bool
	OTelExporterEndpoint string
	ShutdownTimeout      time.Duration
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		GinMode:      getEnv("GIN_MODE", "debug"),
		CORSOrigins:  strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		MaxFileSize:  getEnvInt64("MAX_FILE_SIZE", 15728640), // 15MB
		AllowedTypes: strings.Split(getEnv("ALLOWED_FILE_TYPES", "application/pdf,text/plain"), ","),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 200),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 40),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "redis")),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:          getEnv("DB_NAME", "study_assistant"),
		MongoCollection: getEnv("MONGO_COLLECTION", "hash_entries"),

		VectorIndexPrefix: getEnv("VECTOR_INDEX_PREFIX", "analysis:vectors"),
		DocumentsKey:      getEnv("DOCUMENTS_KEY", "analysis:documents"),
		CompressRecords:   getEnvBool("COMPRESS_RECORDS", true),

		EmbeddingsProvider:    strings.ToLower(getEnv("EMBEDDINGS_PROVIDER", "local")),
		VectorDimensions:      getEnvInt("VECTOR_DIM", 256),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		EmbeddingsRPM:         getEnvInt("EMBEDDINGS_RPM", 600),
		SimilarityLimit:       getEnvInt("SIMILARITY_LIMIT", 3),

		IndexSweepCron: getEnv("INDEX_SWEEP_CRON", "*/30 * * * *"),
		WorkerQueue:    getEnv("WORKER_QUEUE", "default"),

		TracingEnabled:       getEnvBool("TRACING_ENABLED", false),
		OTelExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
		ShutdownTimeout:      getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.VectorDimensions <= 0 {
		return fmt.Errorf("VECTOR_DIM must be positive, got %d", c.VectorDimensions)
	}

	switch c.StoreBackend {
	case "redis", "mongo", "memory":
	default:
		return fmt.Errorf("unknown STORE_BACKEND: %s", c.StoreBackend)
	}

	switch c.EmbeddingsProvider {
	case "local", "":
	case "gemini", "google":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the %s embeddings provider", c.EmbeddingsProvider)
		}
	default:
		return fmt.Errorf("unknown EMBEDDINGS_PROVIDER: %s", c.EmbeddingsProvider)
	}

	return nil
}

// IsAllowedType reports whether a declared upload MIME type is accepted.
func (c *Config) IsAllowedType(mimeType string) bool {
	for _, t := range c.AllowedTypes {
		if strings.EqualFold(strings.TrimSpace(t), mimeType) {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
