package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ErrGPUNotConfigured is returned when GPU control is requested without RunPod credentials.
var ErrGPUNotConfigured = errors.New("RunPod API key and pod ID are required for GPU control")

type Config struct {
	AppName     string
	Debug       bool
	Port        string
	GinMode     string
	CORSOrigins []string

	// Model serving
	ModelServerURL      string
	ModelName           string
	ModelTimeoutSeconds int
	GenerationRPM       int

	// Embeddings
	EmbeddingProvider  string // "openai" (OpenAI-compatible server, default) or "google"
	EmbeddingModel     string
	EmbeddingServerURL string
	EmbeddingAPIKey    string
	GeminiAPIKey       string
	EmbeddingDim       int

	// Vector store
	VectorStore     string // "flat" (alias "faiss") or "chroma"
	VectorStorePath string
	ChromaPath      string

	// Retrieval and chunking
	RetrievalK   int
	ChunkSize    int
	ChunkOverlap int
	DataDir      string

	// Minutes between checks for an index rebuilt by the ingestion worker; 0 disables
	IndexReloadMinutes int

	// Safety
	CrisisKeywords string

	// Chat audit log (MongoDB); empty URI disables it
	MongoURI string
	DBName   string

	// Redis: rate limiting and the ingestion queue
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RateLimitReqs   int
	RateLimitWindow int
	MaxRequestBytes int64

	// Admin endpoints; empty secret leaves them open
	AdminJWTSecret string

	// RunPod GPU control
	RunpodAPIBase            string
	RunpodAPIKey             string
	RunpodPodID              string
	RunpodIdleTimeoutMinutes int

	// Telemetry
	TracingEnabled bool
	OTLPEndpoint   string
}

// RunpodConfig carries only what GPU control needs.
type RunpodConfig struct {
	APIBase            string
	APIKey             string
	PodID              string
	IdleTimeoutMinutes int
}

const DefaultCrisisKeywords = "suicide,self-harm,kill myself,kill him,kill her,shoot,stab," +
	"jump off,hang myself,overdose,violent,assault,abuse,domestic violence"

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		AppName:     getEnv("CW_APP_NAME", "Construction Safety Support Assistant"),
		Debug:       getEnvBool("CW_DEBUG", false),
		Port:        getEnv("CW_PORT", "8000"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CW_CORS_ORIGINS", "http://localhost:3000,http://localhost:8000"), ","),

		ModelServerURL:      getEnv("CW_MODEL_SERVER_URL", "http://localhost:8001/v1/chat"),
		ModelName:           getEnv("CW_MODEL_NAME", "Qwen2.5-3B-Instruct"),
		ModelTimeoutSeconds: getEnvInt("CW_MODEL_TIMEOUT_SECONDS", 30),
		GenerationRPM:       getEnvInt("CW_GENERATION_RPM", 120),

		EmbeddingProvider:  getEnv("CW_EMBEDDING_PROVIDER", "openai"),
		EmbeddingModel:     getEnv("CW_EMBEDDING_MODEL", "BAAI/bge-small-en-v1.5"),
		EmbeddingServerURL: getEnv("CW_EMBEDDING_SERVER_URL", "http://localhost:8002/v1"),
		EmbeddingAPIKey:    getEnv("CW_EMBEDDING_API_KEY", ""),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		EmbeddingDim:       getEnvInt("CW_EMBEDDING_DIM", 384),

		VectorStore:     strings.ToLower(getEnv("CW_VECTOR_STORE", "flat")),
		VectorStorePath: getEnv("CW_VECTOR_STORE_PATH", "storage/faiss.index"),
		ChromaPath:      getEnv("CW_CHROMA_PATH", "storage/chroma_db"),

		RetrievalK:   getEnvInt("CW_RETRIEVAL_K", 4),
		ChunkSize:    getEnvInt("CW_CHUNK_SIZE", 800),
		ChunkOverlap: getEnvInt("CW_CHUNK_OVERLAP", 120),
		DataDir:      getEnv("CW_DATA_DIR", "data"),

		IndexReloadMinutes: getEnvInt("CW_INDEX_RELOAD_MINUTES", 0),

		CrisisKeywords: getEnv("CW_CRISIS_KEYWORDS", DefaultCrisisKeywords),

		MongoURI: getEnv("CW_MONGO_URI", ""),
		DBName:   getEnv("CW_DB_NAME", "construction_assistant"),

		RedisURL:        getEnv("CW_REDIS_URL", ""),
		RedisPassword:   getEnv("CW_REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("CW_REDIS_DB", 0),
		RateLimitReqs:   getEnvInt("CW_RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow: getEnvInt("CW_RATE_LIMIT_WINDOW", 60),
		MaxRequestBytes: getEnvInt64("CW_MAX_REQUEST_BYTES", 64*1024),

		AdminJWTSecret: getEnv("CW_ADMIN_JWT_SECRET", ""),

		RunpodAPIBase:            getEnv("CW_RUNPOD_API_BASE", "https://api.runpod.io/v2"),
		RunpodAPIKey:             getEnv("CW_RUNPOD_API_KEY", ""),
		RunpodPodID:              getEnv("CW_RUNPOD_POD_ID", ""),
		RunpodIdleTimeoutMinutes: getEnvInt("CW_RUNPOD_IDLE_TIMEOUT_MINUTES", 30),

		TracingEnabled: getEnvBool("CW_TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("CW_OTLP_ENDPOINT", "localhost:4317"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.ModelServerURL == "" {
		return fmt.Errorf("CW_MODEL_SERVER_URL is required")
	}
	if c.RetrievalK <= 0 {
		return fmt.Errorf("CW_RETRIEVAL_K must be positive, got %d", c.RetrievalK)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CW_CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("CW_CHUNK_OVERLAP must not be negative, got %d", c.ChunkOverlap)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("CW_EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if c.ModelTimeoutSeconds <= 0 {
		return fmt.Errorf("CW_MODEL_TIMEOUT_SECONDS must be positive, got %d", c.ModelTimeoutSeconds)
	}
	if c.IndexReloadMinutes < 0 {
		return fmt.Errorf("CW_INDEX_RELOAD_MINUTES must not be negative, got %d", c.IndexReloadMinutes)
	}
	switch c.VectorStore {
	case "flat", "faiss", "chroma":
	default:
		return fmt.Errorf("unknown CW_VECTOR_STORE %q (want flat, faiss or chroma)", c.VectorStore)
	}
	switch c.EmbeddingProvider {
	case "openai":
	case "google":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the google embedding provider")
		}
	default:
		return fmt.Errorf("unknown CW_EMBEDDING_PROVIDER %q", c.EmbeddingProvider)
	}
	return nil
}

// Runpod returns the GPU control settings, or ErrGPUNotConfigured when credentials are absent.
func (c *Config) Runpod() (RunpodConfig, error) {
	if c.RunpodAPIKey == "" || c.RunpodPodID == "" {
		return RunpodConfig{}, ErrGPUNotConfigured
	}
	return RunpodConfig{
		APIBase:            strings.TrimRight(c.RunpodAPIBase, "/"),
		APIKey:             c.RunpodAPIKey,
		PodID:              c.RunpodPodID,
		IdleTimeoutMinutes: c.RunpodIdleTimeoutMinutes,
	}, nil
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
