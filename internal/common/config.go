package common

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Extract  ExtractConfig
	LLM      LLMConfig
	Cache    CacheConfig
}

// DatabaseConfig holds template-store configuration. DSN selects the backend:
// a postgres:// URL opens the pgx-backed store, anything else is treated as a
// SQLite file path.
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr        string
	MaxUploadMB int64
}

// ExtractConfig holds text-extraction configuration.
type ExtractConfig struct {
	Pdftoppm      string
	Tesseract     string
	TesseractLang string
	DPI           int
	MinConfidence int
	// NativeTextThreshold is the minimum number of non-whitespace characters
	// on the first page for native extraction to be trusted; below it the
	// extractor switches to OCR.
	NativeTextThreshold int
}

// LLMConfig holds Gemini configuration for the field proposer and embedder.
type LLMConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float32
	Timeout        time.Duration
}

// CacheConfig holds template-cache tuning.
type CacheConfig struct {
	SimilarityThreshold float64
}

// LoadConfig loads configuration from a .env file (when present) and the
// environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", "data/templates.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			Addr:        getEnv("HTTP_ADDR", ":8080"),
			MaxUploadMB: int64(getEnvAsInt("HTTP_MAX_UPLOAD_MB", 32)),
		},
		Extract: ExtractConfig{
			Pdftoppm:            getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:           getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang:       getEnv("TESSERACT_LANG", "por+eng"),
			DPI:                 getEnvAsInt("OCR_DPI", 300),
			MinConfidence:       getEnvAsInt("OCR_MIN_CONFIDENCE", 30),
			NativeTextThreshold: getEnvAsInt("NATIVE_TEXT_THRESHOLD", 50),
		},
		LLM: LLMConfig{
			APIKey:         getEnv("GOOGLE_API_KEY", ""),
			Model:          getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			EmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
			Temperature:    getEnvAsFloat32("GEMINI_TEMPERATURE", 0.0),
			Timeout:        getEnvAsDuration("GEMINI_TIMEOUT", 45*time.Second),
		},
		Cache: CacheConfig{
			SimilarityThreshold: getEnvAsFloat64("SIMILARITY_THRESHOLD", 0.75),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	return nil
}
