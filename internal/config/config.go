package config

import (
	"errors"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey string
	JWTSecret    string
	DatabaseURL  string
	StoreDriver  string // "sqlite" or "memory"
	HTTPPort     string
	LogLevel     string

	ChunkSize      int
	ChunkOverlap   int
	RetrievalK     int
	Temperature    float64
	QuizQuestions  int
	SessionTTLMins int
	MaxUploadBytes int64
}

// Load reads .env (if present) and the environment. A missing credential is a
// configuration error: nothing downstream can generate without it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		DatabaseURL:    getEnv("DATABASE_URL", "studymaster.db"),
		StoreDriver:    getEnv("STORE_DRIVER", "sqlite"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ChunkSize:      getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap:   getEnvAsInt("CHUNK_OVERLAP", 200),
		RetrievalK:     getEnvAsInt("RETRIEVAL_K", 6),
		Temperature:    getEnvAsFloat("TEMPERATURE", 0.3),
		QuizQuestions:  getEnvAsInt("DEFAULT_QUIZ_QUESTIONS", 5),
		SessionTTLMins: getEnvAsInt("SESSION_TTL_MINUTES", 120),
		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_MB", 32)) << 20,
	}

	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, errors.New("CHUNK_OVERLAP must be smaller than CHUNK_SIZE")
	}

	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}
