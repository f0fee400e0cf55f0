package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Keys      APIKeys
	Ai        AIConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	UploadDir          string
	MaxFileSizeMB      int
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	GoogleGemini string
	Deepgram     string
	OCRService   string
}

type AIConfig struct {
	AnalysisModel      string
	ChatModel          string
	EmbeddingModel     string
	EmbeddingDimension int
	OCRServiceURL      string
}

type SessionConfig struct {
	Backend                string // "memory", "postgres" or "redis"
	TTLMinutes             int
	CleanupIntervalMinutes int
	MaxConcurrentAnalyses  int
	MaxAnalysesPerOrigin   int
}

type RateLimitConfig struct {
	AnalysisRPM      int
	ChatRPM          int
	MaxRetries       int
	BaseDelaySeconds float64
	MaxDelaySeconds  float64
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			UploadDir:          getEnv("UPLOAD_DIR", os.TempDir()),
			MaxFileSizeMB:      getEnvAsInt("MAX_FILE_SIZE_MB", 50),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			Deepgram:     getEnv("DEEPGRAM_API_KEY", ""),
			OCRService:   getEnv("OCR_SERVICE_API_KEY", ""),
		},
		Ai: AIConfig{
			AnalysisModel:      getEnv("GEMINI_ANALYSIS_MODEL", "gemini-1.5-pro"),
			ChatModel:          getEnv("GEMINI_CHAT_MODEL", "gemini-1.5-flash"),
			EmbeddingModel:     getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
			EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 768),
			OCRServiceURL:      getEnv("OCR_SERVICE_URL", ""),
		},
		Session: SessionConfig{
			Backend:                getEnv("SESSION_BACKEND", "memory"),
			TTLMinutes:             getEnvAsInt("SESSION_TTL_MINUTES", 30),
			CleanupIntervalMinutes: getEnvAsInt("CLEANUP_INTERVAL_MINUTES", 10),
			MaxConcurrentAnalyses:  getEnvAsInt("MAX_CONCURRENT_ANALYSES", 5),
			MaxAnalysesPerOrigin:   getEnvAsInt("MAX_ANALYSES_PER_ORIGIN", 2),
		},
		RateLimit: RateLimitConfig{
			AnalysisRPM:      getEnvAsInt("GEMINI_ANALYSIS_RPM", 8),
			ChatRPM:          getEnvAsInt("GEMINI_CHAT_RPM", 15),
			MaxRetries:       getEnvAsInt("GEMINI_MAX_RETRIES", 5),
			BaseDelaySeconds: getEnvAsFloat("RETRY_BASE_DELAY_SECONDS", 2.0),
			MaxDelaySeconds:  getEnvAsFloat("RETRY_MAX_DELAY_SECONDS", 30.0),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
