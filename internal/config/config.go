package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	BackendURL     string
	StorageURL     string
	StorageKey     string
	StorageBucket  string
	DatabaseURL    string
	HTTPPort       string
	LogLevel       string
	GeminiAPIKey   string
	AutoSaveDelay  int // milliseconds
	FlowFile       string
	AllowedOrigin  string
	RequestTimeout int // seconds, 0 disables
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = FromEnv()

	if AppConfig.StorageURL == "" {
		log.Println("SUPABASE_URL not set; transcript and cached summary reads will fail")
	}
	if AppConfig.GeminiAPIKey == "" {
		log.Println("GEMINI_API_KEY not set; project titles fall back to the first answer")
	}
}

// FromEnv builds a Config from the current environment without touching .env files.
func FromEnv() Config {
	return Config{
		BackendURL:     strings.TrimRight(getEnv("INTAKE_BACKEND_URL", "http://localhost:8000"), "/"),
		StorageURL:     strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		StorageKey:     getEnv("SUPABASE_ANON_KEY", ""),
		StorageBucket:  getEnv("STORAGE_BUCKET", "transcripts"),
		DatabaseURL:    getEnv("DATABASE_URL", "intake_console.db"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		LogLevel:       strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		AutoSaveDelay:  getEnvAsInt("AUTOSAVE_DELAY_MS", 1000),
		FlowFile:       getEnv("FLOW_FILE", ""),
		AllowedOrigin:  getEnv("ALLOWED_ORIGIN", "*"),
		RequestTimeout: getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 0),
	}
}

func (c Config) Debug() bool {
	return c.LogLevel == "DEBUG"
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
