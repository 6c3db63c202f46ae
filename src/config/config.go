package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// Exchange rates
	RatesURL          string
	RatesBaseCurrency string
	RatesTimeout      time.Duration

	// AI parser settings
	AIProvider string // GEMINI, DEEPSEEK, CUSTOM or empty (disabled)
	AIAPIKey   string
	AIModel    string
	AIBaseURL  string
	AITimeout  time.Duration

	// Remote sync (WebDAV) settings
	SyncHost       string
	SyncPath       string
	SyncUsername   string
	SyncPassword   string
	SyncTimeout    time.Duration
	BackupFilename string

	// Request limits
	MaxImportSizeBytes int64
}

// Cfg is the global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		if os.IsNotExist(err) {
			log.Println("Info: No .env file found. Relying on OS environment variables.")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", err)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	maxImportStr := getEnv("MAX_IMPORT_SIZE_BYTES", "10485760") // 10MB default
	maxImport, err := strconv.ParseInt(maxImportStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_IMPORT_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxImportStr, err)
		maxImport = 10 * 1024 * 1024
	}

	Cfg = &AppConfig{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./jotbill.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		RatesURL:          getEnv("RATES_URL", "https://open.er-api.com/v6/latest/CNY"),
		RatesBaseCurrency: getEnv("RATES_BASE_CURRENCY", "CNY"),
		RatesTimeout:      getEnvAsDuration("RATES_TIMEOUT", 10*time.Second),

		AIProvider: getEnv("AI_PROVIDER", ""),
		AIAPIKey:   getEnv("AI_API_KEY", ""),
		AIModel:    getEnv("AI_MODEL", "gemini-1.5-flash"),
		AIBaseURL:  getEnv("AI_BASE_URL", ""),
		AITimeout:  getEnvAsDuration("AI_TIMEOUT", 30*time.Second),

		SyncHost:       getEnv("SYNC_HOST", ""),
		SyncPath:       getEnv("SYNC_PATH", ""),
		SyncUsername:   getEnv("SYNC_USERNAME", ""),
		SyncPassword:   getEnv("SYNC_PASSWORD", ""),
		SyncTimeout:    getEnvAsDuration("SYNC_TIMEOUT", 15*time.Second),
		BackupFilename: getEnv("BACKUP_FILENAME", "zenledger_backup.json"),

		MaxImportSizeBytes: maxImport,
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
