package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database    DatabaseConfig
	Server      ServerConfig
	Recognition RecognitionConfig
	Compose     ComposeConfig
	Batch       BatchConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MaxConnLifetime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string
}

// RecognitionConfig holds recognition-provider configuration
type RecognitionConfig struct {
	Provider    string // "baidu" | "tesseract"
	APIKey      string
	SecretKey   string
	BaseURL     string
	TokenURL    string
	CallTimeout time.Duration
	Attempts    int
	Backoff     time.Duration
	TessdataDir string
}

// ComposeConfig holds compositor-related configuration
type ComposeConfig struct {
	URL     string
	Timeout time.Duration
}

// BatchConfig holds batch-processing configuration
type BatchConfig struct {
	Workers     int
	UnitTimeout time.Duration
	ArtifactDir string
	RulesPath   string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		},
		Recognition: RecognitionConfig{
			Provider:    getEnv("RECOGNIZER", "baidu"),
			APIKey:      getEnv("OCR_API_KEY", ""),
			SecretKey:   getEnv("OCR_SECRET_KEY", ""),
			BaseURL:     getEnv("OCR_BASE_URL", "https://aip.baidubce.com"),
			TokenURL:    getEnv("OCR_TOKEN_URL", ""),
			CallTimeout: getEnvAsDuration("OCR_CALL_TIMEOUT", 60*time.Second),
			Attempts:    getEnvAsInt("OCR_ATTEMPTS", 3),
			Backoff:     getEnvAsDuration("OCR_BACKOFF", 2*time.Second),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
		},
		Compose: ComposeConfig{
			URL:     getEnv("COMPOSE_URL", ""),
			Timeout: getEnvAsDuration("COMPOSE_TIMEOUT", 45*time.Second),
		},
		Batch: BatchConfig{
			Workers:     getEnvAsInt("BATCH_WORKERS", 1),
			UnitTimeout: getEnvAsDuration("BATCH_UNIT_TIMEOUT", 5*time.Minute),
			ArtifactDir: getEnv("ARTIFACT_DIR", "./artifacts"),
			RulesPath:   getEnv("RULES_PATH", ""),
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks that the configuration can support a batch run.
// A failure here aborts the whole batch before any unit is attempted.
func (c *Config) Validate() error {
	switch c.Recognition.Provider {
	case "baidu":
		if c.Recognition.APIKey == "" || c.Recognition.SecretKey == "" {
			return NewAppError("CONFIG_ERROR", "OCR_API_KEY and OCR_SECRET_KEY are required for the baidu provider", ErrInvalidInput)
		}
	case "tesseract":
		// no credentials needed
	default:
		return NewAppError("CONFIG_ERROR", "unknown RECOGNIZER: "+c.Recognition.Provider, ErrInvalidInput)
	}
	if c.Batch.Workers < 1 || c.Batch.Workers > 8 {
		return NewAppError("CONFIG_ERROR", "BATCH_WORKERS must be between 1 and 8", ErrInvalidInput)
	}
	return nil
}
