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
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
	Import   ImportConfig
	Lock     LockConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type ServerConfig struct {
	Port         string
	UploadMaxMB  int64
	HistoryLimit int
}

type AppConfig struct {
	LogLevel    string
	AutoMigrate bool
}

type ImportConfig struct {
	BatchSize    int
	MarkupSource string
	SheetSource  string
}

type LockBackend string

const (
	LockBackendPostgres LockBackend = "postgres"
	LockBackendRedis    LockBackend = "redis"
)

type LockConfig struct {
	Backend      LockBackend
	RedisAddress string
	TTL          time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	backend := LockBackend(strings.ToLower(getEnv("LOCK_BACKEND", string(LockBackendPostgres))))
	if backend != LockBackendPostgres && backend != LockBackendRedis {
		return nil, fmt.Errorf("invalid LOCK_BACKEND %q: must be postgres or redis", backend)
	}

	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ledger_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			UploadMaxMB:  int64(getEnvInt("UPLOAD_MAX_MB", 2048)),
			HistoryLimit: getEnvInt("IMPORT_HISTORY_LIMIT", 10),
		},
		App: AppConfig{
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			AutoMigrate: getEnvBool("AUTO_MIGRATE", true),
		},
		Import: ImportConfig{
			BatchSize:    getEnvInt("IMPORT_BATCH_SIZE", 500),
			MarkupSource: getEnv("MARKUP_SOURCE", "tally"),
			SheetSource:  getEnv("SHEET_SOURCE", "vyapar"),
		},
		Lock: LockConfig{
			Backend:      backend,
			RedisAddress: getEnv("REDIS_ADDRESS", "localhost:6379"),
			TTL:          time.Duration(getEnvInt("LOCK_TTL_SECONDS", 900)) * time.Second,
		},
	}, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt ignores non-positive and unparsable values.
func getEnvInt(key string, defaultValue int) int {
	parsed, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || parsed <= 0 {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	parsed, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return parsed
}
