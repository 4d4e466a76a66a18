package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Cache    CacheConfig
	Audit    AuditConfig
	Worker   WorkerConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// CacheConfig holds idempotence cache configuration
type CacheConfig struct {
	Path    string
	Enabled bool
}

// AuditConfig holds decision-engine configuration
type AuditConfig struct {
	SpecDir        string
	DefaultPackID  string
	MinConfidence  float64
	ThresholdsPath string
	StrictResolve  bool
}

// WorkerConfig holds batch worker configuration
type WorkerConfig struct {
	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Cache: CacheConfig{
			Path:    getEnv("AUDIT_CACHE_PATH", "./tmp/audit-cache.db"),
			Enabled: getEnvAsBool("AUDIT_CACHE_ENABLED", true),
		},
		Audit: AuditConfig{
			SpecDir:        getEnv("SPEC_PACK_DIR", "./specs"),
			DefaultPackID:  getEnv("SPEC_PACK_ID", ""),
			MinConfidence:  getEnvAsFloat64("AUDIT_MIN_CONFIDENCE", 0.6),
			ThresholdsPath: getEnv("AUDIT_THRESHOLDS", ""),
			StrictResolve:  getEnvAsBool("SPEC_STRICT_RESOLVE", false),
		},
		Worker: WorkerConfig{
			Workers:        getEnvAsInt("AUDIT_WORKERS", 4),
			QueueSize:      getEnvAsInt("AUDIT_QUEUE_SIZE", 64),
			ProcessTimeout: getEnvAsDuration("AUDIT_PROCESS_TIMEOUT", 2*time.Minute),
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

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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
	if c.Audit.SpecDir == "" {
		return NewAppError("CONFIG_ERROR", "SPEC_PACK_DIR is required", ErrInvalidInput)
	}
	if c.Audit.MinConfidence < 0 || c.Audit.MinConfidence > 1 {
		return NewAppError("CONFIG_ERROR", "AUDIT_MIN_CONFIDENCE must be in [0,1]", ErrInvalidInput)
	}
	if c.Worker.Workers < 1 {
		return NewAppError("CONFIG_ERROR", "AUDIT_WORKERS must be at least 1", ErrInvalidInput)
	}
	return nil
}

// RequireDatabase validates the database settings for commands that persist.
func (c *Config) RequireDatabase() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	return nil
}
