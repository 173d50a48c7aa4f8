// Package config provides application configuration management.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/oremus-labs/ol-jsonl/internal/logutil"
	"github.com/oremus-labs/ol-jsonl/internal/ndjson"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	ServerPort      string
	ShutdownTimeout time.Duration
	APIToken        string

	// Stream configuration
	StreamMode         ndjson.Mode
	StreamStampDone    bool
	StreamPacing       time.Duration
	StreamWriteTimeout time.Duration
	UserSchemaPath     string

	// Persistence configuration
	StatePath       string
	DataStoreDriver string
	DataStoreDSN    string

	// Redis / events configuration
	RedisAddr        string
	RedisUsername    string
	RedisPassword    string
	RedisDB          int
	RedisTLSEnabled  bool
	RedisTLSInsecure bool
	EventsChannel    string
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	statePath := getEnv("STATE_PATH", "/app/state")
	dataStoreDriver := getEnv("DATASTORE_DRIVER", "sqlite")
	dataStoreDSN := getEnv("DATASTORE_DSN", "")
	if dataStoreDSN == "" {
		switch dataStoreDriver {
		case "postgres":
			dataStoreDSN = os.Getenv("POSTGRES_DSN")
		case "sqlite":
			dataStoreDSN = filepath.Join(statePath, "users.db")
		}
	}
	return &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
		APIToken:           os.Getenv("API_TOKEN"),
		StreamMode:         getEnvMode("STREAM_MODE", ndjson.ModeEnveloped),
		StreamStampDone:    getEnvBool("STREAM_STAMP_DONE", true),
		StreamPacing:       getEnvDuration("STREAM_PACING", 0),
		StreamWriteTimeout: getEnvDuration("STREAM_WRITE_TIMEOUT", 0),
		UserSchemaPath:     getEnv("USER_SCHEMA_PATH", ""),
		StatePath:          statePath,
		DataStoreDriver:    dataStoreDriver,
		DataStoreDSN:       dataStoreDSN,
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisUsername:      getEnv("REDIS_USERNAME", ""),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		RedisTLSEnabled:    getEnvBool("REDIS_TLS_ENABLED", false),
		RedisTLSInsecure:   getEnvBool("REDIS_TLS_INSECURE_SKIP_VERIFY", false),
		EventsChannel:      getEnv("EVENTS_CHANNEL", "jsonl-stream-events"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvMode(key string, defaultValue ndjson.Mode) ndjson.Mode {
	if value := os.Getenv(key); value != "" {
		if m, err := ndjson.ParseMode(value); err == nil {
			return m
		}
		warnFallback(key, value, defaultValue.String())
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		warnFallback(key, value, defaultValue.String())
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		warnFallback(key, value, strconv.Itoa(defaultValue))
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "y":
			return true
		case "0", "false", "no", "n":
			return false
		default:
			warnFallback(key, value, strconv.FormatBool(defaultValue))
		}
	}
	return defaultValue
}

func warnFallback(key, value, defaultValue string) {
	logutil.Warn("invalid config value, using default", map[string]interface{}{
		"key":     key,
		"value":   value,
		"default": defaultValue,
	})
}
