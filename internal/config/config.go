// Package config provides configuration management for sceneline.
// It loads settings from environment variables with the SCENELINE_ prefix
// and provides sensible defaults for all configuration options.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all configuration settings for the sceneline service.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Narrator NarratorConfig
	Security SecurityConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port        int    // Server port (default: 6360)
	Host        string // Server host (default: 127.0.0.1)
	IngestRPS   int    // Sustained ingest requests per second (default: 5)
	IngestBurst int    // Ingest burst size (default: 10)
}

// StorageConfig contains state and identity storage configuration.
type StorageConfig struct {
	Engine         string // Storage engine: jsonfile, sqlite, postgres (default: jsonfile)
	DataPath       string // Path to data directory (default: ./data)
	StatePath      string // Path to the scene state file (jsonfile engine)
	SQLitePath     string // Path to the SQLite database file (sqlite engine)
	PostgresDSN    string // PostgreSQL connection string (postgres engine)
	IdentitiesPath string // Path to the identity profiles file (.json or .yaml)
}

// NarratorConfig configures the optional upstream perception/narration poller.
// Polling is disabled unless URL is set.
type NarratorConfig struct {
	URL          string        // Upstream payload endpoint (default: disabled)
	APIKey       string        // Bearer token for the upstream service
	PollInterval time.Duration // How often to poll for new payloads (default: 10s)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string // Security mode: development, production (default: development)
	APIToken     string // API authentication token
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the SCENELINE_ prefix.
func LoadConfig() (*Config, error) {
	dataPath := getEnv("SCENELINE_DATA_PATH", "./data")

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvInt("SCENELINE_PORT", 6360),
			Host:        getEnv("SCENELINE_HOST", "127.0.0.1"),
			IngestRPS:   getEnvInt("SCENELINE_INGEST_RPS", 5),
			IngestBurst: getEnvInt("SCENELINE_INGEST_BURST", 10),
		},
		Storage: StorageConfig{
			Engine:         getEnv("SCENELINE_STORAGE_ENGINE", "jsonfile"),
			DataPath:       dataPath,
			StatePath:      getEnv("SCENELINE_STATE_PATH", filepath.Join(dataPath, "state.json")),
			SQLitePath:     getEnv("SCENELINE_SQLITE_PATH", filepath.Join(dataPath, "scene.db")),
			PostgresDSN:    getEnv("SCENELINE_POSTGRES_DSN", ""),
			IdentitiesPath: getEnv("SCENELINE_IDENTITIES_PATH", filepath.Join(dataPath, "identities.json")),
		},
		Narrator: NarratorConfig{
			URL:          getEnv("SCENELINE_NARRATOR_URL", ""),
			APIKey:       getEnv("SCENELINE_NARRATOR_API_KEY", ""),
			PollInterval: getEnvDuration("SCENELINE_NARRATOR_POLL_INTERVAL", 10*time.Second),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("SCENELINE_SECURITY_MODE", "development"),
			APIToken:     getEnv("SCENELINE_API_TOKEN", ""),
		},
	}
	return cfg, nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. An unparseable value falls back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable ("10s", "1m") or
// returns a default value. An unparseable value falls back to the default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
