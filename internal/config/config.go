package config

import (
	"log/slog"
	"os"
	"strings"
)

// Config holds all configuration values.
type Config struct {
	// Report backend
	BackendURL   string
	ConnectionID string

	// Run history (SurrealDB), optional
	HistoryURL       string
	HistoryNamespace string
	HistoryDatabase  string
	HistoryUser      string
	HistoryPass      string
	HistoryAuthLevel string

	// Companion server
	ServerPort string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		BackendURL:   getEnv("NEURAREPORT_BACKEND_URL", "http://localhost:8000"),
		ConnectionID: getEnv("NEURAREPORT_CONNECTION_ID", ""),

		// History store; empty URL disables persistence entirely.
		HistoryURL:       getEnv("NEURAREPORT_HISTORY_URL", ""),
		HistoryNamespace: getEnv("NEURAREPORT_HISTORY_NAMESPACE", "neurareport"),
		HistoryDatabase:  getEnv("NEURAREPORT_HISTORY_DATABASE", "runs"),
		HistoryUser:      getEnv("NEURAREPORT_HISTORY_USER", "root"),
		HistoryPass:      getEnv("NEURAREPORT_HISTORY_PASS", "root"),
		HistoryAuthLevel: getEnv("NEURAREPORT_HISTORY_AUTH_LEVEL", "root"),

		ServerPort: getEnv("NEURAREPORT_SERVER_PORT", "8585"),

		LogFile:  getEnv("NEURAREPORT_LOG_FILE", "/tmp/neurareport.log"),
		LogLevel: parseLogLevel(getEnv("NEURAREPORT_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
