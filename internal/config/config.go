// Package config loads client settings from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is everything the client needs to talk to the adjudication
// service and keep local state.
type Config struct {
	// BaseURL of the adjudication service, http or https.
	BaseURL string
	// MemberID attached to every claim request.
	MemberID string
	// AuthToken is the bearer token for the REST collaborators, if any.
	AuthToken string
	// ResultWait bounds how long the streaming channel may stay silent
	// before the transport falls back to the synchronous call.
	ResultWait time.Duration
	// SnapshotPath is where chat history is persisted; empty disables it.
	SnapshotPath string
	// LogFile receives structured logs (the TUI owns stdout); empty
	// disables logging.
	LogFile  string
	LogLevel string
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first, without overriding real env vars.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		BaseURL:      envOr("LAYA_API_BASE", "http://127.0.0.1:8000"),
		MemberID:     envOr("LAYA_MEMBER_ID", ""),
		AuthToken:    envOr("LAYA_AUTH_TOKEN", ""),
		ResultWait:   time.Duration(envOrInt("LAYA_RESULT_WAIT_SECONDS", 120)) * time.Second,
		SnapshotPath: envOr("LAYA_HISTORY_FILE", defaultSnapshotPath()),
		LogFile:      envOr("LAYA_LOG_FILE", ""),
		LogLevel:     envOr("LAYA_LOG_LEVEL", "info"),
	}
}

func defaultSnapshotPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".layachat", "sessions.json")
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
