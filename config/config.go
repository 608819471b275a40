package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port              string
	DatabaseURL       string
	BankAPIURL        string
	BankAPIVersion    string
	APITimeout        time.Duration
	DirectoryUser     string
	DirectoryPassword string
	SessionSecret     string
	SessionTTL        time.Duration
	CLIHome           string
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	return Config{
		Port:              port,
		DatabaseURL:       os.Getenv("DB_DSN"),
		BankAPIURL:        readString("BANK_API_URL", "http://localhost:4111/api"),
		BankAPIVersion:    readString("BANK_API_VERSION", "v1"),
		APITimeout:        time.Duration(readInt("BANK_API_TIMEOUT_SECONDS", 30)) * time.Second,
		DirectoryUser:     readString("BANK_DIRECTORY_USER", "admin"),
		DirectoryPassword: readString("BANK_DIRECTORY_PASSWORD", "admin"),
		SessionSecret:     os.Getenv("SESSION_SECRET"),
		SessionTTL:        time.Duration(readInt("SESSION_TTL_HOURS", 12)) * time.Hour,
		CLIHome:           readString("BANK_CLI_HOME", defaultCLIHome()),
	}
}

// BaseURL is the versioned backend root, e.g. http://localhost:4111/api/v1.
func (c Config) BaseURL() string {
	base := strings.TrimRight(c.BankAPIURL, "/")
	if c.BankAPIVersion == "" {
		return base
	}
	return base + "/" + strings.Trim(c.BankAPIVersion, "/")
}

// WriteTimeout bounds one shell response. A screen makes at most three
// backend calls in a row; a zero APITimeout leaves responses unbounded.
func (c Config) WriteTimeout() time.Duration {
	if c.APITimeout == 0 {
		return 0
	}
	return 3*c.APITimeout + 10*time.Second
}

func defaultCLIHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nobugs-bank"
	}
	return filepath.Join(home, ".nobugs-bank")
}

func readString(key, fallback string) string {
	if raw := os.Getenv(key); raw != "" {
		return raw
	}
	return fallback
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
