package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_DSN", "BANK_API_URL", "BANK_API_VERSION", "BANK_API_TIMEOUT_SECONDS", "BANK_DIRECTORY_USER", "BANK_DIRECTORY_PASSWORD", "SESSION_TTL_HOURS"} {
		t.Setenv(key, "")
	}
	t.Setenv("BANK_CLI_HOME", "/tmp/bank")

	cfg := Load()
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "http://localhost:4111/api/v1", cfg.BaseURL())
	assert.Equal(t, 30*time.Second, cfg.APITimeout)
	assert.Equal(t, "admin", cfg.DirectoryUser)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "/tmp/bank", cfg.CLIHome)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BANK_API_URL", "https://bank.example/api/")
	t.Setenv("BANK_API_VERSION", "v2")
	t.Setenv("BANK_API_TIMEOUT_SECONDS", "0")
	t.Setenv("SESSION_TTL_HOURS", "oops")

	cfg := Load()
	assert.Equal(t, "https://bank.example/api/v2", cfg.BaseURL())
	assert.Equal(t, time.Duration(0), cfg.APITimeout)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
}

func TestWriteTimeoutCoversBackendCalls(t *testing.T) {
	assert.Equal(t, 100*time.Second, Config{APITimeout: 30 * time.Second}.WriteTimeout())
	assert.Equal(t, time.Duration(0), Config{}.WriteTimeout())
}
