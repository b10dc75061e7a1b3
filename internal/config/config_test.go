package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 6, cfg.CodeDigits)
	assert.Equal(t, 2, cfg.MinPlayers)
	assert.Equal(t, 16, cfg.OutboxSize)
	assert.Equal(t, 20*time.Second, cfg.PingInterval)
	assert.Equal(t, 1.0, cfg.OTelSampleRatio)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CARBON_LEDGER_ADDR", ":9999")
	t.Setenv("CARBON_LEDGER_MIN_PLAYERS", "4")
	t.Setenv("CARBON_LEDGER_ALLOWED_ORIGINS", "localhost:*,example.com")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 4, cfg.MinPlayers)
	assert.Equal(t, []string{"localhost:*", "example.com"}, cfg.AllowedOrigins)
}

func TestLoadDotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CARBON_LEDGER_CODE_DIGITS=8\n"), 0o600))
	// godotenv sets the variable for the rest of the process; undo it.
	t.Setenv("CARBON_LEDGER_CODE_DIGITS", "")
	require.NoError(t, os.Unsetenv("CARBON_LEDGER_CODE_DIGITS"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.CodeDigits)
}

func TestLoadRejectsMalformedVariable(t *testing.T) {
	t.Setenv(Prefix+"MIN_PLAYERS", "not-an-int")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MinPlayers")
}

func TestLoadRejectsOutOfRange(t *testing.T) {
	t.Setenv(Prefix+"OTEL_SAMPLE_RATIO", "1.5")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "sample ratio")
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Config{
		Addr:            ":8080",
		CodeDigits:      2,
		MinPlayers:      1,
		OutboxSize:      16,
		PingInterval:    time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: time.Second,
		OTelSampleRatio: 1,
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code digits")
	assert.Contains(t, err.Error(), "min players")
}
