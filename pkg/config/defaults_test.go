package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, DefaultLedgerURL, s.Ledger.URL)
	assert.Equal(t, DefaultRegion, s.AWS.Region)
	assert.Equal(t, "info", s.Log.Level)
	assert.Equal(t, 1, s.Spawn.Budget)
	assert.NoError(t, s.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridspawn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ledger:
  url: sqlite:///tmp/ledger.db
log:
  level: debug
spawn:
  seed: 99
  interval: 25ms
  format: json
`), 0o600))
	t.Setenv("GRIDSPAWN_LOG_JSON", "true")
	t.Setenv("GRIDSPAWN_SPAWN_BUDGET", "4")

	s, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite:///tmp/ledger.db", s.Ledger.URL)
	assert.Equal(t, "debug", s.Log.Level)
	assert.True(t, s.Log.JSON)
	assert.Equal(t, uint64(99), s.Spawn.Seed)
	assert.Equal(t, 25*time.Millisecond, s.Spawn.Interval)
	assert.Equal(t, 4, s.Spawn.Budget)
	assert.Equal(t, "json", s.Spawn.Format)
	assert.Equal(t, DefaultRegion, s.AWS.Region)

	ec := s.Engine()
	assert.Equal(t, "sqlite:///tmp/ledger.db", ec.LedgerURL)
	assert.Equal(t, uint64(99), ec.Seed)
	assert.Equal(t, DefaultRegion, ec.AWS.Region)
	assert.True(t, ec.JSONLogs)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridspawn.yaml")
	require.NoError(t, os.WriteFile(path, []byte("spawn:\n  budget: -1\n  format: pdf\n"), 0o600))

	_, err := Load(viper.New(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spawn.budget -1 is negative")
	assert.Contains(t, err.Error(), `unknown report format "pdf"`)
}
