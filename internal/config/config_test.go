package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta", cfg.Gemini.BaseURL)
	assert.Equal(t, "gemini-3-flash-preview", cfg.Gemini.Model)
	assert.Equal(t, "60s", cfg.Gemini.Timeout)
	assert.Equal(t, 8192, cfg.Gemini.MaxOutputTokens)
	assert.Equal(t, ".sentilytics/feedback.db", cfg.Store.DatabasePath)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Gemini.APIKey, "no credential baked into defaults")
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Gemini.Model, cfg.Gemini.Model)
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
gemini:
  model: gemini-exp
  timeout: 30s
store:
  database_path: /tmp/custom.db
logging:
  debug_mode: true
  categories:
    gateway: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini-exp", cfg.Gemini.Model)
	assert.Equal(t, 30*time.Second, cfg.GetGeminiTimeout())
	assert.Equal(t, "/tmp/custom.db", cfg.Store.DatabasePath)
	assert.True(t, cfg.Logging.DebugMode)
	assert.True(t, cfg.Logging.Categories["gateway"])
	// Unset fields keep defaults.
	assert.Equal(t, 8192, cfg.Gemini.MaxOutputTokens)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gemini: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Gemini.Model = "gemini-custom"
	cfg.Logging.DebugMode = true
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini-custom", loaded.Gemini.Model)
	assert.True(t, loaded.Logging.DebugMode)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("SENTILYTICS_GEMINI_MODEL", "env-model")
	t.Setenv("SENTILYTICS_DB", "/tmp/env.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Gemini.APIKey)
	assert.Equal(t, "env-model", cfg.Gemini.Model)
	assert.Equal(t, "/tmp/env.db", cfg.Store.DatabasePath)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gemini:\n  model: file-model\n"), 0644))
	t.Setenv("SENTILYTICS_GEMINI_MODEL", "env-model")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-model", cfg.Gemini.Model)
}

func TestGetGeminiTimeoutFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gemini.Timeout = "not-a-duration"
	assert.Equal(t, 60*time.Second, cfg.GetGeminiTimeout())
}
