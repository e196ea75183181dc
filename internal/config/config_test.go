package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "simulator", cfg.Model.Provider)
	assert.Equal(t, 0.7, cfg.Model.Temperature)
	assert.Equal(t, "BiasLens", cfg.Signing.Authority)
}

func TestLoadYAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
model:
  provider: anthropic
  name: claude-sonnet-4-5
  max_tokens: 2048
`), 0o600))

	t.Setenv("EVALUATION_MODEL_PROVIDER", "openai")
	t.Setenv("EVALUATION_TEMPERATURE", "0.2")
	t.Setenv("EVALUATION_SEED", "42")
	t.Setenv("API_KEY_ENCRYPTION_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)

	// YAML sets the base; env wins where both are present.
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, 2048, cfg.Model.MaxTokens)
	assert.Equal(t, 0.2, cfg.Model.Temperature)
	assert.Equal(t, int64(42), cfg.Model.Seed)
	assert.Equal(t, "s3cret", cfg.Secrets.APIKeyEncryptionSecret)
}
