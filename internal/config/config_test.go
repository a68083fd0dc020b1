package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_KEY", "anon-key")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("CONFIG_FILE", "")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, 5, cfg.MaxFileSizeMB)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxFileSizeBytes())
	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Equal(t, []string{"*"}, cfg.Origins())
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.VisionModel)
}

func TestLoadMissingRequired(t *testing.T) {
	setRequiredEnv(t)
	os.Unsetenv("SUPABASE_URL")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadFileOverride(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 8081\nmax_file_size_mb: 10\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, 10, cfg.MaxFileSizeMB)
	// env values not mentioned in the file survive
	assert.Equal(t, "https://example.supabase.co", cfg.SupabaseURL)
}

func TestOriginsParsing(t *testing.T) {
	cfg := &Config{AllowedOrigins: "https://a.example, https://b.example ,"}
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins())
}

func TestValidateRejectsBadPort(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "70000")

	_, err := Load()
	require.Error(t, err)
}
