package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("reads finance document path", func(t *testing.T) {
		path := writeConfig(t, `{"finance": {"document_path": "/data/docs"}}`)

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/data/docs", cfg.Finance.DocumentPath)
		assert.Equal(t, "local", cfg.Finance.Archive.Backend)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, 15, cfg.MarketData.TimeoutSeconds)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeConfig(t, `{"finance": {"document_path": "/data/docs"}, "logging": {"level": "warn"}}`)
		t.Setenv("SERENDIPITY_FINANCE_DOCUMENT_PATH", "/override")
		t.Setenv("SERENDIPITY_LOGGING_LEVEL", "debug")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/override", cfg.Finance.DocumentPath)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("missing document path fails validation", func(t *testing.T) {
		path := writeConfig(t, `{"finance": {}}`)

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DocumentPath")
	})

	t.Run("gcs backend requires bucket", func(t *testing.T) {
		path := writeConfig(t, `{"finance": {"document_path": "/d", "archive": {"backend": "gcs"}}}`)

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "GCSBucket")
	})

	t.Run("malformed json", func(t *testing.T) {
		path := writeConfig(t, `{"finance": `)

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("missing file falls back to environment", func(t *testing.T) {
		t.Setenv("SERENDIPITY_FINANCE_DOCUMENT_PATH", "/env/docs")

		cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
		require.NoError(t, err)
		assert.Equal(t, "/env/docs", cfg.Finance.DocumentPath)
	})
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, "config.json", filepath.Base(DefaultPath()))
	assert.Equal(t, ".serendipity", filepath.Base(filepath.Dir(DefaultPath())))
}
