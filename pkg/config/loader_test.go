package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "toolmap.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		loader := NewLoader(filepath.Join(t.TempDir(), "nope.json"))

		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().Registry, cfg.Registry)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := writeConfigFile(t, `{
			"registry": {
				"max_tools": 5,
				"match_threshold": 0.5
			},
			"logging": {
				"level": "debug"
			},
			"metrics": {
				"enabled": true
			}
		}`)

		cfg, err := NewLoader(path).Load()
		require.NoError(t, err)

		assert.Equal(t, 5, cfg.Registry.MaxTools)
		assert.Equal(t, 0.5, cfg.Registry.MatchThreshold)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.True(t, cfg.Metrics.Enabled)

		// Untouched fields keep their defaults
		assert.Equal(t, 50, cfg.Registry.MaxHistorySize)
		assert.Equal(t, 10, cfg.Registry.InitTimeoutSeconds)
	})

	t.Run("malformed json fails", func(t *testing.T) {
		path := writeConfigFile(t, `{"registry": `)

		_, err := NewLoader(path).Load()
		assert.Error(t, err)
	})

	t.Run("invalid values fail validation", func(t *testing.T) {
		path := writeConfigFile(t, `{"registry": {"max_tools": -3}}`)

		_, err := NewLoader(path).Load()
		assert.ErrorContains(t, err, "max_tools")
	})

	t.Run("data dir defaults under home", func(t *testing.T) {
		path := writeConfigFile(t, `{}`)

		cfg, err := NewLoader(path).Load()
		require.NoError(t, err)
		assert.NotEmpty(t, cfg.DataDir)
	})
}
