package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 256, cfg.Limits.MaxDepth)

	lvl, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)

	d, err := cfg.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, d)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limits:\n  max_depth: 32\nlog:\n  level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Limits.MaxDepth)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "auto", cfg.Log.Color)
	assert.Equal(t, "127.0.0.1:4433", cfg.Server.Listen)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cfg.yaml")
	cfg := Default()
	cfg.Watch.Dir = "trees"
	cfg.Server.Timeout = "1m"
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"unknown field": "limits:\n  depth: 3\n",
		"zero depth":    "limits:\n  max_depth: 0\n",
		"bad level":     "log:\n  level: loud\n",
		"bad color":     "log:\n  color: sometimes\n",
		"half tls":      "server:\n  cert_file: a.pem\n",
		"bad timeout":   "server:\n  timeout: soon\n",
		"neg timeout":   "server:\n  timeout: -1s\n",
		"not yaml":      ":\n\t-",
		"empty listen":  "server:\n  listen: \"\"\n",
	}
	dir := t.TempDir()
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
