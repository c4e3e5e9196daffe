package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[engine]
tick_rate = "200ms"

[scheduler]
workers = 4
fail_policy = "abort"

[logging]
format = "json"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 200*time.Millisecond, cfg.Engine.TickRate)
	assert.Equal(t, 4, cfg.Scheduler.Workers)
	assert.Equal(t, "abort", cfg.Scheduler.FailPolicy)
	assert.Equal(t, "json", cfg.Logging.Format)

	// untouched sections keep their defaults
	assert.Equal(t, "quark", cfg.Engine.Name)
	assert.True(t, cfg.Scheduler.Verify)
	assert.Equal(t, "config/systems.yaml", cfg.Manifest.Path)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLoad_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"syntax":      "[engine",
		"policy":      "[scheduler]\nfail_policy = \"retry\"",
		"workers":     "[scheduler]\nworkers = -1",
		"tick":        "[engine]\ntick_rate = \"0s\"",
		"format":      "[logging]\nformat = \"xml\"",
		"missing dsn": "[database]\nenabled = true\ndsn = \"\"",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
