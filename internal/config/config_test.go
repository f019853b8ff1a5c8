package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fflagdump/internal/dump"
	"fflagdump/internal/errcode"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fflagdump.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvCache, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "target/version", cfg.CachePath)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(EnvCache, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv(EnvCache, "")
	path := writeConfig(t, `
cache_path: /tmp/flags/slot
log_level: debug
log_format: json
patterns:
  flag_def: "41 B8 ?? ?? ?? ??"
sections:
  rodata: .rodata
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/flags/slot", cfg.CachePath)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, ".rodata", cfg.Sections.ROData)
	assert.Equal(t, ".text", cfg.Sections.Code, "unset keys keep defaults")

	d, err := cfg.Decoder(nil)
	require.NoError(t, err)
	assert.Equal(t, 6, d.Patterns.FlagDef.Len())
	assert.Equal(t, dump.DefaultPatterns().StringInit, d.Patterns.StringInit)
	assert.Equal(t, ".rodata", d.Sections.ROData)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "cache_path: from-file\n")
	t.Setenv(EnvConfig, path)
	t.Setenv(EnvCache, "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.CachePath)
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv(EnvCache, "")
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "cache_path: [unterminated\n"},
		{"bad level", "log_level: loud\n"},
		{"bad format", "log_format: xml\n"},
		{"bad pattern", "patterns:\n  string_init: \"48 GG\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Equal(t, errcode.Config, errcode.Of(err))
		})
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
