package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3*time.Second, cfg.Autosave.Debounce.Std())
	assert.Equal(t, 30*time.Second, cfg.Autosave.Ceiling.Std())
	assert.Equal(t, 0.6, cfg.Ranking.Weights.Relevance)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := writeFile(t, "config.yaml", `
data_dir: /tmp/journal
autosave:
  debounce: 1500ms
search:
  max_query_tokens: 10
ranking:
  type_weights:
    monthly: 0.5
`)

	cfg, err := Load(path, noEnv)
	require.NoError(t, err)

	want := Default()
	want.DataDir = "/tmp/journal"
	want.Autosave.Debounce = Duration(1500 * time.Millisecond)
	want.Search.MaxQueryTokens = 10
	want.Ranking.TypeWeights["monthly"] = 0.5
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_JSONWithComments(t *testing.T) {
	path := writeFile(t, "config.jsonc", `{
	// where entries live
	"data_dir": "/tmp/j",
	"drafts": {"retention": "24h"},
	"ranking": {"half_life": "240h",},
}`)

	cfg, err := Load(path, noEnv)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/j", cfg.DataDir)
	assert.Equal(t, 24*time.Hour, cfg.Drafts.Retention.Std())
	assert.Equal(t, 240*time.Hour, cfg.Ranking.HalfLife.Std())
	assert.Equal(t, 5, cfg.Autosave.MaxAttempts)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"ceiling not above debounce", "autosave:\n  debounce: 10s\n  ceiling: 5s\n"},
		{"zero attempts", "autosave:\n  max_attempts: 0\n"},
		{"negative weight", "ranking:\n  weights:\n    recency: -1\n"},
		{"unknown type weight", "ranking:\n  type_weights:\n    yearly: 1\n"},
		{"default above max limit", "search:\n  default_limit: 500\n"},
		{"bad duration", "timeout: soon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", tt.body), noEnv)
			assert.ErrorIs(t, err, errInvalid)
		})
	}
}

func TestLoad_MissingFiles(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), noEnv)
	assert.Error(t, err)

	xdg := t.TempDir()
	cfg, err := Load("", func(k string) string {
		if k == "XDG_CONFIG_HOME" {
			return xdg
		}
		return ""
	})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_UnknownExtension(t *testing.T) {
	_, err := Load(writeFile(t, "config.toml", "x = 1"), noEnv)
	assert.ErrorIs(t, err, errUnknownFormat)
}

func TestDefaultPath(t *testing.T) {
	got := DefaultPath(func(k string) string {
		if k == "XDG_CONFIG_HOME" {
			return "/xdg"
		}
		return ""
	})
	assert.Equal(t, filepath.Join("/xdg", "quill", "config.yaml"), got)
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefault(path, false))

	cfg, err := Load(path, noEnv)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "debounce: 3s")
	assert.Contains(t, string(data), "retention: 168h0m0s")

	assert.ErrorIs(t, WriteDefault(path, false), ErrExists)
	assert.NoError(t, WriteDefault(path, true))
}
