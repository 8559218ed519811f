package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// harness runs CLI commands against a temporary data directory with no
// user config.
type harness struct {
	t       *testing.T
	dataDir string
	env     map[string]string
}

func newHarness(t *testing.T) *harness {
	return &harness{
		t:       t,
		dataDir: t.TempDir(),
		env:     map[string]string{"XDG_CONFIG_HOME": t.TempDir()},
	}
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	cmd := newRootCommand(&RootOptions{Getenv: func(k string) string { return h.env[k] }})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--data-dir", h.dataDir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (h *harness) json(args ...string) map[string]any {
	h.t.Helper()
	out, err := h.run("", append([]string{"--format", "json"}, args...)...)
	require.NoError(h.t, err)
	var resp CLIResponse
	require.NoError(h.t, json.Unmarshal([]byte(out), &resp))
	data, _ := resp.Data.(map[string]any)
	return data
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "quill", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"save"}, {"show"}, {"delete"}, {"edit"}, {"search"}, {"suggest"}, {"stats"},
		{"drafts", "list"}, {"drafts", "accept"}, {"drafts", "discard"},
		{"config", "init"}, {"config", "show"},
	}

	for _, path := range commands {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("data-dir"))
}

func TestInvalidFormat(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "--format", "xml", "stats")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSaveShowSearchDelete(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "save", "2025-03-01", "--content", "A daily walk in the park")
	require.NoError(t, err)
	assert.Equal(t, "saved 2025-03-01/daily v1\n", out)

	out, err = h.run("Daily walk, then rain\n", "save", "2025-03-02")
	require.NoError(t, err)
	assert.Contains(t, out, "v1")

	out, err = h.run("", "show", "2025-03-01")
	require.NoError(t, err)
	assert.Contains(t, out, "A daily walk in the park")

	data := h.json("search", `"daily walk" -rain`)
	assert.Equal(t, float64(1), data["total"])
	items := data["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "2025-03-01", items[0].(map[string]any)["date"])

	out, err = h.run("", "search", "walk")
	require.NoError(t, err)
	assert.Contains(t, out, "[walk]")
	assert.Contains(t, out, "2 of 2 matches")

	out, err = h.run("", "delete", "2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, "deleted 2025-03-01/daily\n", out)

	_, err = h.run("", "show", "2025-03-01")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	stats := h.json("stats")
	assert.Equal(t, float64(1), stats["entries"])
	assert.Equal(t, float64(1), stats["indexed"])
}

func TestSaveConflictExitCode(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "save", "2025-03-01", "weekly", "--content", "first")
	require.NoError(t, err)
	_, err = h.run("", "save", "2025-03-01", "weekly", "--content", "second", "--expected", "1")
	require.NoError(t, err)

	_, err = h.run("", "save", "2025-03-01", "weekly", "--content", "stale", "--expected", "1")
	require.Error(t, err)
	assert.Equal(t, ExitConflict, GetExitCode(err))
	assert.NotContains(t, err.Error(), "second")
}

func TestSaveValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "save", "2025-13-01", "--content", "x")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = h.run("", "save", "2025-03-01", "yearly", "--content", "x")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = h.run("", "save", "2999-01-01", "--content", "x")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDraftsEmpty(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "drafts", "list")
	require.NoError(t, err)
	assert.Equal(t, "no recoverable drafts\n", out)

	_, err = h.run("", "drafts", "discard", "not-an-id")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = h.run("", "drafts", "accept", "2025-03-01/daily/gone")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestEditWithScriptedEditor(t *testing.T) {
	h := newHarness(t)
	script := filepath.Join(t.TempDir(), "editor.sh")
	writeExecutable(t, script, "#!/bin/sh\nprintf 'edited by script' > \"$1\"\n")
	h.env["EDITOR"] = script

	out, err := h.run("", "edit", "2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, "saved 2025-03-01/daily v1\n", out)

	out, err = h.run("", "show", "2025-03-01")
	require.NoError(t, err)
	assert.Contains(t, out, "edited by script")
}

func TestEditUnchangedEntry(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "save", "2025-03-01", "--content", "kept as is")
	require.NoError(t, err)

	script := filepath.Join(t.TempDir(), "editor.sh")
	writeExecutable(t, script, "#!/bin/sh\nexit 0\n")
	h.env["EDITOR"] = script

	out, err := h.run("", "edit", "2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, "no changes\n", out)

	data := h.json("edit", "2025-03-01")
	assert.Equal(t, "2025-03-01", data["date"])
	assert.Equal(t, "daily", data["type"])
	assert.Equal(t, float64(1), data["version"])

	data = h.json("edit", "2025-03-02", "weekly")
	assert.Equal(t, "2025-03-02", data["date"])
	assert.Equal(t, "weekly", data["type"])
}

func TestSuggestAfterSearches(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "save", "2025-03-01", "--content", "garden party")
	require.NoError(t, err)
	_, err = h.run("", "search", "garden")
	require.NoError(t, err)

	// The writer drains queued history records before the service closes.
	out, err := h.run("", "suggest", "gar")
	require.NoError(t, err)
	assert.Contains(t, out, "garden")
}

func TestConfigInitAndShow(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "config", "init")
	require.NoError(t, err)
	path := filepath.Join(h.env["XDG_CONFIG_HOME"], "quill", "config.yaml")
	assert.Equal(t, "wrote "+path+"\n", out)

	_, err = h.run("", "config", "init")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err = h.run("", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "debounce: 3s")
	assert.Contains(t, out, "data_dir: "+h.dataDir)
}
