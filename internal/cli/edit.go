package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var errNoEditorFound = errors.New("no editor found: set $EDITOR")

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <date> [type]",
		Short: "Edit an entry in $EDITOR",
		Long: `Open an entry in $EDITOR and save it when the editor exits.

The edited text goes through auto-save: a draft is written first, so the
content survives a failed save and shows up in "quill drafts list".`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args)
			if err != nil {
				return err
			}
			editor, err := resolveEditor(rootOpts.Getenv)
			if err != nil {
				return WrapExitError(ExitCommandError, "cannot edit", err)
			}

			svc, err := rootOpts.openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close(cmd.Context())

			doc, err := svc.OpenDocument(cmd.Context(), key)
			if err != nil {
				return journalExit("load failed", err)
			}

			edited, err := editText(cmd, editor, doc.Content())
			if err != nil {
				return err
			}
			before := doc.Version()
			doc.Edit(edited)

			e, err := doc.SaveNow(cmd.Context())
			if err != nil {
				return journalExit("save failed", err)
			}
			v := newEntryView(e)
			v.Content = ""
			v.summary = fmt.Sprintf("saved %s v%d", key, e.Version)
			if e.Version == before {
				// A new entry left empty has no stored row to report.
				v.Date, v.Type = string(key.Date), string(key.Type)
				v.summary = "no changes"
			}
			return rootOpts.formatter(cmd).Success(v)
		},
	}
}

// resolveEditor picks $VISUAL, then $EDITOR, then vi.
func resolveEditor(getenv func(string) string) (string, error) {
	for _, name := range []string{"VISUAL", "EDITOR"} {
		if e := strings.TrimSpace(getenv(name)); e != "" {
			return e, nil
		}
	}
	if _, err := exec.LookPath("vi"); err == nil {
		return "vi", nil
	}
	return "", errNoEditorFound
}

// editText writes content to a temporary file, runs the editor on it and
// returns the result.
func editText(cmd *cobra.Command, editor, content string) (string, error) {
	dir, err := os.MkdirTemp("", "quill-edit-")
	if err != nil {
		return "", WrapExitError(ExitFailure, "cannot create temp file", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "entry.md")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", WrapExitError(ExitFailure, "cannot create temp file", err)
	}

	fields := strings.Fields(editor)
	c := exec.CommandContext(cmd.Context(), fields[0], append(fields[1:], path)...)
	c.Stdin = cmd.InOrStdin()
	c.Stdout = cmd.OutOrStdout()
	c.Stderr = cmd.ErrOrStderr()
	if err := c.Run(); err != nil {
		return "", WrapExitError(ExitFailure, "editor failed", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", WrapExitError(ExitFailure, "cannot read edited file", err)
	}
	return string(data), nil
}
