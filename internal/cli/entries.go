package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/quill/internal/journal"
)

// entryView is the printable form of an entry.
type entryView struct {
	ID        int64     `json:"id"`
	Date      string    `json:"date"`
	Type      string    `json:"type"`
	Version   int64     `json:"version"`
	Content   string    `json:"content,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`

	// summary prints a one-line confirmation instead of the content.
	summary string
}

func newEntryView(e journal.Entry) entryView {
	return entryView{
		ID:        e.ID,
		Date:      string(e.Date),
		Type:      string(e.Type),
		Version:   e.Version,
		Content:   e.Content,
		UpdatedAt: e.UpdatedAt,
	}
}

func (v entryView) String() string {
	if v.summary != "" {
		return v.summary
	}
	return fmt.Sprintf("# %s %s (v%d)\n\n%s", v.Date, v.Type, v.Version, v.Content)
}

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
	File     string
	Content  string
	Expected int64
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <date> [type]",
		Short: "Save an entry",
		Long: `Save content as the entry for a date and type (daily, weekly, monthly).

Content comes from --content, --file, or standard input. Pass --expected
with the version you last saw to update an existing entry; without it the
entry must not exist yet.

Example:
  quill save today --content "Walked the dog"
  quill save 2025-03-09 weekly --file notes.md --expected 2`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, cmd, args)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read content from file")
	cmd.Flags().StringVar(&opts.Content, "content", "", "entry content")
	cmd.Flags().Int64Var(&opts.Expected, "expected", journal.NoVersion, "version last seen (0 creates)")
	cmd.MarkFlagsMutuallyExclusive("file", "content")

	return cmd
}

func runSave(opts *SaveOptions, cmd *cobra.Command, args []string) error {
	key, err := parseKey(args)
	if err != nil {
		return err
	}
	content, err := readContent(cmd, opts)
	if err != nil {
		return err
	}

	svc, err := opts.openService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close(cmd.Context())

	e, err := svc.Save(cmd.Context(), journal.SaveRequest{Key: key, Content: content, ExpectedVersion: opts.Expected})
	if err != nil {
		return journalExit("save failed", err)
	}

	v := newEntryView(e)
	v.Content = ""
	v.summary = fmt.Sprintf("saved %s v%d", key, e.Version)
	return opts.formatter(cmd).Success(v)
}

func readContent(cmd *cobra.Command, opts *SaveOptions) (string, error) {
	switch {
	case cmd.Flags().Changed("content"):
		return opts.Content, nil
	case opts.File != "":
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return "", WrapExitError(ExitCommandError, "failed to read content", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to read content", err)
	}
	return string(data), nil
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <date> [type]",
		Short: "Print an entry",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args)
			if err != nil {
				return err
			}
			svc, err := rootOpts.openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close(cmd.Context())

			e, found, err := svc.Load(cmd.Context(), key)
			if err != nil {
				return journalExit("load failed", err)
			}
			if !found {
				return NewExitError(ExitFailure, fmt.Sprintf("no entry for %s", key))
			}
			return rootOpts.formatter(cmd).Success(newEntryView(e))
		},
	}
}

type deleteView struct {
	Key     string `json:"key"`
	Deleted bool   `json:"deleted"`
}

func (v deleteView) String() string {
	if !v.Deleted {
		return fmt.Sprintf("no entry for %s", v.Key)
	}
	return fmt.Sprintf("deleted %s", v.Key)
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <date> [type]",
		Short: "Delete an entry",
		Long: `Delete an entry and its search index rows.

Deletion is permanent. Unsaved drafts for the entry are kept and can be
recovered with "quill drafts".`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args)
			if err != nil {
				return err
			}
			svc, err := rootOpts.openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close(cmd.Context())

			existed, err := svc.Delete(cmd.Context(), key)
			if err != nil {
				return journalExit("delete failed", err)
			}
			return rootOpts.formatter(cmd).Success(deleteView{Key: key.String(), Deleted: existed})
		},
	}
}
