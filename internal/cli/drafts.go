package cli

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/roach88/quill/internal/journal"
)

type draftView struct {
	ID      string    `json:"id"`
	Date    string    `json:"date"`
	Type    string    `json:"type"`
	Session string    `json:"session"`
	SavedAt time.Time `json:"saved_at"`
	Chars   int       `json:"chars"`
}

type draftsView []draftView

func (v draftsView) String() string {
	if len(v) == 0 {
		return "no recoverable drafts"
	}
	lines := make([]string, len(v))
	for i, d := range v {
		lines[i] = fmt.Sprintf("%s  %s  %d chars", d.ID, d.SavedAt.Local().Format("2006-01-02 15:04:05"), d.Chars)
	}
	return strings.Join(lines, "\n")
}

// NewDraftsCommand creates the drafts command group.
func NewDraftsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Recover unsaved content",
		Long: `Drafts hold editor content that was never committed, for example after
a crash. A draft is recoverable when it is newer than the saved entry or
the entry does not exist.`,
	}
	cmd.AddCommand(newDraftsListCommand(rootOpts))
	cmd.AddCommand(newDraftsAcceptCommand(rootOpts))
	cmd.AddCommand(newDraftsDiscardCommand(rootOpts))
	return cmd
}

func newDraftsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recoverable drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rootOpts.openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close(cmd.Context())

			list, err := svc.ListRecoverableDrafts(cmd.Context())
			if err != nil {
				return journalExit("list drafts failed", err)
			}
			v := make(draftsView, len(list))
			for i, d := range list {
				v[i] = draftView{
					ID:      d.ID,
					Date:    string(d.Key.Date),
					Type:    string(d.Key.Type),
					Session: d.SessionID,
					SavedAt: d.SavedAt,
					Chars:   utf8.RuneCountInString(d.Content),
				}
			}
			return rootOpts.formatter(cmd).Success(v)
		},
	}
}

func newDraftsAcceptCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accept <draft-id>",
		Short: "Save a draft as the entry",
		Long: `Save a draft's content over the entry it belongs to.

The draft content replaces the current entry, whatever version it is at,
and the draft is dropped once the entry is saved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rootOpts.openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close(cmd.Context())

			doc, err := svc.AcceptDraft(cmd.Context(), args[0])
			if err != nil {
				return journalExit("accept draft failed", err)
			}
			e, err := doc.SaveNow(cmd.Context())
			if err != nil {
				return journalExit("accept draft failed", err)
			}

			v := newEntryView(e)
			v.Content = ""
			v.summary = fmt.Sprintf("recovered %s v%d", e.Key(), e.Version)
			return rootOpts.formatter(cmd).Success(v)
		},
	}
}

type discardView struct {
	ID string `json:"id"`
}

func (v discardView) String() string {
	return "discarded " + v.ID
}

func newDraftsDiscardCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <draft-id>",
		Short: "Delete a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := journal.ParseDraftID(args[0]); err != nil {
				return journalExit("invalid draft id", err)
			}
			svc, err := rootOpts.openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close(cmd.Context())

			if err := svc.DiscardDraft(cmd.Context(), args[0]); err != nil {
				return journalExit("discard draft failed", err)
			}
			return rootOpts.formatter(cmd).Success(discardView{ID: args[0]})
		},
	}
}
