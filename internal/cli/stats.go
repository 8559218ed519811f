package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type statsView struct {
	Entries  int `json:"entries"`
	Indexed  int `json:"indexed"`
	Postings int `json:"postings"`
	History  int `json:"history"`
}

func (v statsView) String() string {
	return fmt.Sprintf("entries:  %d\nindexed:  %d\npostings: %d\nhistory:  %d", v.Entries, v.Indexed, v.Postings, v.History)
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rootOpts.openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close(cmd.Context())

			st, err := svc.Stats(cmd.Context())
			if err != nil {
				return journalExit("stats failed", err)
			}
			return rootOpts.formatter(cmd).Success(statsView(st))
		},
	}
}
