package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/quill/internal/config"
	"github.com/roach88/quill/internal/journal"
	"github.com/roach88/quill/internal/service"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	DataDir    string

	// Getenv reads the environment; tests replace it.
	Getenv func(string) string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the quill CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Getenv: os.Getenv})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quill",
		Short: "quill - a local journal",
		Long: `A local journal with daily, weekly and monthly entries,
auto-save with crash recovery, and ranked full-text search.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default $XDG_CONFIG_HOME/quill/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "data directory (overrides config)")

	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewEditCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewSuggestCommand(opts))
	cmd.AddCommand(NewDraftsCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath, o.Getenv)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
	}
	return cfg, nil
}

// openService loads the config and opens the service. The caller closes it.
func (o *RootOptions) openService(cmd *cobra.Command) (*service.Service, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logLevel := slog.LevelInfo
	if o.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	svc, err := service.Open(cmd.Context(), service.Options{Config: cfg, Logger: logger})
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to open journal", err)
	}
	return svc, nil
}

// parseKey reads a <date> [type] argument pair. "today" and "yesterday"
// are accepted as dates; the type defaults to daily.
func parseKey(args []string) (journal.Key, error) {
	var date journal.Date
	switch strings.ToLower(args[0]) {
	case "today":
		date = journal.DateOf(time.Now())
	case "yesterday":
		date = journal.DateOf(time.Now().AddDate(0, 0, -1))
	default:
		d, err := journal.ParseDate(args[0])
		if err != nil {
			return journal.Key{}, journalExit("invalid date", err)
		}
		date = d
	}

	typ := journal.TypeDaily
	if len(args) > 1 {
		t, err := journal.ParseType(args[1])
		if err != nil {
			return journal.Key{}, journalExit("invalid type", err)
		}
		typ = t
	}
	return journal.Key{Date: date, Type: typ}, nil
}
