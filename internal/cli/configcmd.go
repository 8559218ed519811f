package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/quill/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(newConfigInitCommand(rootOpts))
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	return cmd
}

type pathView struct {
	Path string `json:"path"`
}

func (v pathView) String() string {
	return "wrote " + v.Path
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Long: `Write the default configuration to --config, or to
$XDG_CONFIG_HOME/quill/config.yaml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if path == "" {
				path = config.DefaultPath(rootOpts.Getenv)
			}
			if path == "" {
				return NewExitError(ExitCommandError, "cannot determine config path: pass --config")
			}
			if err := config.WriteDefault(path, force); err != nil {
				if errors.Is(err, config.ErrExists) {
					return WrapExitError(ExitCommandError, "refusing to overwrite (use --force)", err)
				}
				return WrapExitError(ExitFailure, "failed to write config", err)
			}
			return rootOpts.formatter(cmd).Success(pathView{Path: path})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

type configView struct {
	config.Config
	yaml string
}

func (v configView) String() string {
	return strings.TrimSuffix(v.yaml, "\n")
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			body, err := config.Format(cfg)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to format config", err)
			}
			return rootOpts.formatter(cmd).Success(configView{Config: cfg, yaml: string(body)})
		},
	}
}
