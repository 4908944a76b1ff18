// Package cmd provides the CLI commands for Treedex.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/treedex/treedex/internal/config"
	"github.com/treedex/treedex/internal/logging"
	"github.com/treedex/treedex/pkg/version"
)

var debugMode bool

// NewRootCmd creates the root command for the treedex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "treedex",
		Short: "Administer Treedex catalog stores",
		Long: `Treedex is a multi-catalog content-indexing engine for hierarchical
resource trees. This CLI inspects and maintains persisted catalog
stores; it never mutates index contents outside the catalog and
synchronizer APIs.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("treedex version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(*cobra.Command, []string) {
		level := "warn"
		if debugMode {
			level = "debug"
		}
		slog.SetDefault(logging.SetupStderr(level))
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig resolves configuration for the current directory.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
