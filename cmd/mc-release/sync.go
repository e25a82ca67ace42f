package main

import (
	"fmt"

	"github.com/Fudheryk/monitoring-client/internal/authority"
	"github.com/Fudheryk/monitoring-client/internal/config"
	"github.com/Fudheryk/monitoring-client/internal/utils/logger"
	"github.com/spf13/cobra"
)

// createSyncCommand creates the sync subcommand
func createSyncCommand() *cobra.Command {
	syncCmd := &cobra.Command{
		Use:   "sync [VERSION]",
		Short: "Propagate a version into every declared target file",
		Long: `Write VERSION into the canonical version file and every propagation
target (module constant, packaging manifest), then re-read each one and fail
with a per-file diagnostic if any disagree. Partial propagation is never
silently accepted.

With no argument, only verify that every target agrees with the canonical
file and print the current version.`,
		Args: cobra.MaximumNArgs(1),
		RunE: executeSync,
	}

	return syncCmd
}

func executeSync(cmd *cobra.Command, args []string) error {
	auth := authority.New(config.Global())

	if len(args) == 0 {
		if err := auth.Verify(); err != nil {
			return err
		}
		current, err := auth.Current()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), current)
		return nil
	}

	if err := auth.Sync(args[0]); err != nil {
		return err
	}
	logger.Logger().Infof("version targets are consistent at %s", args[0])
	return nil
}
