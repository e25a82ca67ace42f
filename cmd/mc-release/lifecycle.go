package main

import (
	"fmt"

	"github.com/Fudheryk/monitoring-client/internal/config"
	"github.com/Fudheryk/monitoring-client/internal/lifecycle"
	"github.com/spf13/cobra"
)

// Lifecycle command flags
var (
	lifecycleRoot string
	asUpgrade     bool
	asPurge       bool
	withSmokeTest bool
)

// createLifecycleCommand creates the lifecycle subcommand
func createLifecycleCommand() *cobra.Command {
	lifecycleCmd := &cobra.Command{
		Use:   "lifecycle {post-install|pre-remove|post-remove}",
		Short: "Run an install-time hook transition",
		Long: `Run one of the lifecycle transitions the packages embed as maintainer
scripts. The Go runner and the rendered shell scripts share the same layout
constants, so running a hook here behaves exactly like the packaged one.

Use --root to simulate against a scratch directory instead of the live host.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"post-install", "pre-remove", "post-remove"},
		RunE:      executeLifecycle,
	}

	lifecycleCmd.Flags().StringVar(&lifecycleRoot, "root", "",
		"Install root to operate on (empty = live host)")
	lifecycleCmd.Flags().BoolVar(&asUpgrade, "upgrade", false,
		"Treat the transition as part of an upgrade")
	lifecycleCmd.Flags().BoolVar(&asPurge, "purge", false,
		"post-remove only: delete user data and configuration as well")
	lifecycleCmd.Flags().BoolVar(&withSmokeTest, "smoke-test", false,
		"post-install only: dry-run the installed binary afterwards")

	return lifecycleCmd
}

func executeLifecycle(cmd *cobra.Command, args []string) error {
	cfg := config.Global()
	runner := lifecycle.NewRunner(lifecycleRoot, lifecycle.LayoutFromConfig(cfg))

	switch args[0] {
	case "post-install":
		if err := runner.PostInstall(); err != nil {
			return err
		}
		if withSmokeTest {
			return runner.SmokeTest()
		}
		return nil

	case "pre-remove":
		return runner.PreRemove(asUpgrade)

	case "post-remove":
		state := lifecycle.RemoveKeepData
		if asUpgrade && asPurge {
			return fmt.Errorf("--upgrade and --purge are mutually exclusive")
		}
		if asUpgrade {
			state = lifecycle.Upgrade
		}
		if asPurge {
			state = lifecycle.PurgeAll
		}
		return runner.PostRemove(state)

	default:
		return fmt.Errorf("unknown lifecycle hook %q", args[0])
	}
}
