package main

import (
	"github.com/Fudheryk/monitoring-client/internal/authority"
	"github.com/Fudheryk/monitoring-client/internal/builder"
	"github.com/Fudheryk/monitoring-client/internal/config"
	"github.com/spf13/cobra"
)

// Build command flags
var (
	distDir     string = "" // Empty means use config file value
	skipStrict  bool   = false
)

// createBuildCommand creates the build subcommand
func createBuildCommand() *cobra.Command {
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Freeze the monitoring client into a standalone binary",
		Long: `Freeze the application with PyInstaller into a single binary. Any
previous binary at the output path is removed first, a venv-installed copy of
the package is uninstalled so it cannot shadow the source tree, and the
produced binary must self-report the authority's version before it is
accepted.`,
		Args: cobra.NoArgs,
		RunE: executeBuild,
	}

	buildCmd.Flags().StringVar(&distDir, "dist-dir", "",
		"Output directory for the built binary")
	buildCmd.Flags().BoolVar(&skipStrict, "no-strict-version-check", false,
		"Downgrade a binary/authority version mismatch to a warning")

	return buildCmd
}

func executeBuild(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("dist-dir") {
		currentConfig := config.Global()
		currentConfig.Paths.DistDir = distDir
		config.SetGlobal(currentConfig)
	}
	if skipStrict {
		currentConfig := config.Global()
		currentConfig.Build.StrictVersionCheck = false
		config.SetGlobal(currentConfig)
	}

	cfg := config.Global()
	auth := authority.New(cfg)

	_, err := builder.New(cfg, auth).Build()
	return err
}
