package main

import (
	"fmt"
	"os"

	"github.com/Fudheryk/monitoring-client/internal/config"
	"github.com/Fudheryk/monitoring-client/internal/utils/logger"
	"github.com/spf13/cobra"
)

// Command-line flags that can override config file settings
var (
	configFile string = "" // Path to config file
	logLevel   string = "" // Empty means use config file value
)

func main() {
	configFilePath := configFile
	if configFilePath == "" {
		configFilePath = config.FindConfigFile()
	}

	globalConfig, err := config.Load(configFilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	config.SetGlobal(globalConfig)

	_, cleanup, err := logger.InitWithConfig(logger.Config{
		Level:    globalConfig.Logging.Level,
		FilePath: globalConfig.Logging.File,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	rootCmd := createRootCommand()

	// Handle log level override after flag parsing
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if logLevel != "" {
			globalConfig.Logging.Level = logLevel
			config.SetGlobal(globalConfig)
			logger.SetLogLevel(logLevel)
		}
	}

	log := logger.Logger()
	if configFilePath != "" {
		log.Infof("Using configuration from: %s", configFilePath)
	}
	log.Debugf("Config: app=%s, dist_dir=%s, staging_dir=%s",
		globalConfig.App.Name, globalConfig.Paths.DistDir, globalConfig.Paths.StagingDir)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// createRootCommand creates and configures the root cobra command with all subcommands
func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mc-release",
		Short: "Release pipeline for the monitoring client",
		Long: `mc-release freezes the monitoring client into a standalone binary and
wraps it into Debian, RedHat and tarball distribution artifacts, keeping a
single source-of-truth version consistent across every one of them.

The pipeline fails fast: a binary whose self-reported version disagrees with
the version authority never reaches a package, and a package whose embedded
version disagrees never reaches a release.

Use 'mc-release --help' to see available commands.
Use 'mc-release <command> --help' for more information about a command.`,
	}

	// Add global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error)")

	// Add all subcommands
	rootCmd.AddCommand(createSyncCommand())
	rootCmd.AddCommand(createBuildCommand())
	rootCmd.AddCommand(createPackageCommand())
	rootCmd.AddCommand(createLifecycleCommand())
	rootCmd.AddCommand(createReleaseCommand())
	rootCmd.AddCommand(createValidateCommand())
	rootCmd.AddCommand(createCleanCommand())
	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createInstallCompletionCommand())

	return rootCmd
}
