package main

import (
	"github.com/Fudheryk/monitoring-client/internal/authority"
	"github.com/Fudheryk/monitoring-client/internal/config"
	"github.com/Fudheryk/monitoring-client/internal/publish"
	"github.com/spf13/cobra"
)

// Release command flags
var (
	releaseNotes  string
	releaseUpdate bool
)

// createReleaseCommand creates the release subcommand
func createReleaseCommand() *cobra.Command {
	releaseCmd := &cobra.Command{
		Use:   "release VERSION",
		Short: "Sync, build, package and publish a release end to end",
		Long: `Run the full pipeline for VERSION: propagate the version everywhere,
commit and tag, freeze the binary, assemble every artifact, write the checksum
manifest and publish the lot as a GitHub release.

Preconditions are checked up front: git and gh must be available, the working
tree must be clean, and the tag must not already exist unless --update is
given. Every build step enforces the strict binary/authority version match.`,
		Args: cobra.ExactArgs(1),
		RunE: executeRelease,
	}

	releaseCmd.Flags().StringVar(&releaseNotes, "notes", "",
		"Release notes body (defaults to '<app> <version>')")
	releaseCmd.Flags().BoolVar(&releaseUpdate, "update", false,
		"Allow re-publishing an existing tag, overwriting its assets")

	return releaseCmd
}

func executeRelease(cmd *cobra.Command, args []string) error {
	cfg := config.Global()
	publisher := publish.New(cfg, authority.New(cfg))

	return publisher.Release(publish.Options{
		Version: args[0],
		Notes:   releaseNotes,
		Update:  releaseUpdate,
	})
}
