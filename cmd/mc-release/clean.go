package main

import (
	"fmt"

	"github.com/Fudheryk/monitoring-client/internal/cache"
	"github.com/Fudheryk/monitoring-client/internal/config"
	"github.com/spf13/cobra"
)

func createCleanCommand() *cobra.Command {
	var (
		opts cache.CleanOptions
		all  bool
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove pipeline scratch directories",
		Long: `Remove the freezer scratch, the package staging trees and/or the built
artifacts to reclaim disk space.

By default the command removes build scratch and staging trees; dist/ is only
removed when explicitly requested or with --all.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			buildFlag := cmd.Flags().Changed("build")
			stagingFlag := cmd.Flags().Changed("staging")
			distFlag := cmd.Flags().Changed("dist")

			if all {
				opts.CleanBuild = true
				opts.CleanStaging = true
				opts.CleanDist = true
			} else if !buildFlag && !stagingFlag && !distFlag {
				opts.CleanBuild = true
				opts.CleanStaging = true
			}

			result, err := cache.Clean(config.Global(), opts)
			if err != nil {
				return err
			}

			output := []string{}
			if opts.DryRun {
				output = append(output, "Dry run: no files were deleted.")
			}

			if len(result.RemovedPaths) > 0 {
				header := "Removed paths:"
				if opts.DryRun {
					header = "Would remove:"
				}
				output = append(output, header)
				output = append(output, indentPaths(result.RemovedPaths)...)
			}

			if len(result.RemovedPaths) == 0 && len(result.SkippedPaths) == 0 {
				output = append(output, "Nothing to clean.")
			}

			if len(result.SkippedPaths) > 0 {
				output = append(output, "Skipped (not found):")
				output = append(output, indentPaths(result.SkippedPaths)...)
			}

			writer := cmd.OutOrStdout()
			for _, line := range output {
				fmt.Fprintln(writer, line)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove build scratch, staging trees and built artifacts")
	cmd.Flags().BoolVar(&opts.CleanBuild, "build", false, "Remove freezer scratch and configured clean paths")
	cmd.Flags().BoolVar(&opts.CleanStaging, "staging", false, "Remove package staging trees")
	cmd.Flags().BoolVar(&opts.CleanDist, "dist", false, "Remove built artifacts")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Show what would be removed without deleting anything")

	return cmd
}

func indentPaths(values []string) []string {
	lines := make([]string, len(values))
	for i, v := range values {
		lines[i] = "  " + v
	}
	return lines
}
