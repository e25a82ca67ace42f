package cache

import (
	"fmt"
	"os"
	"sort"

	"github.com/Fudheryk/monitoring-client/internal/config"
	"github.com/Fudheryk/monitoring-client/internal/utils/file"
)

// CleanOptions defines which pipeline scratch areas should be removed.
type CleanOptions struct {
	CleanBuild   bool // freezer scratch under build_dir
	CleanStaging bool // package staging trees under staging_dir
	CleanDist    bool // built artifacts under dist_dir
	DryRun       bool // report actions without deleting anything
}

// CleanResult contains the outcome of a cleanup run.
type CleanResult struct {
	RemovedPaths []string
	SkippedPaths []string
}

// Clean removes pipeline scratch according to the provided options. Cleanup
// is soft-fail territory elsewhere in the pipeline, but an explicit clean
// command reports errors instead of swallowing them.
func Clean(cfg *config.Config, opts CleanOptions) (*CleanResult, error) {
	if !opts.CleanBuild && !opts.CleanStaging && !opts.CleanDist {
		return nil, fmt.Errorf("at least one scope must be specified")
	}

	var targets []string
	if opts.CleanBuild {
		targets = append(targets, cfg.Paths.BuildDir)
		targets = append(targets, cfg.Build.CleanPaths...)
	}
	if opts.CleanStaging {
		targets = append(targets, cfg.Paths.StagingDir)
	}
	if opts.CleanDist {
		targets = append(targets, cfg.Paths.DistDir)
	}

	removed := make([]string, 0, len(targets))
	skippedSet := make(map[string]struct{})

	for _, target := range targets {
		if !file.Exists(target) {
			skippedSet[target] = struct{}{}
			continue
		}

		if opts.DryRun {
			removed = append(removed, target)
			continue
		}

		if err := os.RemoveAll(target); err != nil {
			return nil, fmt.Errorf("removing %s: %w", target, err)
		}
		removed = append(removed, target)
	}

	sort.Strings(removed)

	skipped := make([]string, 0, len(skippedSet))
	for path := range skippedSet {
		skipped = append(skipped, path)
	}
	sort.Strings(skipped)

	return &CleanResult{
		RemovedPaths: removed,
		SkippedPaths: skipped,
	}, nil
}
