package main

import (
	"fmt"

	"github.com/Fudheryk/monitoring-client/internal/authority"
	"github.com/Fudheryk/monitoring-client/internal/builder"
	"github.com/Fudheryk/monitoring-client/internal/config"
	"github.com/Fudheryk/monitoring-client/internal/pkg/deb"
	"github.com/Fudheryk/monitoring-client/internal/pkg/rpm"
	"github.com/Fudheryk/monitoring-client/internal/pkg/tarball"
	"github.com/Fudheryk/monitoring-client/internal/utils/logger"
	"github.com/spf13/cobra"
)

// createPackageCommand creates the package subcommand
func createPackageCommand() *cobra.Command {
	var rebuild bool

	packageCmd := &cobra.Command{
		Use:   "package {deb|rpm|tarball|all}",
		Short: "Wrap the built binary into a distribution artifact",
		Long: `Assemble one or every distribution artifact from the frozen binary.
The binary's self-reported version is compared against the version authority
before any native packaging tool runs; a stale binary never reaches a package.

Formats:
  deb      Debian package via dpkg-deb
  rpm      RedHat package via rpmbuild (optionally inside Docker)
  tarball  Compressed tar archive(s) of the install tree
  all      Every format above, sequentially`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"deb", "rpm", "tarball", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return executePackage(args[0], rebuild)
		},
	}

	packageCmd.Flags().BoolVar(&rebuild, "rebuild", false,
		"Re-freeze the binary before packaging instead of using the existing one")

	return packageCmd
}

func executePackage(format string, rebuild bool) error {
	log := logger.Logger()
	cfg := config.Global()
	auth := authority.New(cfg)

	binary := cfg.BinaryPath()
	if rebuild {
		built, err := builder.New(cfg, auth).Build()
		if err != nil {
			return err
		}
		binary = built
	}

	switch format {
	case "deb":
		artifact, err := deb.New(cfg, auth).Assemble(binary)
		if err != nil {
			return err
		}
		log.Infof("assembled %s", artifact)

	case "rpm":
		artifact, err := rpm.New(cfg, auth).Assemble(binary)
		if err != nil {
			return err
		}
		log.Infof("assembled %s", artifact)

	case "tarball":
		artifacts, err := tarball.New(cfg, auth).Assemble(binary)
		if err != nil {
			return err
		}
		for _, artifact := range artifacts {
			log.Infof("assembled %s", artifact)
		}

	case "all":
		for _, f := range []string{"deb", "rpm", "tarball"} {
			if err := executePackage(f, false); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("unknown package format %q (expected deb, rpm, tarball or all)", format)
	}

	return nil
}
