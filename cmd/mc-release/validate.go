package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Fudheryk/monitoring-client/internal/config"
	"github.com/Fudheryk/monitoring-client/internal/config/validate"
	"github.com/spf13/cobra"
)

// Validate command flags
var appConfigPath string

// createValidateCommand creates the validate subcommand
func createValidateCommand() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate [CONFIG]",
		Short: "Validate configuration files against their schemas",
		Long: `Validate the pipeline configuration (release.yaml, or CONFIG when
given) against the embedded JSON schema.

With --app-config, additionally validate an application config.yaml against
the packaged config.schema.json shipped with every artifact.`,
		Args: cobra.MaximumNArgs(1),
		RunE: executeValidate,
	}

	validateCmd.Flags().StringVar(&appConfigPath, "app-config", "",
		"Application config.yaml to validate against the shipped schema")

	return validateCmd
}

func executeValidate(cmd *cobra.Command, args []string) error {
	pipelineConfig := configFile
	if len(args) == 1 {
		pipelineConfig = args[0]
	}
	if pipelineConfig == "" {
		pipelineConfig = config.FindConfigFile()
	}

	if pipelineConfig != "" {
		if _, err := config.Load(pipelineConfig); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: valid\n", pipelineConfig)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "no pipeline config found, defaults apply")
	}

	if appConfigPath == "" {
		return nil
	}

	schemaPath := filepath.Join(config.Global().Paths.PackagingDir, "config.schema.json")
	schemaBytes, err := os.ReadFile(filepath.Clean(schemaPath))
	if err != nil {
		return fmt.Errorf("reading application schema %s: %w", schemaPath, err)
	}
	yamlData, err := os.ReadFile(filepath.Clean(appConfigPath))
	if err != nil {
		return fmt.Errorf("reading application config %s: %w", appConfigPath, err)
	}

	if err := validate.ValidateYAMLAgainstSchema("config.schema.json", schemaBytes, yamlData); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid\n", appConfigPath)
	return nil
}
