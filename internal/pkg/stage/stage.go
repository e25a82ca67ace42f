// Package stage lays out the InstallTree all three package formats share:
// the frozen binary, the config bundle, both systemd unit variants and the
// mutable/ephemeral directory skeleton, rooted at a staging directory.
package stage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Fudheryk/monitoring-client/internal/config"
	"github.com/Fudheryk/monitoring-client/internal/lifecycle"
	"github.com/Fudheryk/monitoring-client/internal/utils/file"
	"github.com/Fudheryk/monitoring-client/internal/utils/logger"
)

// Rel converts an absolute target path into a path relative to the staging
// root ("/opt/x" -> "opt/x").
func Rel(target string) string {
	return strings.TrimPrefix(target, "/")
}

// CheckInputs verifies every file the InstallTree needs before any staging
// happens, so a missing input fails with a named error instead of an opaque
// failure mid-packaging.
func CheckInputs(cfg *config.Config, binary string) error {
	if !file.NonEmpty(binary) {
		return fmt.Errorf("binary %s does not exist or is empty; run the build step first", binary)
	}

	pkgDir := cfg.Paths.PackagingDir
	for _, asset := range []string{"config.yaml.example", "config.schema.json"} {
		if !file.Exists(filepath.Join(pkgDir, asset)) {
			return fmt.Errorf("packaging asset %s does not exist in %s", asset, pkgDir)
		}
	}

	return nil
}

// Build assembles a fresh InstallTree under root. Any pre-existing tree at
// root is removed first; staging is never incrementally reused.
func Build(root string, cfg *config.Config, binary string) error {
	log := logger.Logger()

	if err := CheckInputs(cfg, binary); err != nil {
		return err
	}

	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("removing stale staging %s: %w", root, err)
	}
	if err := file.EnsureDir(root, 0o755); err != nil {
		return err
	}

	layout := lifecycle.LayoutFromConfig(cfg)

	// Immutable: the binary at fixed mode 755.
	if err := file.CopyFile(binary, filepath.Join(root, Rel(layout.Binary)), 0o755); err != nil {
		return err
	}

	// Config bundle: example and schema are reference copies; config.yaml is
	// seeded from the example and declared as a conffile so upgrades never
	// clobber an operator's edits.
	pkgDir := cfg.Paths.PackagingDir
	configDir := filepath.Join(root, Rel(layout.ConfigDir))
	if err := file.CopyFile(filepath.Join(pkgDir, "config.yaml.example"),
		filepath.Join(configDir, "config.yaml.example"), 0o644); err != nil {
		return err
	}
	if err := file.CopyFile(filepath.Join(pkgDir, "config.schema.json"),
		filepath.Join(configDir, "config.schema.json"), 0o644); err != nil {
		return err
	}
	if _, err := file.WriteFileIfAbsent(filepath.Join(configDir, "config.yaml"),
		mustRead(filepath.Join(pkgDir, "config.yaml.example")), 0o644); err != nil {
		return err
	}

	// Both unit variants go into the shared reference directory; the hook
	// activates exactly one at install time.
	systemdDir := filepath.Join(root, Rel(layout.SystemdDir))
	for _, v := range []lifecycle.Variant{lifecycle.VariantLegacy, lifecycle.VariantModern} {
		body, err := lifecycle.RenderServiceUnit(layout, v)
		if err != nil {
			return err
		}
		unitPath := filepath.Join(systemdDir, layout.AppName+".service."+string(v))
		if err := writeFile(unitPath, body, 0o644); err != nil {
			return err
		}
	}
	timer, err := lifecycle.RenderTimerUnit(layout)
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(systemdDir, layout.AppName+".timer"), timer, 0o644); err != nil {
		return err
	}

	// Mutable and ephemeral directory skeleton.
	for _, d := range []string{layout.DataDir, layout.VendorsDir, layout.LogDir, layout.CacheDir} {
		if err := file.EnsureDir(filepath.Join(root, Rel(d)), 0o755); err != nil {
			return err
		}
	}

	log.Debugf("staged install tree at %s", root)
	return nil
}

// Conffiles returns the target paths the packager must preserve on upgrade.
// Ephemeral paths (cache, logs) are deliberately absent.
func Conffiles(cfg *config.Config) []string {
	layout := lifecycle.LayoutFromConfig(cfg)
	return []string{layout.ConfigFile}
}

func writeFile(path, contents string, mode os.FileMode) error {
	if err := file.EnsureDir(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(contents), mode); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func mustRead(path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		// CheckInputs already proved the file exists and is readable.
		panic(fmt.Sprintf("reading %s: %v", path, err))
	}
	return data
}
