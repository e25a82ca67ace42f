// Package builder freezes the Python monitoring client into a standalone
// binary and guarantees the result embeds the authoritative version. A stale
// binary reused from a previous build once reached production; the staleness
// guard here is what makes that impossible.
package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Fudheryk/monitoring-client/internal/authority"
	"github.com/Fudheryk/monitoring-client/internal/config"
	"github.com/Fudheryk/monitoring-client/internal/utils/file"
	"github.com/Fudheryk/monitoring-client/internal/utils/logger"
	"github.com/Fudheryk/monitoring-client/internal/utils/shell"
)

// Builder produces the frozen binary.
type Builder struct {
	cfg  *config.Config
	auth *authority.Authority
}

// New returns a Builder bound to the given configuration and authority.
func New(cfg *config.Config, auth *authority.Authority) *Builder {
	return &Builder{cfg: cfg, auth: auth}
}

// Build freezes the application and returns the path of the produced binary.
// The previous binary is always removed first (never incrementally reused)
// and the new binary must self-report the authority's version before it is
// accepted for packaging.
func (b *Builder) Build() (string, error) {
	log := logger.Logger()

	version, err := b.auth.Current()
	if err != nil {
		return "", err
	}

	if !shell.IsCommandExist("pyinstaller") {
		return "", fmt.Errorf("pyinstaller not found; install it with: pip install pyinstaller")
	}
	if !file.Exists(b.cfg.Build.SpecFile) {
		return "", fmt.Errorf("freezer spec file %s does not exist", b.cfg.Build.SpecFile)
	}

	distDir := b.cfg.Paths.DistDir
	if err := file.EnsureDir(distDir, 0o755); err != nil {
		return "", err
	}

	// A prior containerized run may have left the output tree owned by
	// another UID. Fail before building, with the repair command, instead of
	// letting the freezer die halfway through.
	if err := file.IsWritableDir(distDir); err != nil {
		return "", err
	}

	b.cleanCaches()

	if err := b.uninstallPriorPackage(); err != nil {
		return "", err
	}

	binary := b.cfg.BinaryPath()
	if file.Exists(binary) {
		if err := os.Remove(binary); err != nil {
			return "", fmt.Errorf(
				"cannot remove previous binary %s: %v; run: sudo chown -R $(id -u):$(id -g) %s",
				binary, err, distDir)
		}
	}

	log.Infof("freezing %s %s", b.cfg.App.Name, version)

	buildLog := filepath.Join(b.cfg.Paths.BuildDir, "pyinstaller.log")
	if err := file.EnsureDir(b.cfg.Paths.BuildDir, 0o755); err != nil {
		return "", err
	}

	cmd := fmt.Sprintf("pyinstaller --clean --noconfirm --distpath %s --workpath %s %s",
		distDir, b.cfg.Paths.BuildDir, b.cfg.Build.SpecFile)

	output, err := shell.ExecCmdWithStream(cmd, false, shell.HostPath, nil)
	if werr := os.WriteFile(buildLog, []byte(output), 0o644); werr != nil {
		log.Warnf("could not preserve freezer output in %s: %v", buildLog, werr)
	}
	if err != nil {
		return "", fmt.Errorf("freezing failed (output preserved in %s): %w", buildLog, err)
	}

	if !file.NonEmpty(binary) {
		return "", fmt.Errorf("freezer reported success but %s is missing or empty", binary)
	}

	if err := VerifyBinaryVersion(binary, version); err != nil {
		if b.cfg.Build.StrictVersionCheck {
			return "", err
		}
		log.Warnf("continuing despite version mismatch (strict_version_check=false): %v", err)
	}

	log.Infof("built %s", binary)
	return binary, nil
}

// VerifyBinaryVersion invokes the binary's version flag and compares its
// self-reported version (second whitespace-delimited token) against want.
// A mismatch is a correctness bug, never an environment issue.
func VerifyBinaryVersion(binary, want string) error {
	abs, err := filepath.Abs(binary)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", binary, err)
	}

	output, err := shell.ExecCmdSilent(abs+" --version", false, shell.HostPath, nil)
	if err != nil {
		return fmt.Errorf("querying binary version: %w", err)
	}

	fields := strings.Fields(output)
	if len(fields) < 2 {
		return fmt.Errorf("unexpected version output %q from %s", strings.TrimSpace(output), binary)
	}

	got := fields[1]
	if got != want {
		return fmt.Errorf("stale binary: %s reports version %s but the authority holds %s", binary, got, want)
	}

	return nil
}

// cleanCaches removes freezer scratch directories. Failure here never aborts
// the pipeline; the directories are disposable.
func (b *Builder) cleanCaches() {
	log := logger.Logger()
	for _, p := range b.cfg.Build.CleanPaths {
		if !file.Exists(p) {
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			log.Warnf("could not clean %s: %v", p, err)
			continue
		}
		log.Debugf("cleaned %s", p)
	}
}

// uninstallPriorPackage removes a venv-installed copy of the application so
// the freezer bundles the source tree, not a stale installed package.
func (b *Builder) uninstallPriorPackage() error {
	log := logger.Logger()

	pkg := b.cfg.Build.PythonPackage
	if pkg == "" {
		return nil
	}

	output, err := shell.ExecCmdSilent("pip uninstall -y "+pkg, false, shell.HostPath, nil)
	if err != nil {
		// pip fails when the package was never installed; that is the state
		// we wanted anyway.
		if strings.Contains(output, "not installed") {
			return nil
		}
		log.Warnf("pip uninstall %s: %v", pkg, err)
	}
	return nil
}
