// Package deb wraps dpkg-deb: it stages the InstallTree, generates the
// control manifest and maintainer scripts, and produces the canonical
// <name>_<version>_<arch>.deb artifact.
package deb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Fudheryk/monitoring-client/internal/authority"
	"github.com/Fudheryk/monitoring-client/internal/builder"
	"github.com/Fudheryk/monitoring-client/internal/config"
	"github.com/Fudheryk/monitoring-client/internal/lifecycle"
	"github.com/Fudheryk/monitoring-client/internal/pkg/stage"
	"github.com/Fudheryk/monitoring-client/internal/utils/file"
	"github.com/Fudheryk/monitoring-client/internal/utils/logger"
	"github.com/Fudheryk/monitoring-client/internal/utils/shell"
)

// Assembler builds the Debian package.
type Assembler struct {
	cfg  *config.Config
	auth *authority.Authority
}

// New returns an Assembler bound to the given configuration and authority.
func New(cfg *config.Config, auth *authority.Authority) *Assembler {
	return &Assembler{cfg: cfg, auth: auth}
}

var controlTmpl = template.Must(template.New("control").Parse(`Package: {{.Name}}
Version: {{.Version}}
Section: {{.Section}}
Priority: {{.Priority}}
Architecture: {{.Arch}}
Depends: systemd (>= {{.MinSystemd}})
Maintainer: {{.Maintainer}}
{{- if .Homepage}}
Homepage: {{.Homepage}}
{{- end}}
Description: {{.Summary}}
{{.WrappedDescription}}`))

type controlData struct {
	Name               string
	Version            string
	Section            string
	Priority           string
	Arch               string
	MinSystemd         string
	Maintainer         string
	Homepage           string
	Summary            string
	WrappedDescription string
}

// Assemble stages, packages and canonicalizes the .deb. The binary's
// self-reported version is checked against the authority before dpkg-deb is
// ever invoked: a stale binary must never reach an installable artifact.
func (a *Assembler) Assemble(binary string) (string, error) {
	log := logger.Logger()

	version, err := a.auth.Current()
	if err != nil {
		return "", err
	}

	if !shell.IsCommandExist("dpkg-deb") {
		return "", fmt.Errorf("dpkg-deb not found; install it with: apt install dpkg-dev")
	}
	if err := stage.CheckInputs(a.cfg, binary); err != nil {
		return "", err
	}

	if err := builder.VerifyBinaryVersion(binary, version); err != nil {
		if a.cfg.Build.StrictVersionCheck {
			return "", err
		}
		log.Warnf("continuing despite version mismatch (strict_version_check=false): %v", err)
	}

	root := filepath.Join(a.cfg.Paths.StagingDir, "deb")
	if err := stage.Build(root, a.cfg, binary); err != nil {
		return "", err
	}

	if err := a.writeControl(root, version); err != nil {
		return "", err
	}
	if err := a.writeConffiles(root); err != nil {
		return "", err
	}
	if err := a.writeMaintainerScripts(root); err != nil {
		return "", err
	}

	if err := file.EnsureDir(a.cfg.Paths.DistDir, 0o755); err != nil {
		return "", err
	}
	if err := file.IsWritableDir(a.cfg.Paths.DistDir); err != nil {
		return "", err
	}

	expected := filepath.Join(a.cfg.Paths.DistDir,
		fmt.Sprintf("%s_%s_%s.deb", a.cfg.App.Name, version, a.cfg.Deb.Arch))

	cmd := fmt.Sprintf("dpkg-deb --build --root-owner-group %s %s", root, expected)
	if _, err := shell.ExecCmdWithStream(cmd, false, shell.HostPath, nil); err != nil {
		return "", fmt.Errorf("dpkg-deb failed: %w", err)
	}

	if !file.NonEmpty(expected) {
		return "", fmt.Errorf("dpkg-deb reported success but %s is missing or empty", expected)
	}

	log.Infof("assembled %s", expected)
	return expected, nil
}

func (a *Assembler) writeControl(root, version string) error {
	debianDir := filepath.Join(root, "DEBIAN")
	if err := file.EnsureDir(debianDir, 0o755); err != nil {
		return err
	}

	var sb strings.Builder
	data := controlData{
		Name:               a.cfg.App.Name,
		Version:            version,
		Section:            a.cfg.Deb.Section,
		Priority:           a.cfg.Deb.Priority,
		Arch:               a.cfg.Deb.Arch,
		MinSystemd:         a.cfg.Deb.MinSystemd,
		Maintainer:         a.cfg.App.Maintainer,
		Homepage:           a.cfg.App.Homepage,
		Summary:            a.cfg.App.Summary,
		WrappedDescription: wrapDescription(a.cfg.App.Description),
	}
	if err := controlTmpl.Execute(&sb, data); err != nil {
		return fmt.Errorf("rendering control file: %w", err)
	}

	return os.WriteFile(filepath.Join(debianDir, "control"), []byte(sb.String()+"\n"), 0o644)
}

// wrapDescription indents continuation lines the way dpkg requires: one
// leading space, "." for blank lines.
func wrapDescription(desc string) string {
	lines := strings.Split(strings.TrimSpace(desc), "\n")
	out := make([]string, len(lines))
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			line = "."
		}
		out[i] = " " + line
	}
	return strings.Join(out, "\n")
}

func (a *Assembler) writeConffiles(root string) error {
	paths := stage.Conffiles(a.cfg)
	contents := strings.Join(paths, "\n") + "\n"
	return os.WriteFile(filepath.Join(root, "DEBIAN", "conffiles"), []byte(contents), 0o644)
}

func (a *Assembler) writeMaintainerScripts(root string) error {
	layout := lifecycle.LayoutFromConfig(a.cfg)

	scripts := []struct {
		name   string
		render func(lifecycle.Layout) (string, error)
	}{
		{"postinst", lifecycle.RenderPostInstall},
		{"prerm", lifecycle.RenderPreRemove},
		{"postrm", lifecycle.RenderPostRemove},
	}

	for _, s := range scripts {
		body, err := s.render(layout)
		if err != nil {
			return err
		}
		path := filepath.Join(root, "DEBIAN", s.name)
		if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}

	return nil
}
