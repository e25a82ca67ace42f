// Package rpm wraps rpmbuild: it stages an rpmbuild topdir, renders the spec
// file (build, install and scriptlet sections inline) and produces the
// canonical <name>-<version>-<release>.<arch>.rpm artifact, optionally inside
// a container running as the invoking user's identity.
package rpm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/sassoftware/go-rpmutils"

	"github.com/Fudheryk/monitoring-client/internal/authority"
	"github.com/Fudheryk/monitoring-client/internal/builder"
	"github.com/Fudheryk/monitoring-client/internal/config"
	"github.com/Fudheryk/monitoring-client/internal/lifecycle"
	"github.com/Fudheryk/monitoring-client/internal/pkg/stage"
	"github.com/Fudheryk/monitoring-client/internal/utils/file"
	"github.com/Fudheryk/monitoring-client/internal/utils/logger"
	"github.com/Fudheryk/monitoring-client/internal/utils/shell"
)

// Assembler builds the RedHat package.
type Assembler struct {
	cfg  *config.Config
	auth *authority.Authority
}

// New returns an Assembler bound to the given configuration and authority.
func New(cfg *config.Config, auth *authority.Authority) *Assembler {
	return &Assembler{cfg: cfg, auth: auth}
}

var specTmpl = template.Must(template.New("rpmspec").Parse(`Name: {{.Name}}
Version: {{.Version}}
Release: {{.Release}}
Summary: {{.Summary}}
License: {{.License}}
BuildArch: {{.Arch}}
{{- if .Homepage}}
URL: {{.Homepage}}
{{- end}}
Requires: systemd >= {{.MinSystemd}}
AutoReqProv: no

%description
{{.Description}}

%install
mkdir -p %{buildroot}
cp -a %{_sourcedir}/tree/. %{buildroot}/

%files
%attr(0755,root,root) {{.Binary}}
{{.ConfigDir}}/config.yaml.example
{{.ConfigDir}}/config.schema.json
%config(noreplace) {{.ConfigDir}}/config.yaml
{{.SystemdDir}}/{{.Name}}.service.legacy
{{.SystemdDir}}/{{.Name}}.service.modern
{{.SystemdDir}}/{{.Name}}.timer
%dir %attr(0750,root,root) {{.DataDir}}
%dir {{.VendorsDir}}
%dir {{.LogDir}}
%dir {{.CacheDir}}

%post
{{.Post}}
%preun
{{.Preun}}
%postun
{{.Postun}}
%changelog
* {{.Date}} {{.Maintainer}} - {{.Version}}-{{.Release}}
- Automated release of {{.Name}} {{.Version}}
`))

type specData struct {
	Name        string
	Version     string
	Release     string
	Summary     string
	Description string
	License     string
	Arch        string
	Homepage    string
	Maintainer  string
	MinSystemd  string
	Date        string

	Binary     string
	ConfigDir  string
	SystemdDir string
	DataDir    string
	VendorsDir string
	LogDir     string
	CacheDir   string

	Post   string
	Preun  string
	Postun string
}

// Assemble stages the topdir, renders the spec and runs rpmbuild. The built
// package's Version header is read back and compared against the authority;
// this blocking sanity check is what keeps a stale binary out of the RPM.
func (a *Assembler) Assemble(binary string) (string, error) {
	log := logger.Logger()

	version, err := a.auth.Current()
	if err != nil {
		return "", err
	}

	if a.cfg.Rpm.UseDocker {
		if !shell.IsCommandExist("docker") {
			return "", fmt.Errorf("docker not found but rpm.use_docker is set")
		}
	} else if !shell.IsCommandExist("rpmbuild") {
		return "", fmt.Errorf("rpmbuild not found; install it with: apt install rpm (or dnf install rpm-build)")
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

	topdir, err := filepath.Abs(filepath.Join(a.cfg.Paths.StagingDir, "rpm"))
	if err != nil {
		return "", fmt.Errorf("resolving topdir: %w", err)
	}
	if err := os.RemoveAll(topdir); err != nil {
		return "", fmt.Errorf("removing stale topdir %s: %w", topdir, err)
	}
	for _, d := range []string{"SPECS", "SOURCES", "BUILD", "RPMS", "SRPMS"} {
		if err := file.EnsureDir(filepath.Join(topdir, d), 0o755); err != nil {
			return "", err
		}
	}

	if err := stage.Build(filepath.Join(topdir, "SOURCES", "tree"), a.cfg, binary); err != nil {
		return "", err
	}

	specPath := filepath.Join(topdir, "SPECS", a.cfg.App.Name+".spec")
	if err := a.writeSpec(specPath, version); err != nil {
		return "", err
	}

	if err := file.EnsureDir(a.cfg.Paths.DistDir, 0o755); err != nil {
		return "", err
	}
	if err := file.IsWritableDir(a.cfg.Paths.DistDir); err != nil {
		return "", err
	}

	if a.cfg.Rpm.UseDocker {
		err = a.buildInDocker(topdir, specPath)
	} else {
		cmd := fmt.Sprintf("rpmbuild --define '_topdir %s' -bb %s", topdir, specPath)
		_, err = shell.ExecCmdWithStream(cmd, false, shell.HostPath, nil)
	}
	if err != nil {
		return "", fmt.Errorf("rpmbuild failed: %w", err)
	}

	built := filepath.Join(topdir, "RPMS", a.cfg.Rpm.Arch,
		fmt.Sprintf("%s-%s-%s.%s.rpm", a.cfg.App.Name, version, a.cfg.Rpm.Release, a.cfg.Rpm.Arch))
	if !file.NonEmpty(built) {
		return "", fmt.Errorf("rpmbuild reported success but %s is missing or empty", built)
	}

	final := filepath.Join(a.cfg.Paths.DistDir, filepath.Base(built))
	if err := file.CopyFile(built, final, 0o644); err != nil {
		return "", err
	}

	if err := VerifyPackageVersion(final, version); err != nil {
		return "", err
	}

	log.Infof("assembled %s", final)
	return final, nil
}

// buildInDocker runs rpmbuild inside a container as the host user's numeric
// identity. Container-local scratch lives outside the shared mount so a
// privileged layer can never leave root-owned files in the host tree.
func (a *Assembler) buildInDocker(topdir, specPath string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}

	scratch := "/tmp/rpm-scratch-" + uuid.New().String()[:8]

	script := strings.Join([]string{
		"set -e",
		fmt.Sprintf("cp -a %s %s", topdir, scratch),
		fmt.Sprintf("rpmbuild --define '_topdir %s' -bb %s/SPECS/%s",
			scratch, scratch, filepath.Base(specPath)),
		fmt.Sprintf("cp -a %s/RPMS/. %s/RPMS/", scratch, topdir),
	}, " && ")

	scriptPath := filepath.Join(topdir, "build-rpm.sh")
	if err := os.WriteFile(scriptPath, []byte(script+"\n"), 0o755); err != nil {
		return fmt.Errorf("writing container build script: %w", err)
	}

	cmd := fmt.Sprintf("docker run --rm --user %d:%d -v %s:%s -w %s %s bash %s",
		os.Getuid(), os.Getgid(), cwd, cwd, cwd, a.cfg.Rpm.DockerImage, scriptPath)

	_, err = shell.ExecCmdWithStream(cmd, false, shell.HostPath, nil)
	return err
}

func (a *Assembler) writeSpec(specPath, version string) error {
	layout := lifecycle.LayoutFromConfig(a.cfg)

	post, err := lifecycle.RenderRPMPost(layout)
	if err != nil {
		return err
	}
	preun, err := lifecycle.RenderRPMPreun(layout)
	if err != nil {
		return err
	}
	postun, err := lifecycle.RenderRPMPostun(layout)
	if err != nil {
		return err
	}

	var sb strings.Builder
	data := specData{
		Name:        a.cfg.App.Name,
		Version:     version,
		Release:     a.cfg.Rpm.Release,
		Summary:     a.cfg.App.Summary,
		Description: strings.TrimSpace(a.cfg.App.Description),
		License:     a.cfg.Rpm.License,
		Arch:        a.cfg.Rpm.Arch,
		Homepage:    a.cfg.App.Homepage,
		Maintainer:  a.cfg.App.Maintainer,
		MinSystemd:  a.cfg.Deb.MinSystemd,
		Date:        time.Now().Format("Mon Jan 02 2006"),

		Binary:     layout.Binary,
		ConfigDir:  layout.ConfigDir,
		SystemdDir: layout.SystemdDir,
		DataDir:    layout.DataDir,
		VendorsDir: layout.VendorsDir,
		LogDir:     layout.LogDir,
		CacheDir:   layout.CacheDir,

		Post:   post,
		Preun:  preun,
		Postun: postun,
	}
	if err := specTmpl.Execute(&sb, data); err != nil {
		return fmt.Errorf("rendering rpm spec: %w", err)
	}

	return os.WriteFile(specPath, []byte(sb.String()), 0o644)
}

// VerifyPackageVersion reads the Version header out of a built .rpm and
// compares it against want.
func VerifyPackageVersion(rpmPath, want string) error {
	f, err := os.Open(rpmPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", rpmPath, err)
	}
	defer f.Close()

	pkg, err := rpmutils.ReadRpm(f)
	if err != nil {
		return fmt.Errorf("reading rpm header of %s: %w", rpmPath, err)
	}

	got, err := pkg.Header.GetString(rpmutils.VERSION)
	if err != nil {
		return fmt.Errorf("reading Version header of %s: %w", rpmPath, err)
	}

	if got != want {
		return fmt.Errorf("stale artifact: %s embeds version %s but the authority holds %s", rpmPath, got, want)
	}
	return nil
}
