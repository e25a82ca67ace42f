package lifecycle

import (
	"fmt"
	"strings"
	"text/template"
)

// The maintainer scripts mirror the Runner's transitions. They are rendered
// from the same Layout and ModernSystemdVersion constant, which is the whole
// point: the shell that runs on the target cannot drift from the Go logic
// exercised by the tests.

type scriptData struct {
	Layout
	Threshold      int
	CredentialFile string
}

func renderScript(name string, tmpl *template.Template, l Layout) (string, error) {
	var sb strings.Builder
	data := scriptData{Layout: l, Threshold: ModernSystemdVersion, CredentialFile: CredentialFile}
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering %s script: %w", name, err)
	}
	return sb.String(), nil
}

var postInstTmpl = template.Must(template.New("postinst").Parse(`#!/bin/sh
set -e

mkdir -p {{.ConfigDir}}
mkdir -p {{.DataDir}}
mkdir -p {{.VendorsDir}}
mkdir -p {{.LogDir}}
mkdir -p {{.CacheDir}}
chmod 750 {{.DataDir}}

[ -e {{.Binary}} ] && chmod 755 {{.Binary}}
[ -e {{.ConfigFile}} ] && chmod 644 {{.ConfigFile}}
if [ -s {{.DataDir}}/{{.CredentialFile}} ]; then
    chmod 600 {{.DataDir}}/{{.CredentialFile}}
fi

if [ ! -e {{.ConfigFile}} ] && [ -e {{.ConfigFile}}.example ]; then
    cp {{.ConfigFile}}.example {{.ConfigFile}}
    chmod 644 {{.ConfigFile}}
fi

SYSTEMD_VERSION=$(systemctl --version | head -n1 | awk '{print $2}')
if [ "$SYSTEMD_VERSION" -ge {{.Threshold}} ]; then
    cp {{.SystemdDir}}/{{.AppName}}.service.modern {{.UnitDir}}/{{.AppName}}.service
else
    cp {{.SystemdDir}}/{{.AppName}}.service.legacy {{.UnitDir}}/{{.AppName}}.service
fi
cp {{.SystemdDir}}/{{.AppName}}.timer {{.UnitDir}}/{{.AppName}}.timer
systemctl daemon-reload

if [ -s {{.DataDir}}/{{.CredentialFile}} ]; then
    if systemctl is-active --quiet {{.AppName}}.timer; then
        systemctl restart {{.AppName}}.timer
    else
        systemctl enable --now {{.AppName}}.timer
    fi
else
    echo "{{.AppName}}: no API credential found; collection was not started."
    echo "To activate:"
    echo "  1. write your key to {{.DataDir}}/{{.CredentialFile}} (chmod 600)"
    echo "  2. systemctl enable --now {{.AppName}}.timer"
fi

exit 0
`))

var preRmTmpl = template.Must(template.New("prerm").Parse(`#!/bin/sh
set -e

case "$1" in
    remove)
        systemctl stop {{.AppName}}.timer 2>/dev/null || true
        systemctl disable {{.AppName}}.timer 2>/dev/null || true
        systemctl stop {{.AppName}}.service 2>/dev/null || true
        ;;
    upgrade)
        # Only pause the timer; the incoming version re-activates it.
        systemctl stop {{.AppName}}.timer 2>/dev/null || true
        ;;
esac

exit 0
`))

var postRmTmpl = template.Must(template.New("postrm").Parse(`#!/bin/sh
set -e

case "$1" in
    remove)
        rm -rf {{.CacheDir}}
        rm -f {{.UnitDir}}/{{.AppName}}.service {{.UnitDir}}/{{.AppName}}.timer
        systemctl daemon-reload 2>/dev/null || true
        # {{.DataDir}} and {{.VendorsDir}} are deliberately preserved.
        ;;
    purge)
        rm -rf {{.CacheDir}}
        rm -rf {{.DataDir}} {{.VendorsDir}} {{.ConfigDir}} {{.LogDir}} {{.OptDir}}
        rm -f {{.UnitDir}}/{{.AppName}}.service {{.UnitDir}}/{{.AppName}}.timer
        systemctl daemon-reload 2>/dev/null || true
        ;;
    upgrade)
        ;;
esac

exit 0
`))

// RenderPostInstall renders the Debian postinst script.
func RenderPostInstall(l Layout) (string, error) {
	return renderScript("postinst", postInstTmpl, l)
}

// RenderPreRemove renders the Debian prerm script.
func RenderPreRemove(l Layout) (string, error) {
	return renderScript("prerm", preRmTmpl, l)
}

// RenderPostRemove renders the Debian postrm script.
func RenderPostRemove(l Layout) (string, error) {
	return renderScript("postrm", postRmTmpl, l)
}

// RPM scriptlets carry the same logic keyed on the numeric argument rpm
// passes: %post gets 1 for fresh install and >=2 for upgrade; %preun and
// %postun get 0 for removal and >=1 when an upgrade is pending.

var rpmPostTmpl = template.Must(template.New("rpmpost").Parse(`mkdir -p {{.ConfigDir}} {{.DataDir}} {{.VendorsDir}} {{.LogDir}} {{.CacheDir}}
chmod 750 {{.DataDir}}
[ -e {{.Binary}} ] && chmod 755 {{.Binary}}
[ -e {{.ConfigFile}} ] && chmod 644 {{.ConfigFile}}
if [ -s {{.DataDir}}/{{.CredentialFile}} ]; then
    chmod 600 {{.DataDir}}/{{.CredentialFile}}
fi
if [ ! -e {{.ConfigFile}} ] && [ -e {{.ConfigFile}}.example ]; then
    cp {{.ConfigFile}}.example {{.ConfigFile}}
    chmod 644 {{.ConfigFile}}
fi
SYSTEMD_VERSION=$(systemctl --version | head -n1 | awk '{print $2}')
if [ "$SYSTEMD_VERSION" -ge {{.Threshold}} ]; then
    cp {{.SystemdDir}}/{{.AppName}}.service.modern {{.UnitDir}}/{{.AppName}}.service
else
    cp {{.SystemdDir}}/{{.AppName}}.service.legacy {{.UnitDir}}/{{.AppName}}.service
fi
cp {{.SystemdDir}}/{{.AppName}}.timer {{.UnitDir}}/{{.AppName}}.timer
systemctl daemon-reload
if [ -s {{.DataDir}}/{{.CredentialFile}} ]; then
    if systemctl is-active --quiet {{.AppName}}.timer; then
        systemctl restart {{.AppName}}.timer
    else
        systemctl enable --now {{.AppName}}.timer
    fi
else
    echo "{{.AppName}}: no API credential found; collection was not started."
    echo "Write your key to {{.DataDir}}/{{.CredentialFile}} (chmod 600), then run:"
    echo "  systemctl enable --now {{.AppName}}.timer"
fi
`))

var rpmPreunTmpl = template.Must(template.New("rpmpreun").Parse(`if [ "$1" -eq 0 ]; then
    systemctl stop {{.AppName}}.timer 2>/dev/null || true
    systemctl disable {{.AppName}}.timer 2>/dev/null || true
    systemctl stop {{.AppName}}.service 2>/dev/null || true
else
    systemctl stop {{.AppName}}.timer 2>/dev/null || true
fi
`))

var rpmPostunTmpl = template.Must(template.New("rpmpostun").Parse(`if [ "$1" -eq 0 ]; then
    rm -rf {{.CacheDir}}
    rm -f {{.UnitDir}}/{{.AppName}}.service {{.UnitDir}}/{{.AppName}}.timer
    systemctl daemon-reload 2>/dev/null || true
    # {{.DataDir}} and {{.VendorsDir}} survive erase; only a manual purge removes them.
fi
`))

// RenderRPMPost renders the %post scriptlet body.
func RenderRPMPost(l Layout) (string, error) {
	return renderScript("%post", rpmPostTmpl, l)
}

// RenderRPMPreun renders the %preun scriptlet body.
func RenderRPMPreun(l Layout) (string, error) {
	return renderScript("%preun", rpmPreunTmpl, l)
}

// RenderRPMPostun renders the %postun scriptlet body.
func RenderRPMPostun(l Layout) (string, error) {
	return renderScript("%postun", rpmPostunTmpl, l)
}
