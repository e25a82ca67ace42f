package lifecycle

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/Fudheryk/monitoring-client/internal/utils/shell"
)

// Variant is one of the two alternative service-unit bodies.
type Variant string

const (
	VariantLegacy Variant = "legacy"
	VariantModern Variant = "modern"

	// ModernSystemdVersion is the first systemd release supporting
	// ReadWritePaths; older releases need ReadWriteDirectories.
	ModernSystemdVersion = 231
)

// SelectVariant picks the unit body for the given systemd version. The
// boundary version selects modern (inclusive lower bound).
func SelectVariant(systemdVersion int) Variant {
	if systemdVersion >= ModernSystemdVersion {
		return VariantModern
	}
	return VariantLegacy
}

// DetectSystemdVersion parses the live systemd version from systemctl.
func DetectSystemdVersion() (int, error) {
	output, err := shell.ExecCmdSilent("systemctl --version", false, shell.HostPath, nil)
	if err != nil {
		return 0, fmt.Errorf("querying systemd version: %w", err)
	}
	return ParseSystemdVersion(output)
}

// ParseSystemdVersion extracts the version number from `systemctl --version`
// output, whose first line reads like "systemd 245 (245.4-4ubuntu3)".
func ParseSystemdVersion(output string) (int, error) {
	lines := strings.SplitN(strings.TrimSpace(output), "\n", 2)
	fields := strings.Fields(lines[0])
	if len(fields) < 2 {
		return 0, fmt.Errorf("unexpected systemctl version output %q", lines[0])
	}

	digits := fields[1]
	if idx := strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }); idx != -1 {
		digits = digits[:idx]
	}

	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("unexpected systemd version %q: %w", fields[1], err)
	}
	return v, nil
}

var serviceUnitTmpl = template.Must(template.New("service").Parse(`[Unit]
Description={{.AppName}} metrics collection run
After=network-online.target
Wants=network-online.target

[Service]
Type=oneshot
ExecStart={{.Binary}} --config {{.ConfigFile}}
User=root
ProtectSystem=full
ProtectHome=true
NoNewPrivileges=true
{{if .Modern}}ReadWritePaths={{.DataDir}} {{.LogDir}} {{.CacheDir}}
{{else}}ReadWriteDirectories={{.DataDir}} {{.LogDir}} {{.CacheDir}}
{{end}}
[Install]
WantedBy=multi-user.target
`))

var timerUnitTmpl = template.Must(template.New("timer").Parse(`[Unit]
Description=Periodic {{.AppName}} metrics collection

[Timer]
OnBootSec=2min
OnUnitActiveSec=5min
Unit={{.AppName}}.service
AccuracySec=30s

[Install]
WantedBy=timers.target
`))

type unitData struct {
	Layout
	Modern bool
}

// RenderServiceUnit produces the unit body for the given variant.
func RenderServiceUnit(l Layout, v Variant) (string, error) {
	var sb strings.Builder
	if err := serviceUnitTmpl.Execute(&sb, unitData{Layout: l, Modern: v == VariantModern}); err != nil {
		return "", fmt.Errorf("rendering %s service unit: %w", v, err)
	}
	return sb.String(), nil
}

// RenderTimerUnit produces the periodic trigger unit.
func RenderTimerUnit(l Layout) (string, error) {
	var sb strings.Builder
	if err := timerUnitTmpl.Execute(&sb, unitData{Layout: l}); err != nil {
		return "", fmt.Errorf("rendering timer unit: %w", err)
	}
	return sb.String(), nil
}
