// Package lifecycle implements the install-time state machine the packages
// embed: directory creation, permission hardening, systemd unit selection and
// the upgrade/fresh-install/removal branching. The same constants drive both
// the Go runner (used for local simulation and smoke tests) and the rendered
// maintainer scripts, so the two cannot drift.
package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Fudheryk/monitoring-client/internal/config"
	"github.com/Fudheryk/monitoring-client/internal/utils/file"
	"github.com/Fudheryk/monitoring-client/internal/utils/logger"
	"github.com/Fudheryk/monitoring-client/internal/utils/shell"
)

// State is the target-host transition driven by the native packager.
type State int

const (
	FreshInstall State = iota
	Upgrade
	RemoveKeepData
	PurgeAll
)

func (s State) String() string {
	switch s {
	case FreshInstall:
		return "fresh-install"
	case Upgrade:
		return "upgrade"
	case RemoveKeepData:
		return "remove"
	case PurgeAll:
		return "purge"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CredentialFile is the name of the API credential under the data directory.
// The timer is never auto-activated without a non-empty credential.
const CredentialFile = "api_key"

// Layout holds every target-side path the hooks touch.
type Layout struct {
	AppName    string
	Binary     string // installed binary
	ConfigDir  string
	ConfigFile string // ConfigDir/config.yaml
	DataDir    string // OptDir/data, survives remove
	VendorsDir string // OptDir/vendors, survives remove
	SystemdDir string // OptDir/systemd, shared reference copies of both variants
	LogDir     string
	CacheDir   string // deleted on any removal
	UnitDir    string // active systemd unit directory
	OptDir     string
}

// LayoutFromConfig derives the target layout from the pipeline configuration.
func LayoutFromConfig(cfg *config.Config) Layout {
	return Layout{
		AppName:    cfg.App.Name,
		Binary:     cfg.InstalledBinaryPath(),
		ConfigDir:  cfg.Paths.ConfigDir,
		ConfigFile: filepath.Join(cfg.Paths.ConfigDir, "config.yaml"),
		DataDir:    filepath.Join(cfg.Paths.OptDir, "data"),
		VendorsDir: filepath.Join(cfg.Paths.OptDir, "vendors"),
		SystemdDir: filepath.Join(cfg.Paths.OptDir, "systemd"),
		LogDir:     cfg.Paths.LogDir,
		CacheDir:   cfg.Paths.CacheDir,
		UnitDir:    cfg.Paths.UnitDir,
		OptDir:     cfg.Paths.OptDir,
	}
}

// Runner executes lifecycle transitions against an install root. Root is ""
// for a live host and a scratch directory when simulating.
type Runner struct {
	Root   string
	Layout Layout
}

// NewRunner returns a Runner for the given root and layout.
func NewRunner(root string, layout Layout) *Runner {
	return &Runner{Root: root, Layout: layout}
}

func (r *Runner) path(p string) string {
	if r.Root == "" {
		return p
	}
	return filepath.Join(r.Root, p)
}

// PostInstall runs after both fresh installs and upgrades. Every operation
// is idempotent: packaging tools may invoke hooks multiple times across
// retried installs.
func (r *Runner) PostInstall() error {
	log := logger.Logger()
	l := r.Layout

	for _, d := range []struct {
		path string
		mode os.FileMode
	}{
		{l.ConfigDir, 0o755},
		{l.DataDir, 0o750},
		{l.VendorsDir, 0o755},
		{l.LogDir, 0o755},
		{l.CacheDir, 0o755},
	} {
		if err := file.EnsureDir(r.path(d.path), d.mode); err != nil {
			return err
		}
	}

	if err := r.hardenPermissions(); err != nil {
		return err
	}

	// Seed config.yaml from the shipped example only when the operator has
	// not created one; an existing override is never overwritten.
	example := r.path(l.ConfigFile + ".example")
	if file.Exists(example) && !file.Exists(r.path(l.ConfigFile)) {
		if err := file.CopyFile(example, r.path(l.ConfigFile), 0o644); err != nil {
			return err
		}
		log.Infof("created %s from shipped example", l.ConfigFile)
	}

	if err := r.activateUnitVariant(); err != nil {
		return err
	}

	if _, err := shell.ExecCmd("systemctl daemon-reload", true, shell.HostPath, nil); err != nil {
		return fmt.Errorf("reloading systemd units: %w", err)
	}

	credential := r.path(filepath.Join(l.DataDir, CredentialFile))
	if file.NonEmpty(credential) {
		return r.activateTimer()
	}

	log.Infof("no API credential found; the collection timer was not started")
	log.Infof("to activate: write your key to %s (mode 600), then run: systemctl enable --now %s.timer",
		filepath.Join(l.DataDir, CredentialFile), l.AppName)
	return nil
}

func (r *Runner) hardenPermissions() error {
	l := r.Layout

	if file.Exists(r.path(l.Binary)) {
		if err := os.Chmod(r.path(l.Binary), 0o755); err != nil {
			return fmt.Errorf("hardening %s: %w", l.Binary, err)
		}
	}
	if file.Exists(r.path(l.ConfigFile)) {
		if err := os.Chmod(r.path(l.ConfigFile), 0o644); err != nil {
			return fmt.Errorf("hardening %s: %w", l.ConfigFile, err)
		}
	}

	credential := r.path(filepath.Join(l.DataDir, CredentialFile))
	if file.NonEmpty(credential) {
		if err := os.Chmod(credential, 0o600); err != nil {
			return fmt.Errorf("hardening credential file: %w", err)
		}
	}

	return nil
}

// activateUnitVariant selects the service body matching the live systemd
// version and copies it (plus the timer) into the active unit directory.
// The unused variant stays in the shared reference directory, never active.
func (r *Runner) activateUnitVariant() error {
	log := logger.Logger()
	l := r.Layout

	systemdVersion, err := DetectSystemdVersion()
	if err != nil {
		return err
	}
	variant := SelectVariant(systemdVersion)
	log.Infof("systemd %d detected, activating %s unit variant", systemdVersion, variant)

	src := r.path(filepath.Join(l.SystemdDir, l.AppName+".service."+string(variant)))
	if !file.Exists(src) {
		return fmt.Errorf("unit variant %s does not exist", src)
	}
	if err := file.CopyFile(src, r.path(filepath.Join(l.UnitDir, l.AppName+".service")), 0o644); err != nil {
		return err
	}

	timer := r.path(filepath.Join(l.SystemdDir, l.AppName+".timer"))
	if !file.Exists(timer) {
		return fmt.Errorf("timer unit %s does not exist", timer)
	}
	return file.CopyFile(timer, r.path(filepath.Join(l.UnitDir, l.AppName+".timer")), 0o644)
}

// activateTimer restarts an already-active timer (so it picks up the new
// binary after an upgrade) or enables and starts it on a fresh install.
func (r *Runner) activateTimer() error {
	l := r.Layout
	timer := l.AppName + ".timer"

	output, err := shell.ExecCmdSilent("systemctl is-active "+timer, true, shell.HostPath, nil)
	active := err == nil && strings.TrimSpace(output) == "active"

	if active {
		if _, err := shell.ExecCmd("systemctl restart "+timer, true, shell.HostPath, nil); err != nil {
			return fmt.Errorf("restarting %s: %w", timer, err)
		}
		return nil
	}

	if _, err := shell.ExecCmd("systemctl enable --now "+timer, true, shell.HostPath, nil); err != nil {
		return fmt.Errorf("enabling %s: %w", timer, err)
	}
	return nil
}

// PreRemove runs before removal or upgrade. A genuine removal stops and
// disables everything; an upgrade only pauses the timer, since the incoming
// version's post-install re-activates it.
func (r *Runner) PreRemove(upgrade bool) error {
	l := r.Layout
	timer := l.AppName + ".timer"
	service := l.AppName + ".service"

	if _, err := shell.ExecCmdSilent("systemctl stop "+timer, true, shell.HostPath, nil); err != nil {
		logger.Logger().Debugf("stopping %s: %v", timer, err)
	}

	if upgrade {
		return nil
	}

	if _, err := shell.ExecCmdSilent("systemctl disable "+timer, true, shell.HostPath, nil); err != nil {
		logger.Logger().Debugf("disabling %s: %v", timer, err)
	}
	if _, err := shell.ExecCmdSilent("systemctl stop "+service, true, shell.HostPath, nil); err != nil {
		logger.Logger().Debugf("stopping %s: %v", service, err)
	}
	return nil
}

// PostRemove finalizes a removal. Ephemeral cache is always deleted; mutable
// user data (data/, vendors/, config) survives everything except a purge.
// An upgrade's transient post-remove step touches nothing.
func (r *Runner) PostRemove(state State) error {
	log := logger.Logger()
	l := r.Layout

	switch state {
	case Upgrade:
		return nil

	case RemoveKeepData, PurgeAll:
		if err := os.RemoveAll(r.path(l.CacheDir)); err != nil {
			return fmt.Errorf("removing cache %s: %w", l.CacheDir, err)
		}

		for _, unit := range []string{l.AppName + ".service", l.AppName + ".timer"} {
			if err := os.Remove(r.path(filepath.Join(l.UnitDir, unit))); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing unit %s: %w", unit, err)
			}
		}

		if state == PurgeAll {
			for _, d := range []string{l.DataDir, l.VendorsDir, l.ConfigDir, l.LogDir, l.OptDir} {
				if err := os.RemoveAll(r.path(d)); err != nil {
					return fmt.Errorf("purging %s: %w", d, err)
				}
			}
			log.Infof("purged all %s data", l.AppName)
		} else {
			log.Infof("kept user data in %s and %s", l.DataDir, l.VendorsDir)
		}

		if _, err := shell.ExecCmdSilent("systemctl daemon-reload", true, shell.HostPath, nil); err != nil {
			log.Debugf("reloading systemd units: %v", err)
		}
		return nil

	default:
		return fmt.Errorf("post-remove does not accept state %s", state)
	}
}

// SmokeTest runs the installed binary in dry-run mode as a black-box check
// that it can load the config and collect without transmitting.
func (r *Runner) SmokeTest() error {
	l := r.Layout

	binary := r.path(l.Binary)
	if !file.Exists(binary) {
		return fmt.Errorf("binary %s does not exist", l.Binary)
	}

	cmd := fmt.Sprintf("%s --config %s --dry-run", binary, r.path(l.ConfigFile))
	if _, err := shell.ExecCmdWithStream(cmd, false, shell.HostPath, nil); err != nil {
		return fmt.Errorf("smoke test failed: %w", err)
	}
	return nil
}
