// Package authority is the single source of truth for the release version.
// Every other component asks the authority instead of re-deriving the version
// from a secondary file, which is the bug class that historically let the
// canonical file, the module constant and the packaging manifest drift apart.
package authority

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Fudheryk/monitoring-client/internal/config"
	"github.com/Fudheryk/monitoring-client/internal/utils/logger"
)

var (
	semverRe      = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	pythonConstRe = regexp.MustCompile(`(?m)^__version__\s*=\s*["']([^"']*)["']\s*$`)
)

// Authority propagates the canonical version into a fixed, enumerated list
// of files and detects divergence between them.
type Authority struct {
	canonical string
	targets   []config.VersionTarget
}

// Mismatch records one file disagreeing with the canonical version.
type Mismatch struct {
	Path string
	Want string
	Got  string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: expected %q, found %q", m.Path, m.Want, m.Got)
}

// New builds an Authority from the pipeline configuration.
func New(cfg *config.Config) *Authority {
	return &Authority{
		canonical: cfg.Version.File,
		targets:   cfg.Version.Targets,
	}
}

// CanonicalFile returns the path of the canonical version file.
func (a *Authority) CanonicalFile() string {
	return a.canonical
}

// Current returns the version recorded in the canonical file.
func (a *Authority) Current() (string, error) {
	data, err := os.ReadFile(a.canonical)
	if err != nil {
		return "", fmt.Errorf("reading canonical version file %s: %w", a.canonical, err)
	}

	version := strings.TrimSpace(string(data))
	if !semverRe.MatchString(version) {
		return "", fmt.Errorf("canonical version file %s holds %q, not a MAJOR.MINOR.PATCH version", a.canonical, version)
	}

	return version, nil
}

// Sync writes newVersion into the canonical file and every propagation
// target, then verifies the result. Partial propagation is never silently
// accepted: any write failure still runs the verification pass so the
// diagnostic lists exactly which files were left behind.
func (a *Authority) Sync(newVersion string) error {
	log := logger.Logger()

	if !semverRe.MatchString(newVersion) {
		return fmt.Errorf("version %q is not a MAJOR.MINOR.PATCH version", newVersion)
	}

	var writeErrs []string

	if err := os.WriteFile(a.canonical, []byte(newVersion+"\n"), 0o644); err != nil {
		writeErrs = append(writeErrs, fmt.Sprintf("%s: %v", a.canonical, err))
	}

	for _, t := range a.targets {
		if err := writeTarget(t, newVersion); err != nil {
			writeErrs = append(writeErrs, fmt.Sprintf("%s: %v", t.Path, err))
		} else {
			log.Debugf("propagated version %s into %s", newVersion, t.Path)
		}
	}

	verifyErr := a.Verify()

	if len(writeErrs) > 0 {
		return fmt.Errorf("version propagation incomplete:\n  %s", strings.Join(writeErrs, "\n  "))
	}
	if verifyErr != nil {
		return verifyErr
	}

	log.Infof("version %s propagated to %d file(s)", newVersion, len(a.targets)+1)
	return nil
}

// Verify re-reads the canonical file and every target and fails with a
// diagnostic naming each mismatched file if any disagree.
func (a *Authority) Verify() error {
	want, err := a.Current()
	if err != nil {
		return err
	}

	var mismatches []Mismatch
	for _, t := range a.targets {
		got, err := readTarget(t)
		if err != nil {
			mismatches = append(mismatches, Mismatch{Path: t.Path, Want: want, Got: "<" + err.Error() + ">"})
			continue
		}
		if got != want {
			mismatches = append(mismatches, Mismatch{Path: t.Path, Want: want, Got: got})
		}
	}

	if len(mismatches) > 0 {
		lines := make([]string, len(mismatches))
		for i, m := range mismatches {
			lines[i] = m.String()
		}
		return fmt.Errorf("version mismatch against %s:\n  %s", a.canonical, strings.Join(lines, "\n  "))
	}

	return nil
}

func readTarget(t config.VersionTarget) (string, error) {
	data, err := os.ReadFile(t.Path)
	if err != nil {
		return "", err
	}

	switch t.Kind {
	case config.TargetRaw:
		return strings.TrimSpace(string(data)), nil

	case config.TargetPythonConstant:
		m := pythonConstRe.FindSubmatch(data)
		if m == nil {
			return "", fmt.Errorf("no __version__ constant found")
		}
		return string(m[1]), nil

	case config.TargetYAMLField:
		re, err := yamlFieldRe(t.Key)
		if err != nil {
			return "", err
		}
		m := re.FindSubmatch(data)
		if m == nil {
			return "", fmt.Errorf("no %q field found", t.Key)
		}
		return strings.Trim(strings.TrimSpace(string(m[2])), `"'`), nil

	default:
		return "", fmt.Errorf("unknown target kind %q", t.Kind)
	}
}

func writeTarget(t config.VersionTarget, version string) error {
	data, err := os.ReadFile(t.Path)
	if err != nil {
		return err
	}

	var updated []byte
	switch t.Kind {
	case config.TargetRaw:
		updated = []byte(version + "\n")

	case config.TargetPythonConstant:
		if !pythonConstRe.Match(data) {
			return fmt.Errorf("no __version__ constant found")
		}
		updated = pythonConstRe.ReplaceAll(data, []byte(`__version__ = "`+version+`"`))

	case config.TargetYAMLField:
		re, err := yamlFieldRe(t.Key)
		if err != nil {
			return err
		}
		if !re.Match(data) {
			return fmt.Errorf("no %q field found", t.Key)
		}
		updated = re.ReplaceAll(data, []byte("${1}"+version))

	default:
		return fmt.Errorf("unknown target kind %q", t.Kind)
	}

	info, err := os.Stat(t.Path)
	if err != nil {
		return err
	}

	return os.WriteFile(t.Path, updated, info.Mode().Perm())
}

func yamlFieldRe(key string) (*regexp.Regexp, error) {
	if key == "" {
		return nil, fmt.Errorf("yaml-field target requires a key")
	}
	return regexp.Compile(`(?m)^(\s*` + regexp.QuoteMeta(key) + `:\s*)(.*)$`)
}
