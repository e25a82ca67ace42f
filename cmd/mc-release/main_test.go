package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Fudheryk/monitoring-client/internal/authority"
	"github.com/Fudheryk/monitoring-client/internal/config"
)

// TestMain_CreateRootCommand validates that the root command is properly
// configured with all expected flags and subcommands.
func TestMain_CreateRootCommand(t *testing.T) {
	root := createRootCommand()

	if root == nil {
		t.Fatal("createRootCommand returned nil")
	}

	if root.Use != "mc-release" {
		t.Errorf("expected Use to be 'mc-release', got %q", root.Use)
	}
	if root.Short == "" {
		t.Error("Short description should not be empty")
	}
	if root.Long == "" {
		t.Error("Long description should not be empty")
	}

	for _, name := range []string{"config", "log-level"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected persistent flag --%s to be registered", name)
		}
	}

	expectedCommands := map[string]bool{
		"sync":               false,
		"build":              false,
		"package":            false,
		"lifecycle":          false,
		"release":            false,
		"validate":           false,
		"clean":              false,
		"version":            false,
		"install-completion": false,
	}

	for _, cmd := range root.Commands() {
		if _, exists := expectedCommands[cmd.Name()]; exists {
			expectedCommands[cmd.Name()] = true
		}
	}

	for cmdName, found := range expectedCommands {
		if !found {
			t.Errorf("expected subcommand %q to be registered", cmdName)
		}
	}
}

func TestSyncCommandVerifyOnly(t *testing.T) {
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Version.File = filepath.Join(dir, "VERSION")
	cfg.Version.Targets = nil
	config.SetGlobal(cfg)
	t.Cleanup(func() { config.SetGlobal(config.Default()) })

	if err := os.WriteFile(cfg.Version.File, []byte("4.5.6\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := createSyncCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("verify-only sync failed: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "4.5.6" {
		t.Errorf("printed %q, want the current version", got)
	}
}

func TestSyncCommandPropagates(t *testing.T) {
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Version.File = filepath.Join(dir, "VERSION")
	cfg.Version.Targets = []config.VersionTarget{
		{Path: filepath.Join(dir, "__init__.py"), Kind: config.TargetPythonConstant},
	}
	config.SetGlobal(cfg)
	t.Cleanup(func() { config.SetGlobal(config.Default()) })

	if err := os.WriteFile(cfg.Version.File, []byte("1.0.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Version.Targets[0].Path, []byte("__version__ = \"1.0.0\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := createSyncCommand()
	if err := cmd.RunE(cmd, []string{"1.1.0"}); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if err := authority.New(cfg).Verify(); err != nil {
		t.Errorf("targets diverged after sync: %v", err)
	}
	current, err := authority.New(cfg).Current()
	if err != nil {
		t.Fatal(err)
	}
	if current != "1.1.0" {
		t.Errorf("canonical version = %s, want 1.1.0", current)
	}
}

func TestLifecycleCommandRejectsConflictingFlags(t *testing.T) {
	cfg := config.Default()
	config.SetGlobal(cfg)
	t.Cleanup(func() { config.SetGlobal(config.Default()) })

	origUpgrade, origPurge := asUpgrade, asPurge
	t.Cleanup(func() { asUpgrade, asPurge = origUpgrade, origPurge })

	asUpgrade = true
	asPurge = true

	cmd := createLifecycleCommand()
	if err := cmd.RunE(cmd, []string{"post-remove"}); err == nil {
		t.Error("--upgrade with --purge must be rejected")
	}
}
