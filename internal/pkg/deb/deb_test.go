package deb

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Fudheryk/monitoring-client/internal/authority"
	"github.com/Fudheryk/monitoring-client/internal/config"
	"github.com/Fudheryk/monitoring-client/internal/utils/shell"
)

func testSetup(t *testing.T) (*config.Config, *authority.Authority, string) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Paths.PackagingDir = filepath.Join(dir, "packaging")
	cfg.Paths.StagingDir = filepath.Join(dir, "staging")
	cfg.Paths.DistDir = filepath.Join(dir, "dist")
	cfg.Version.File = filepath.Join(dir, "VERSION")
	cfg.Version.Targets = nil

	mustWrite(t, cfg.Version.File, "2.3.1\n")
	mustWrite(t, filepath.Join(cfg.Paths.PackagingDir, "config.yaml.example"), "backend:\n  url: https://example.com\n")
	mustWrite(t, filepath.Join(cfg.Paths.PackagingDir, "config.schema.json"), "{}\n")

	binary := filepath.Join(dir, "monitoring-client")
	mustWrite(t, binary, "frozen binary bytes")

	return cfg, authority.New(cfg), binary
}

func mustWrite(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func withMock(t *testing.T, commands []shell.MockCommand) *shell.MockExecutor {
	t.Helper()
	mock := shell.NewMockExecutor(commands)
	old := shell.Default
	shell.Default = mock
	t.Cleanup(func() { shell.Default = old })
	return mock
}

func TestWriteControl(t *testing.T) {
	cfg, auth, _ := testSetup(t)
	a := New(cfg, auth)

	root := filepath.Join(cfg.Paths.StagingDir, "deb")
	if err := a.writeControl(root, "2.3.1"); err != nil {
		t.Fatalf("writeControl failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "DEBIAN", "control"))
	if err != nil {
		t.Fatal(err)
	}
	control := string(data)

	for _, want := range []string{
		"Package: monitoring-client",
		"Version: 2.3.1",
		"Architecture: amd64",
		"Depends: systemd (>= 219)",
		"Section: admin",
		"Priority: optional",
		"Description: Lightweight monitoring agent",
		" Collects system, service and custom vendor metrics",
	} {
		if !strings.Contains(control, want) {
			t.Errorf("control missing %q:\n%s", want, control)
		}
	}
}

func TestWrapDescription(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "single_line",
			in:   "One line.",
			want: " One line.",
		},
		{
			name: "continuation_lines_indented",
			in:   "First.\nSecond.",
			want: " First.\n Second.",
		},
		{
			name: "blank_line_becomes_dot",
			in:   "First.\n\nThird.",
			want: " First.\n .\n Third.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wrapDescription(tt.in); got != tt.want {
				t.Errorf("wrapDescription(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAssembleAbortsOnStaleBinaryBeforeDpkg(t *testing.T) {
	if !shell.IsCommandExist("dpkg-deb") {
		t.Skip("dpkg-deb not installed")
	}

	cfg, auth, binary := testSetup(t)
	mock := withMock(t, []shell.MockCommand{
		// The frozen binary self-reports an older version than the authority.
		{Pattern: `--version$`, Output: "monitoring-client 2.3.0\n", Error: nil},
		{Pattern: `dpkg-deb`, Output: "", Error: nil},
	})

	_, err := New(cfg, auth).Assemble(binary)
	if err == nil {
		t.Fatal("stale binary must abort assembly")
	}
	if !strings.Contains(err.Error(), "stale binary") {
		t.Errorf("unexpected error: %v", err)
	}

	if calls := mock.CallsMatching(`dpkg-deb`); len(calls) != 0 {
		t.Errorf("dpkg-deb must never run for a stale binary: %v", calls)
	}
}

func TestAssembleNonStrictDowngradesMismatch(t *testing.T) {
	if !shell.IsCommandExist("dpkg-deb") {
		t.Skip("dpkg-deb not installed")
	}

	cfg, auth, binary := testSetup(t)
	cfg.Build.StrictVersionCheck = false

	mock := withMock(t, []shell.MockCommand{
		{Pattern: `--version$`, Output: "monitoring-client 2.3.0\n", Error: nil},
		{Pattern: `dpkg-deb`, Output: "", Error: nil},
	})

	// The mocked dpkg-deb produces no artifact, so Assemble still fails at
	// the output check, but only after the packaging tool ran.
	_, err := New(cfg, auth).Assemble(binary)
	if err == nil {
		t.Fatal("expected failure from missing artifact")
	}
	if strings.Contains(err.Error(), "stale binary") {
		t.Errorf("non-strict mode must not fail on the mismatch: %v", err)
	}
	if calls := mock.CallsMatching(`dpkg-deb --build --root-owner-group`); len(calls) != 1 {
		t.Errorf("expected one dpkg-deb invocation, got %v", calls)
	}
}

func TestAssembleArtifactNaming(t *testing.T) {
	if !shell.IsCommandExist("dpkg-deb") {
		t.Skip("dpkg-deb not installed")
	}

	cfg, auth, binary := testSetup(t)
	expected := filepath.Join(cfg.Paths.DistDir, "monitoring-client_2.3.1_amd64.deb")

	withMock(t, []shell.MockCommand{
		{Pattern: `--version$`, Output: "monitoring-client 2.3.1\n", Error: nil},
		{Pattern: `dpkg-deb`, Output: "", Error: nil},
	})

	// Simulate the tool by pre-creating the artifact the mocked dpkg-deb
	// would produce.
	mustWrite(t, expected, "deb bytes")

	got, err := New(cfg, auth).Assemble(binary)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if got != expected {
		t.Errorf("artifact path = %s, want %s", got, expected)
	}

	// Maintainer scripts landed in the staging tree, executable.
	for _, script := range []string{"postinst", "prerm", "postrm"} {
		path := filepath.Join(cfg.Paths.StagingDir, "deb", "DEBIAN", script)
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("maintainer script %s missing: %v", script, err)
			continue
		}
		if info.Mode().Perm()&0o111 == 0 {
			t.Errorf("%s is not executable", script)
		}
	}

	conffiles, err := os.ReadFile(filepath.Join(cfg.Paths.StagingDir, "deb", "DEBIAN", "conffiles"))
	if err != nil {
		t.Fatal(err)
	}
	if string(conffiles) != "/opt/monitoring-client/config/config.yaml\n" {
		t.Errorf("conffiles = %q", conffiles)
	}
}
