package publish

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteChecksums(t *testing.T) {
	dir := t.TempDir()

	deb := filepath.Join(dir, "monitoring-client_2.3.1_amd64.deb")
	tarball := filepath.Join(dir, "monitoring-client-2.3.1.tar.gz")
	if err := os.WriteFile(deb, []byte("deb bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tarball, []byte("tar bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	manifest := filepath.Join(dir, "SHA256SUMS")
	if err := WriteChecksums(manifest, []string{deb, tarball}); err != nil {
		t.Fatalf("WriteChecksums failed: %v", err)
	}

	data, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 manifest lines, got %d:\n%s", len(lines), data)
	}

	for i, wantName := range []string{
		"monitoring-client_2.3.1_amd64.deb",
		"monitoring-client-2.3.1.tar.gz",
	} {
		// sha256sum format: <64 hex chars><two spaces><basename>
		parts := strings.SplitN(lines[i], "  ", 2)
		if len(parts) != 2 {
			t.Fatalf("line %d not sha256sum-compatible: %q", i, lines[i])
		}
		if len(parts[0]) != 64 {
			t.Errorf("line %d digest length = %d, want 64", i, len(parts[0]))
		}
		if parts[1] != wantName {
			t.Errorf("line %d names %q, want base name %q", i, parts[1], wantName)
		}
	}
}

func TestWriteChecksumsRefusesMissingArtifact(t *testing.T) {
	dir := t.TempDir()

	present := filepath.Join(dir, "present.deb")
	if err := os.WriteFile(present, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	manifest := filepath.Join(dir, "SHA256SUMS")
	err := WriteChecksums(manifest, []string{present, filepath.Join(dir, "vanished.rpm")})
	if err == nil {
		t.Fatal("missing artifact must abort the manifest")
	}
	if !strings.Contains(err.Error(), "vanished.rpm") {
		t.Errorf("error %q does not name the missing artifact", err)
	}
	if _, statErr := os.Stat(manifest); !os.IsNotExist(statErr) {
		t.Error("no manifest must be written on failure")
	}
}
