package file

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExistsAndNonEmpty(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing")
	empty := filepath.Join(dir, "empty")
	full := filepath.Join(dir, "full")

	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path         string
		wantExists   bool
		wantNonEmpty bool
	}{
		{missing, false, false},
		{empty, true, false},
		{full, true, true},
		{dir, true, false}, // directories are never NonEmpty
	}

	for _, tt := range tests {
		if got := Exists(tt.path); got != tt.wantExists {
			t.Errorf("Exists(%s) = %v, want %v", tt.path, got, tt.wantExists)
		}
		if got := NonEmpty(tt.path); got != tt.wantNonEmpty {
			t.Errorf("NonEmpty(%s) = %v, want %v", tt.path, got, tt.wantNonEmpty)
		}
	}
}

func TestCopyFileSetsMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "sub", "dst")

	if err := os.WriteFile(src, []byte("binary contents"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst, 0o755); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "binary contents" {
		t.Errorf("copied contents = %q", data)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %o, want 755", info.Mode().Perm())
	}
}

func TestWriteFileIfAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	wrote, err := WriteFileIfAbsent(path, []byte("defaults"), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if !wrote {
		t.Error("expected first write to happen")
	}

	// operator edits must survive a second pass
	if err := os.WriteFile(path, []byte("edited"), 0o644); err != nil {
		t.Fatal(err)
	}
	wrote, err = WriteFileIfAbsent(path, []byte("defaults"), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if wrote {
		t.Error("existing file was overwritten")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "edited" {
		t.Errorf("contents = %q, want the operator's edit preserved", data)
	}
}

func TestIsWritableDir(t *testing.T) {
	dir := t.TempDir()
	if err := IsWritableDir(dir); err != nil {
		t.Errorf("temp dir should be writable: %v", err)
	}

	if err := IsWritableDir(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing directory")
	}

	f := filepath.Join(dir, "file")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := IsWritableDir(f); err == nil {
		t.Error("expected error for non-directory")
	}

	if os.Getuid() != 0 {
		locked := filepath.Join(dir, "locked")
		if err := os.Mkdir(locked, 0o500); err != nil {
			t.Fatal(err)
		}
		err := IsWritableDir(locked)
		if err == nil {
			t.Error("expected error for read-only directory")
		}
	}
}

func TestSha256File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact")
	if err := os.WriteFile(path, []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	digest, err := Sha256File(path, false)
	if err != nil {
		t.Fatal(err)
	}
	// sha256 of "hello\n"
	want := "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03"
	if digest != want {
		t.Errorf("digest = %s, want %s", digest, want)
	}

	if _, err := Sha256File(filepath.Join(dir, "missing"), false); err == nil {
		t.Error("expected error for missing file")
	}
}
