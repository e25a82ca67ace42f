package file

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Exists reports whether path exists (file or directory).
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// NonEmpty reports whether path exists as a regular file with size > 0.
func NonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// EnsureDir creates the directory (and parents) if it does not exist.
// Safe to call repeatedly.
func EnsureDir(path string, mode os.FileMode) error {
	if err := os.MkdirAll(path, mode); err != nil {
		return fmt.Errorf("creating directory %s: %w", path, err)
	}
	return nil
}

// CopyFile copies src to dst with the given mode, truncating any existing dst.
func CopyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	if err := EnsureDir(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}

	// Mode may be masked by umask on create; set it explicitly.
	if err := os.Chmod(dst, mode); err != nil {
		return fmt.Errorf("setting mode on %s: %w", dst, err)
	}

	return nil
}

// WriteFileIfAbsent writes data to path only when no file exists there yet.
// It reports whether a write happened. An existing file is never touched,
// which is what preserves user-edited configuration across re-installs.
func WriteFileIfAbsent(path string, data []byte, mode os.FileMode) (bool, error) {
	if Exists(path) {
		return false, nil
	}
	if err := EnsureDir(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}

// IsWritableDir probes that dir can be written to by the current user. A
// directory left behind by a privileged container run fails here before any
// build output is attempted; the error names the exact repair command.
func IsWritableDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	probe := filepath.Join(dir, fmt.Sprintf(".write-probe-%d", time.Now().UnixNano()))
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf(
			"directory %s is not writable by the current user (previous run as another UID?); "+
				"run: sudo chown -R $(id -u):$(id -g) %s", dir, dir)
	}
	_ = f.Close()
	_ = os.Remove(probe)

	return nil
}

// Sha256File computes the hex SHA-256 digest of path. When showProgress is
// set a progress bar tracks the read, which matters for multi-hundred-MB
// frozen binaries.
func Sha256File(path string, showProgress bool) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()

	var src io.Reader = f
	if showProgress {
		info, err := f.Stat()
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
		bar := progressbar.NewOptions64(info.Size(),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetDescription("sha256 "+filepath.Base(path)),
		)
		src = io.TeeReader(f, bar)
		defer func() { _ = bar.Finish() }()
	}

	if _, err := io.Copy(h, src); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
