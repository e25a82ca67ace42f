// Package tarball produces the plain-archive distribution: the same
// InstallTree the deb and rpm carry, written with deterministic tar headers
// so identical inputs yield identical checksums.
package tarball

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/Fudheryk/monitoring-client/internal/authority"
	"github.com/Fudheryk/monitoring-client/internal/builder"
	"github.com/Fudheryk/monitoring-client/internal/config"
	"github.com/Fudheryk/monitoring-client/internal/pkg/stage"
	"github.com/Fudheryk/monitoring-client/internal/utils/file"
	"github.com/Fudheryk/monitoring-client/internal/utils/logger"
)

// Assembler builds the tarball artifacts.
type Assembler struct {
	cfg  *config.Config
	auth *authority.Authority
}

// New returns an Assembler bound to the given configuration and authority.
func New(cfg *config.Config, auth *authority.Authority) *Assembler {
	return &Assembler{cfg: cfg, auth: auth}
}

// Assemble stages the InstallTree and writes one archive per configured
// format. Returns the paths of the produced artifacts.
func (a *Assembler) Assemble(binary string) ([]string, error) {
	log := logger.Logger()

	version, err := a.auth.Current()
	if err != nil {
		return nil, err
	}

	if err := stage.CheckInputs(a.cfg, binary); err != nil {
		return nil, err
	}

	if err := builder.VerifyBinaryVersion(binary, version); err != nil {
		if a.cfg.Build.StrictVersionCheck {
			return nil, err
		}
		log.Warnf("continuing despite version mismatch (strict_version_check=false): %v", err)
	}

	root := filepath.Join(a.cfg.Paths.StagingDir, "tarball")
	if err := stage.Build(root, a.cfg, binary); err != nil {
		return nil, err
	}

	if err := file.EnsureDir(a.cfg.Paths.DistDir, 0o755); err != nil {
		return nil, err
	}
	if err := file.IsWritableDir(a.cfg.Paths.DistDir); err != nil {
		return nil, err
	}

	var outputs []string
	for _, format := range a.cfg.Tarball.Formats {
		out := filepath.Join(a.cfg.Paths.DistDir,
			fmt.Sprintf("%s-%s.tar.%s", a.cfg.App.Name, version, format))
		if err := writeArchive(root, out, format); err != nil {
			return nil, err
		}
		if !file.NonEmpty(out) {
			return nil, fmt.Errorf("archive %s is missing or empty after packing", out)
		}
		log.Infof("assembled %s", out)
		outputs = append(outputs, out)
	}

	return outputs, nil
}

func writeArchive(root, out, format string) error {
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	defer f.Close()

	var compressed io.WriteCloser
	switch format {
	case "gz":
		compressed, err = gzip.NewWriterLevel(f, gzip.BestCompression)
		if err != nil {
			return fmt.Errorf("creating gzip writer: %w", err)
		}
	case "xz":
		compressed, err = xz.NewWriter(f)
		if err != nil {
			return fmt.Errorf("creating xz writer: %w", err)
		}
	default:
		return fmt.Errorf("unsupported tarball format %q", format)
	}

	tw := tar.NewWriter(compressed)

	if err := packTree(tw, root); err != nil {
		_ = tw.Close()
		_ = compressed.Close()
		return fmt.Errorf("packing %s: %w", root, err)
	}

	if err := tw.Close(); err != nil {
		_ = compressed.Close()
		return fmt.Errorf("finalizing tar: %w", err)
	}
	if err := compressed.Close(); err != nil {
		return fmt.Errorf("finalizing compression: %w", err)
	}

	return nil
}

// packTree writes the tree with sorted entries, zeroed timestamps and
// root-owned files so the archive bytes depend only on the content.
func packTree(tw *tar.Writer, root string) error {
	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(paths)

	epoch := time.Unix(0, 0)

	for _, path := range paths {
		info, err := os.Lstat(path)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		hdr := &tar.Header{
			Name:    name,
			Mode:    int64(info.Mode().Perm()),
			ModTime: epoch,
			Uname:   "root",
			Gname:   "root",
		}

		switch {
		case info.IsDir():
			hdr.Typeflag = tar.TypeDir
			hdr.Name = strings.TrimSuffix(name, "/") + "/"
		case info.Mode().IsRegular():
			hdr.Typeflag = tar.TypeReg
			hdr.Size = info.Size()
		default:
			continue // no symlinks or devices in the install tree
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		if hdr.Typeflag == tar.TypeReg {
			src, err := os.Open(path)
			if err != nil {
				return err
			}
			if _, err := io.Copy(tw, src); err != nil {
				_ = src.Close()
				return err
			}
			_ = src.Close()
		}
	}

	return nil
}
