package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Fudheryk/monitoring-client/internal/utils/file"
)

// WriteChecksums writes a sha256sum-compatible manifest covering the given
// artifacts. Entries use base names so the file verifies in the download
// directory with `sha256sum -c`.
func WriteChecksums(manifestPath string, artifacts []string) error {
	var sb strings.Builder

	for _, artifact := range artifacts {
		if !file.NonEmpty(artifact) {
			return fmt.Errorf("artifact %s is missing or empty; refusing to checksum", artifact)
		}
		digest, err := file.Sha256File(artifact, true)
		if err != nil {
			return err
		}
		sb.WriteString(digest)
		sb.WriteString("  ")
		sb.WriteString(filepath.Base(artifact))
		sb.WriteString("\n")
	}

	if err := os.WriteFile(manifestPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("writing checksum manifest %s: %w", manifestPath, err)
	}
	return nil
}
