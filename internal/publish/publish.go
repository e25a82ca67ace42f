// Package publish orchestrates a release: version sync, sequential builds of
// every artifact, checksums, and upload to the release host. Every step is
// succeed-or-abort; nothing is retried.
package publish

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Fudheryk/monitoring-client/internal/authority"
	"github.com/Fudheryk/monitoring-client/internal/builder"
	"github.com/Fudheryk/monitoring-client/internal/config"
	"github.com/Fudheryk/monitoring-client/internal/pkg/deb"
	"github.com/Fudheryk/monitoring-client/internal/pkg/rpm"
	"github.com/Fudheryk/monitoring-client/internal/pkg/tarball"
	"github.com/Fudheryk/monitoring-client/internal/utils/file"
	"github.com/Fudheryk/monitoring-client/internal/utils/logger"
	"github.com/Fudheryk/monitoring-client/internal/utils/shell"
)

// Options carries per-release inputs.
type Options struct {
	Version string
	Notes   string
	Update  bool // allow updating an existing tag/release in place
}

// Publisher runs the end-to-end release.
type Publisher struct {
	cfg  *config.Config
	auth *authority.Authority
}

// New returns a Publisher bound to the given configuration and authority.
func New(cfg *config.Config, auth *authority.Authority) *Publisher {
	return &Publisher{cfg: cfg, auth: auth}
}

// Release executes the full pipeline for opts.Version.
func (p *Publisher) Release(opts Options) error {
	log := logger.Logger()

	if err := p.checkPreconditions(opts); err != nil {
		return err
	}

	if err := p.auth.Sync(opts.Version); err != nil {
		return err
	}
	if err := p.commitAndTag(opts); err != nil {
		return err
	}

	// Strict staleness checking is never relaxed on the release path.
	p.cfg.Build.StrictVersionCheck = true

	// Sequential on purpose: the assemblers share the staging tree and must
	// never overlap, and rpm may hand off to a container that remounts the
	// working directory.
	binary, err := builder.New(p.cfg, p.auth).Build()
	if err != nil {
		return err
	}

	debFile, err := deb.New(p.cfg, p.auth).Assemble(binary)
	if err != nil {
		return err
	}

	rpmFile, err := rpm.New(p.cfg, p.auth).Assemble(binary)
	if err != nil {
		return err
	}

	tarFiles, err := tarball.New(p.cfg, p.auth).Assemble(binary)
	if err != nil {
		return err
	}

	artifacts := append([]string{debFile, rpmFile}, tarFiles...)
	for _, artifact := range artifacts {
		if !file.NonEmpty(artifact) {
			return fmt.Errorf("artifact %s vanished before publication", artifact)
		}
	}

	manifest := filepath.Join(p.cfg.Paths.DistDir, "SHA256SUMS")
	if err := WriteChecksums(manifest, artifacts); err != nil {
		return err
	}
	assets := append(artifacts, manifest)

	if key := p.cfg.Publish.SigningKey; key != "" {
		signed := manifest + ".asc"
		if err := ClearsignFile(key, manifest, signed); err != nil {
			return err
		}
		assets = append(assets, signed)
	}

	if err := p.pushAndUpload(opts, assets); err != nil {
		return err
	}

	log.Infof("released %s %s with %d asset(s)", p.cfg.App.Name, opts.Version, len(assets))
	return nil
}

// checkPreconditions runs every environment check before any mutation.
func (p *Publisher) checkPreconditions(opts Options) error {
	if !shell.IsCommandExist("git") {
		return fmt.Errorf("git not found")
	}
	if !shell.IsCommandExist("gh") {
		return fmt.Errorf("gh not found; install the GitHub CLI and run: gh auth login")
	}

	status, err := shell.ExecCmdSilent("git status --porcelain", false, shell.HostPath, nil)
	if err != nil {
		return fmt.Errorf("checking working tree: %w", err)
	}
	if strings.TrimSpace(status) != "" {
		return fmt.Errorf("working tree has uncommitted changes; commit or stash them before releasing")
	}

	if p.tagExists(opts.Version) && !opts.Update {
		return fmt.Errorf("tag v%s already exists; pass --update to re-publish it in place", opts.Version)
	}

	return nil
}

func (p *Publisher) tagExists(version string) bool {
	_, err := shell.ExecCmdSilent("git rev-parse -q --verify refs/tags/v"+version, false, shell.HostPath, nil)
	return err == nil
}

func (p *Publisher) commitAndTag(opts Options) error {
	status, err := shell.ExecCmdSilent("git status --porcelain", false, shell.HostPath, nil)
	if err != nil {
		return fmt.Errorf("checking working tree after sync: %w", err)
	}
	if strings.TrimSpace(status) != "" {
		commit := fmt.Sprintf("git commit -am 'Release v%s'", opts.Version)
		if _, err := shell.ExecCmd(commit, false, shell.HostPath, nil); err != nil {
			return fmt.Errorf("committing version bump: %w", err)
		}
	}

	if !p.tagExists(opts.Version) {
		if _, err := shell.ExecCmd("git tag v"+opts.Version, false, shell.HostPath, nil); err != nil {
			return fmt.Errorf("tagging v%s: %w", opts.Version, err)
		}
	}

	return nil
}

func (p *Publisher) pushAndUpload(opts Options, assets []string) error {
	log := logger.Logger()

	remote, branch := p.cfg.Publish.Remote, p.cfg.Publish.Branch
	push := fmt.Sprintf("git push %s %s --tags", remote, branch)
	if _, err := shell.ExecCmd(push, false, shell.HostPath, nil); err != nil {
		return fmt.Errorf("pushing tag: %w", err)
	}

	repoFlag := ""
	if p.cfg.Publish.Repo != "" {
		repoFlag = " --repo " + p.cfg.Publish.Repo
	}

	tag := "v" + opts.Version
	_, viewErr := shell.ExecCmdSilent("gh release view "+tag+repoFlag, false, shell.HostPath, nil)

	if viewErr != nil {
		// Release absent: create it with every asset attached. Notes go over
		// stdin so multi-line bodies survive shell quoting.
		notes := opts.Notes
		if notes == "" {
			notes = fmt.Sprintf("%s %s", p.cfg.App.Name, opts.Version)
		}
		cmd := fmt.Sprintf("gh release create %s%s --title '%s %s' --notes-file - %s",
			tag, repoFlag, p.cfg.App.Name, opts.Version, strings.Join(assets, " "))
		if _, err := shell.ExecCmdWithInput(notes, cmd, false, shell.HostPath, nil); err != nil {
			return fmt.Errorf("creating release %s: %w", tag, err)
		}
		return nil
	}

	log.Infof("release %s already exists, overwriting assets in place", tag)
	cmd := fmt.Sprintf("gh release upload %s%s --clobber %s", tag, repoFlag, strings.Join(assets, " "))
	if _, err := shell.ExecCmdWithStream(cmd, false, shell.HostPath, nil); err != nil {
		return fmt.Errorf("uploading assets to %s: %w", tag, err)
	}
	return nil
}
