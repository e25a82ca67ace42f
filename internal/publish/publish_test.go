package publish

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Fudheryk/monitoring-client/internal/authority"
	"github.com/Fudheryk/monitoring-client/internal/config"
	"github.com/Fudheryk/monitoring-client/internal/utils/shell"
)

func withMock(t *testing.T, commands []shell.MockCommand) *shell.MockExecutor {
	t.Helper()
	mock := shell.NewMockExecutor(commands)
	old := shell.Default
	shell.Default = mock
	t.Cleanup(func() { shell.Default = old })
	return mock
}

func testPublisher() *Publisher {
	cfg := config.Default()
	return New(cfg, authority.New(cfg))
}

func TestTagExists(t *testing.T) {
	p := testPublisher()

	withMock(t, []shell.MockCommand{
		{Pattern: `git rev-parse -q --verify refs/tags/v2\.3\.1`, Output: "abc123\n", Error: nil},
	})
	if !p.tagExists("2.3.1") {
		t.Error("existing tag not detected")
	}

	withMock(t, []shell.MockCommand{
		{Pattern: `git rev-parse`, Output: "", Error: fmt.Errorf("exit status 1")},
	})
	if p.tagExists("9.9.9") {
		t.Error("missing tag reported as existing")
	}
}

func TestCommitAndTagDirtyTree(t *testing.T) {
	p := testPublisher()

	mock := withMock(t, []shell.MockCommand{
		{Pattern: `git status --porcelain`, Output: " M VERSION\n", Error: nil},
		{Pattern: `git commit -am`, Output: "", Error: nil},
		{Pattern: `git rev-parse`, Output: "", Error: fmt.Errorf("exit status 1")},
		{Pattern: `git tag v2\.3\.1`, Output: "", Error: nil},
	})

	if err := p.commitAndTag(Options{Version: "2.3.1"}); err != nil {
		t.Fatalf("commitAndTag failed: %v", err)
	}

	if calls := mock.CallsMatching(`git commit -am 'Release v2\.3\.1'`); len(calls) != 1 {
		t.Errorf("expected one commit, got %v", calls)
	}
	if calls := mock.CallsMatching(`git tag v2\.3\.1`); len(calls) != 1 {
		t.Errorf("expected one tag, got %v", calls)
	}
}

func TestCommitAndTagCleanTreeSkipsCommit(t *testing.T) {
	p := testPublisher()

	mock := withMock(t, []shell.MockCommand{
		{Pattern: `git status --porcelain`, Output: "", Error: nil},
		{Pattern: `git rev-parse`, Output: "abc123\n", Error: nil}, // tag present
	})

	if err := p.commitAndTag(Options{Version: "2.3.1"}); err != nil {
		t.Fatalf("commitAndTag failed: %v", err)
	}

	if calls := mock.CallsMatching(`git (commit|tag)`); len(calls) != 0 {
		t.Errorf("clean tree with existing tag must not commit or tag: %v", calls)
	}
}

func TestPushAndUploadCreatesMissingRelease(t *testing.T) {
	p := testPublisher()
	p.cfg.Publish.Repo = "example/monitoring-client"

	mock := withMock(t, []shell.MockCommand{
		{Pattern: `git push origin main --tags`, Output: "", Error: nil},
		{Pattern: `gh release view`, Output: "", Error: fmt.Errorf("release not found")},
		{Pattern: `gh release create`, Output: "", Error: nil},
	})

	assets := []string{"dist/a.deb", "dist/SHA256SUMS"}
	if err := p.pushAndUpload(Options{Version: "2.3.1", Notes: "first line\nsecond line"}, assets); err != nil {
		t.Fatalf("pushAndUpload failed: %v", err)
	}

	creates := mock.CallsMatching(`gh release create v2\.3\.1 --repo example/monitoring-client`)
	if len(creates) != 1 {
		t.Fatalf("expected one gh release create, got %v", mock.CallsMatching(`gh`))
	}
	for _, call := range mock.Calls {
		if strings.Contains(call.Raw, "gh release create") {
			if !strings.Contains(call.Raw, "--notes-file -") {
				t.Errorf("create must read notes from stdin: %s", call.Raw)
			}
			if call.Input != "first line\nsecond line" {
				t.Errorf("release notes not fed over stdin, got %q", call.Input)
			}
		}
	}
	for _, asset := range assets {
		if calls := mock.CallsMatching(asset); len(calls) == 0 {
			t.Errorf("asset %s not attached to the release", asset)
		}
	}
}

func TestPushAndUploadOverwritesExistingRelease(t *testing.T) {
	p := testPublisher()

	mock := withMock(t, []shell.MockCommand{
		{Pattern: `git push`, Output: "", Error: nil},
		{Pattern: `gh release view`, Output: "v2.3.1\n", Error: nil},
		{Pattern: `gh release upload`, Output: "", Error: nil},
	})

	if err := p.pushAndUpload(Options{Version: "2.3.1", Update: true}, []string{"dist/a.deb"}); err != nil {
		t.Fatalf("pushAndUpload failed: %v", err)
	}

	if calls := mock.CallsMatching(`gh release upload v2\.3\.1 --clobber`); len(calls) != 1 {
		t.Errorf("expected one clobbering upload, got %v", mock.CallsMatching(`gh`))
	}
	if calls := mock.CallsMatching(`gh release create`); len(calls) != 0 {
		t.Errorf("existing release must not be re-created: %v", calls)
	}
}
