package builder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

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

func fakeBinary(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	binary := filepath.Join(dir, "monitoring-client")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return binary
}

func TestVerifyBinaryVersion(t *testing.T) {
	tests := []struct {
		name        string
		output      string
		want        string
		expectError bool
		errContains string
	}{
		{
			name:   "matching_version",
			output: "monitoring-client 2.3.1\n",
			want:   "2.3.1",
		},
		{
			name:        "stale_binary",
			output:      "monitoring-client 2.3.0\n",
			want:        "2.3.1",
			expectError: true,
			errContains: "stale binary",
		},
		{
			name:        "unparseable_output",
			output:      "2.3.1\n",
			want:        "2.3.1",
			expectError: true,
			errContains: "unexpected version output",
		},
		{
			name:        "empty_output",
			output:      "",
			want:        "2.3.1",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withMock(t, []shell.MockCommand{
				{Pattern: `--version$`, Output: tt.output, Error: nil},
			})

			binary := fakeBinary(t)
			err := VerifyBinaryVersion(binary, tt.want)

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error")
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q missing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestVerifyBinaryVersionQueryFailure(t *testing.T) {
	withMock(t, nil) // no mock registered: every exec fails

	binary := fakeBinary(t)
	if err := VerifyBinaryVersion(binary, "2.3.1"); err == nil {
		t.Error("expected error when the binary cannot be queried")
	}
}

func TestVerifyBinaryVersionUsesAbsolutePath(t *testing.T) {
	mock := withMock(t, []shell.MockCommand{
		{Pattern: `--version$`, Output: "monitoring-client 2.3.1\n", Error: nil},
	})

	binary := fakeBinary(t)
	if err := VerifyBinaryVersion(binary, "2.3.1"); err != nil {
		t.Fatal(err)
	}

	calls := mock.CallsMatching(`--version$`)
	if len(calls) != 1 {
		t.Fatalf("expected one version query, got %v", calls)
	}
	if !strings.HasPrefix(calls[0], "/") {
		t.Errorf("binary invoked with non-absolute path: %q", calls[0])
	}
}
