package shell

import (
	"fmt"
	"strings"
	"testing"
)

func TestGetFullCmdStr(t *testing.T) {
	tests := []struct {
		name        string
		cmd         string
		sudo        bool
		expectError bool
		contains    []string
	}{
		{
			name:     "mapped_command_gets_full_path",
			cmd:      "git status --porcelain",
			contains: []string{"/usr/bin/git status --porcelain"},
		},
		{
			name:     "sudo_prefix",
			cmd:      "systemctl daemon-reload",
			sudo:     true,
			contains: []string{"sudo ", "/usr/bin/systemctl daemon-reload"},
		},
		{
			name:     "compound_command_both_sides_verified",
			cmd:      "mkdir -p /tmp/x && tar -cf out.tar /tmp/x",
			contains: []string{"/usr/bin/mkdir -p /tmp/x", "&&", "/usr/bin/tar -cf out.tar /tmp/x"},
		},
		{
			name:     "explicit_path_bypasses_map",
			cmd:      "/opt/monitoring-client/bin/monitoring-client --version",
			contains: []string{"/opt/monitoring-client/bin/monitoring-client --version"},
		},
		{
			name:     "relative_path_bypasses_map",
			cmd:      "./dist/monitoring-client --version",
			contains: []string{"./dist/monitoring-client --version"},
		},
		{
			name:        "unknown_command_rejected",
			cmd:        "curl https://example.com",
			expectError: true,
		},
		{
			name:        "unknown_command_in_compound_rejected",
			cmd:        "mkdir -p /tmp/x && curl https://example.com",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetFullCmdStr(tt.cmd, tt.sudo, HostPath, nil)
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error for %q, got %q", tt.cmd, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetFullCmdStr(%q) failed: %v", tt.cmd, err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GetFullCmdStr(%q) = %q, missing %q", tt.cmd, got, want)
				}
			}
		})
	}
}

func TestMockExecutor(t *testing.T) {
	mock := NewMockExecutor([]MockCommand{
		{Pattern: `^git status`, Output: " M VERSION\n", Error: nil},
		{Pattern: `^systemctl is-active`, Output: "inactive\n", Error: fmt.Errorf("exit status 3")},
	})

	old := Default
	Default = mock
	defer func() { Default = old }()

	output, err := ExecCmdSilent("git status --porcelain", false, HostPath, nil)
	if err != nil {
		t.Fatalf("mocked git status returned error: %v", err)
	}
	if output != " M VERSION\n" {
		t.Errorf("unexpected output %q", output)
	}

	if _, err := ExecCmdSilent("systemctl is-active foo.timer", true, HostPath, nil); err == nil {
		t.Error("expected mocked error for systemctl is-active")
	}

	if _, err := ExecCmd("rpmbuild -bb spec", false, HostPath, nil); err == nil {
		t.Error("expected error for unregistered command")
	}

	if got := len(mock.Calls); got != 3 {
		t.Errorf("expected 3 recorded calls, got %d", got)
	}
	if matched := mock.CallsMatching(`^git`); len(matched) != 1 {
		t.Errorf("expected 1 git call, got %v", matched)
	}
}

func TestIsCommandExist(t *testing.T) {
	if !IsCommandExist("ls") {
		t.Error("ls should exist on any host")
	}
	if IsCommandExist("definitely-not-a-real-command-xyz") {
		t.Error("nonexistent command reported as existing")
	}
}
