package shell

import (
	"fmt"
	"regexp"
	"sync"
)

// MockCommand pairs a regular-expression pattern with the canned output and
// error returned when a command matches it.
type MockCommand struct {
	Pattern string
	Output  string
	Error   error
}

// MockExecutor replays canned outputs for matching commands instead of
// touching the host. Install it via shell.Default in tests.
type MockExecutor struct {
	mu       sync.Mutex
	commands []MockCommand
	compiled []*regexp.Regexp
	Calls    []Command // every command received, in order
}

// NewMockExecutor compiles the given patterns; invalid patterns panic, which
// surfaces immediately in the test that declared them.
func NewMockExecutor(commands []MockCommand) *MockExecutor {
	compiled := make([]*regexp.Regexp, len(commands))
	for i, mc := range commands {
		compiled[i] = regexp.MustCompile(mc.Pattern)
	}
	return &MockExecutor{commands: commands, compiled: compiled}
}

func (m *MockExecutor) Exec(c Command) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, c)

	for i, re := range m.compiled {
		if re.MatchString(c.Raw) {
			return m.commands[i].Output, m.commands[i].Error
		}
	}
	return "", fmt.Errorf("no mock registered for command %q", c.Raw)
}

// CallsMatching returns the raw command lines that matched the pattern.
func (m *MockExecutor) CallsMatching(pattern string) []string {
	re := regexp.MustCompile(pattern)

	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []string
	for _, c := range m.Calls {
		if re.MatchString(c.Raw) {
			matched = append(matched, c.Raw)
		}
	}
	return matched
}
