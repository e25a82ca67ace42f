package shell

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/Fudheryk/monitoring-client/internal/utils/logger"
)

var (
	HostPath string = ""
)

// commandMap pins every external tool the pipeline is allowed to invoke to an
// absolute path. Commands outside this map (and not given as explicit paths)
// are rejected before execution.
var commandMap = map[string]string{
	"bash":        "/usr/bin/bash",
	"cat":         "/usr/bin/cat",
	"chmod":       "/usr/bin/chmod",
	"chown":       "/usr/bin/chown",
	"cp":          "/usr/bin/cp",
	"docker":      "/usr/bin/docker",
	"dpkg-deb":    "/usr/bin/dpkg-deb",
	"echo":        "/usr/bin/echo",
	"gh":          "/usr/bin/gh",
	"git":         "/usr/bin/git",
	"id":          "/usr/bin/id",
	"ls":          "/usr/bin/ls",
	"mkdir":       "/usr/bin/mkdir",
	"mktemp":      "/usr/bin/mktemp",
	"mv":          "/usr/bin/mv",
	"pip":         "/usr/bin/pip",
	"pip3":        "/usr/bin/pip3",
	"pyinstaller": "/usr/bin/pyinstaller",
	"python3":     "/usr/bin/python3",
	"rm":          "/usr/bin/rm",
	"rpmbuild":    "/usr/bin/rpmbuild",
	"sh":          "/bin/sh",
	"sha256sum":   "/usr/bin/sha256sum",
	"systemctl":   "/usr/bin/systemctl",
	"tar":         "/usr/bin/tar",
	"uname":       "/usr/bin/uname",
}

// Command describes a single external invocation handed to an Executor.
type Command struct {
	Raw    string   // the command line as written by the caller
	Sudo   bool     // prefix with sudo
	Chroot string   // chroot path, HostPath for none
	Env    []string // extra KEY=VALUE pairs
	Input  string   // optional stdin contents
	Stream bool     // stream output lines through the logger
	Silent bool     // suppress info-level output logging
}

// Executor runs commands on behalf of the shell helpers. Tests swap Default
// for a MockExecutor to keep runs hermetic.
type Executor interface {
	Exec(cmd Command) (string, error)
}

// Default is the process-wide executor used by ExecCmd and friends.
var Default Executor = &hostExecutor{}

// GetOSEnvirons returns the system environment variables as a map.
func GetOSEnvirons() map[string]string {
	environ := make(map[string]string)
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			environ[parts[0]] = parts[1]
		}
	}
	return environ
}

// GetOSProxyEnvirons retrieves HTTP and HTTPS proxy environment variables.
func GetOSProxyEnvirons() map[string]string {
	osEnv := GetOSEnvirons()
	proxyEnv := make(map[string]string)

	for key, value := range osEnv {
		if strings.Contains(strings.ToLower(key), "http_proxy") ||
			strings.Contains(strings.ToLower(key), "https_proxy") {
			proxyEnv[key] = value
		}
	}

	return proxyEnv
}

// IsCommandExist checks if a command exists on the host.
func IsCommandExist(cmd string) bool {
	output, _ := exec.Command("bash", "-c", "command -v "+cmd).Output()
	return len(bytes.TrimSpace(output)) > 0
}

func verifyCmdWithFullPath(cmd string) (string, error) {
	separators := []string{"&&", "||", ";"}

	sepIdx := -1
	sep := ""
	for _, s := range separators {
		if idx := strings.Index(cmd, s); idx != -1 && (sepIdx == -1 || idx < sepIdx) {
			sepIdx = idx
			sep = s
		}
	}
	if sepIdx != -1 {
		left := strings.TrimSpace(cmd[:sepIdx])
		right := strings.TrimSpace(cmd[sepIdx+len(sep):])
		leftCmdStr, err := verifyCmdWithFullPath(left)
		if err != nil {
			return "", fmt.Errorf("failed to verify command: %w", err)
		}
		rightCmdStr, err := verifyCmdWithFullPath(right)
		if err != nil {
			return "", fmt.Errorf("failed to verify command: %w", err)
		}
		return leftCmdStr + " " + sep + " " + rightCmdStr, nil
	}

	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return cmd, nil
	}
	bin := fields[0]

	// Explicit paths (built binaries, rendered scripts) bypass the map.
	if strings.HasPrefix(bin, "/") || strings.HasPrefix(bin, "./") {
		return strings.Join(fields, " "), nil
	}

	fullPath, ok := commandMap[bin]
	if !ok {
		return "", fmt.Errorf("command %s not found in commandMap", bin)
	}
	fields[0] = fullPath
	return strings.Join(fields, " "), nil
}

// GetFullCmdStr prepares a command string with necessary prefixes.
func GetFullCmdStr(cmdStr string, sudo bool, chrootPath string, envVal []string) (string, error) {
	var fullCmdStr string
	log := logger.Logger()
	envValStr := ""
	for _, env := range envVal {
		envValStr += env + " "
	}

	fullPathCmdStr, err := verifyCmdWithFullPath(cmdStr)
	if err != nil {
		return fullPathCmdStr, fmt.Errorf("failed to verify command with full path: %w", err)
	}

	if chrootPath != HostPath {
		if _, err := os.Stat(chrootPath); os.IsNotExist(err) {
			return fullPathCmdStr, fmt.Errorf("chroot path %s does not exist", chrootPath)
		}

		for key, value := range GetOSProxyEnvirons() {
			envValStr += key + "=" + value + " "
		}

		fullCmdStr = "sudo " + envValStr + "chroot " + chrootPath + " " + fullPathCmdStr
		log.Debugf("Chroot Exec: [%s]", fullPathCmdStr)
	} else if sudo {
		for key, value := range GetOSProxyEnvirons() {
			envValStr += key + "=" + value + " "
		}

		fullCmdStr = "sudo " + envValStr + fullPathCmdStr
		log.Debugf("Exec: [sudo %s]", fullPathCmdStr)
	} else {
		fullCmdStr = envValStr + fullPathCmdStr
		log.Debugf("Exec: [%s]", fullPathCmdStr)
	}

	return fullCmdStr, nil
}

type hostExecutor struct{}

func (h *hostExecutor) Exec(c Command) (string, error) {
	log := logger.Logger()

	fullCmdStr, err := GetFullCmdStr(c.Raw, c.Sudo, c.Chroot, c.Env)
	if err != nil {
		return "", fmt.Errorf("failed to get full command string: %w", err)
	}

	cmd := exec.Command("bash", "-c", fullCmdStr)
	if c.Input != "" {
		cmd.Stdin = strings.NewReader(c.Input)
	}

	if c.Stream {
		return h.execStreaming(cmd, fullCmdStr)
	}

	output, err := cmd.CombinedOutput()
	outputStr := string(output)

	if err != nil {
		if outputStr != "" && !c.Silent {
			log.Infof(outputStr)
		}
		return outputStr, fmt.Errorf("failed to exec %s: %w", fullCmdStr, err)
	}
	if outputStr != "" && !c.Silent {
		log.Debugf(outputStr)
	}
	return outputStr, nil
}

func (h *hostExecutor) execStreaming(cmd *exec.Cmd, fullCmdStr string) (string, error) {
	log := logger.Logger()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stdout pipe for command %s: %w", fullCmdStr, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stderr pipe for command %s: %w", fullCmdStr, err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start command %s: %w", fullCmdStr, err)
	}

	var outputStr string
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			str := scanner.Text()
			if str != "" {
				outputStr += str
				log.Infof(str)
			}
		}
	}()

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			str := scanner.Text()
			if str != "" {
				log.Infof(str)
			}
		}
	}()

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return outputStr, fmt.Errorf("failed to wait for command %s: %w", fullCmdStr, err)
	}

	return outputStr, nil
}

// ExecCmd executes a command and returns its combined output.
func ExecCmd(cmdStr string, sudo bool, chrootPath string, envVal []string) (string, error) {
	return Default.Exec(Command{Raw: cmdStr, Sudo: sudo, Chroot: chrootPath, Env: envVal})
}

// ExecCmdSilent executes a command without echoing its output at info level.
func ExecCmdSilent(cmdStr string, sudo bool, chrootPath string, envVal []string) (string, error) {
	return Default.Exec(Command{Raw: cmdStr, Sudo: sudo, Chroot: chrootPath, Env: envVal, Silent: true})
}

// ExecCmdWithStream executes a command and streams its output line by line.
func ExecCmdWithStream(cmdStr string, sudo bool, chrootPath string, envVal []string) (string, error) {
	return Default.Exec(Command{Raw: cmdStr, Sudo: sudo, Chroot: chrootPath, Env: envVal, Stream: true})
}

// ExecCmdWithInput executes a command feeding inputStr to its stdin.
func ExecCmdWithInput(inputStr string, cmdStr string, sudo bool, chrootPath string, envVal []string) (string, error) {
	return Default.Exec(Command{Raw: cmdStr, Sudo: sudo, Chroot: chrootPath, Env: envVal, Input: inputStr})
}
