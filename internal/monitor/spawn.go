package monitor

import (
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// Handle represents a launched start command. For detached launches the
// handle is released immediately and Wait must not be called; for
// attached launches the caller awaits Wait. The blocking contract lives
// in the type instead of a runtime flag.
type Handle struct {
	cmd      *exec.Cmd
	pid      int
	detached bool
}

// PID returns the launched process id.
func (h *Handle) PID() int { return h.pid }

// Wait blocks until an attached command exits. Calling Wait on a
// detached handle is a no-op returning nil.
func (h *Handle) Wait() error {
	if h.detached {
		return nil
	}
	return h.cmd.Wait()
}

// buildCommand constructs an *exec.Cmd for a start command string.
// It avoids invoking a shell when not necessary and honors an explicit
// "sh -c ..." already present in the command, avoiding double-wrapping.
func buildCommand(cmdStr string) *exec.Cmd {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if after, ok := parseExplicitShell(cmdStr); ok {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", after)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	name := parts[0]
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// #nosec G204
	return exec.Command(name, args...)
}

// parseExplicitShell detects "sh -c <ARG>" style prefixes and returns
// the argument after -c with one pair of surrounding quotes stripped.
func parseExplicitShell(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		if strings.HasPrefix(trim, p) {
			after := trim[len(p):]
			if n := len(after); n >= 2 {
				if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
					after = after[1 : n-1]
				}
			}
			return after, true
		}
	}
	return "", false
}

// spawn launches command in workDir. Detached children get their own
// session so they survive the cycle's exit, and stdio goes to /dev/null.
func spawn(workDir, command string, detached bool) (*Handle, error) {
	cmd := buildCommand(command)
	cmd.Dir = workDir
	null, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err == nil {
		cmd.Stdin = null
		cmd.Stdout = null
		cmd.Stderr = null
	}
	if detached {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	} else {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}
	if err := cmd.Start(); err != nil {
		if null != nil {
			_ = null.Close()
		}
		return nil, err
	}
	if null != nil {
		_ = null.Close()
	}
	// Capture the pid before Release: on Go 1.23+ releasing a pidfd-backed
	// process invalidates Process.Pid.
	h := &Handle{cmd: cmd, pid: cmd.Process.Pid, detached: detached}
	if detached {
		// Drop the child so the runtime never waits on it.
		_ = cmd.Process.Release()
	}
	return h, nil
}
