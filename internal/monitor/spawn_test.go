package monitor

import (
	"strings"
	"testing"
)

func TestBuildCommandPlainArgs(t *testing.T) {
	cmd := buildCommand("sleep 5")
	if len(cmd.Args) != 2 || cmd.Args[1] != "5" {
		t.Fatalf("unexpected args: %v", cmd.Args)
	}
	if strings.Contains(cmd.Path, "sh") {
		t.Fatalf("plain command should not go through a shell: %s", cmd.Path)
	}
}

func TestBuildCommandMetacharsUseShell(t *testing.T) {
	cmd := buildCommand("echo hi > /dev/null")
	if cmd.Path != "/bin/sh" || cmd.Args[1] != "-c" {
		t.Fatalf("metacharacter command should use sh -c: %v", cmd.Args)
	}
}

func TestBuildCommandExplicitShellNotDoubleWrapped(t *testing.T) {
	cmd := buildCommand(`sh -c 'echo hi; sleep 1'`)
	if cmd.Path != "/bin/sh" {
		t.Fatalf("path = %s", cmd.Path)
	}
	if len(cmd.Args) != 3 || cmd.Args[2] != "echo hi; sleep 1" {
		t.Fatalf("quotes should be stripped once: %v", cmd.Args)
	}
}

func TestParseExplicitShell(t *testing.T) {
	after, ok := parseExplicitShell(`/bin/sh -c "run --flag"`)
	if !ok || after != "run --flag" {
		t.Fatalf("parseExplicitShell = %q, %v", after, ok)
	}
	if _, ok := parseExplicitShell("python -c 'x'"); ok {
		t.Fatal("python -c is not a shell invocation")
	}
}

func TestSpawnDetachedHandleDoesNotWait(t *testing.T) {
	requireUnix(t)
	h, err := spawn(t.TempDir(), "sleep 2", true)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if h.PID() <= 0 {
		t.Fatalf("pid = %d", h.PID())
	}
	// Wait on a detached handle is a documented no-op.
	if err := h.Wait(); err != nil {
		t.Fatalf("Wait on detached handle: %v", err)
	}
}

func TestSpawnAttachedWaitReturnsExitError(t *testing.T) {
	requireUnix(t)
	h, err := spawn(t.TempDir(), "sh -c 'exit 3'", false)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := h.Wait(); err == nil {
		t.Fatal("want non-nil exit error")
	}
}
