package matcher

import (
	"context"
	"os"
	"strings"

	gops "github.com/shirou/gopsutil/v4/process"
)

// Scanner scans the live process table for matcher hits while guarding
// against self-matches: the engine's own process, its parent (the shell
// or cron that launched it), and any process carrying the engine's
// origin marker on its command line are never counted. Without this a
// descriptor pattern like "run.sh" could match the monitor itself and
// the monitor would happily restart itself forever.
type Scanner struct {
	selfPID   int32
	parentPID int32
	marker    string
}

// NewScanner builds a Scanner. marker is the engine's own invocation
// marker (the origin argument); empty disables marker exclusion.
func NewScanner(marker string) *Scanner {
	return &Scanner{
		selfPID:   int32(os.Getpid()),
		parentPID: int32(os.Getppid()),
		marker:    marker,
	}
}

// Snapshot implements Procs over gopsutil with self-match rows removed.
func (s *Scanner) Snapshot(ctx context.Context) ([]Proc, error) {
	procs, err := gops.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Proc, 0, len(procs))
	for _, p := range procs {
		if p.Pid == s.selfPID || p.Pid == s.parentPID {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// Process may have exited between listing and inspection.
			continue
		}
		cmdline, err := p.CmdlineWithContext(ctx)
		if err != nil {
			continue
		}
		if s.marker != "" && strings.Contains(cmdline, s.marker) {
			continue
		}
		out = append(out, Proc{PID: p.Pid, Name: name, Cmdline: cmdline})
	}
	return out, nil
}

// AnyAlive reports whether at least one process in table matches m.
func AnyAlive(ctx context.Context, table Procs, m Matcher) (bool, error) {
	rows, err := table.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if m.Matches(r.Name, r.Cmdline) {
			return true, nil
		}
	}
	return false, nil
}

// PIDExists reports whether pid is currently running. Used by the guard
// for lock staleness detection.
func PIDExists(ctx context.Context, pid int32) bool {
	ok, err := gops.PidExistsWithContext(ctx, pid)
	return err == nil && ok
}
