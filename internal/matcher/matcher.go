// Package matcher decides whether a configured process pattern is
// currently alive by scanning the OS process table.
package matcher

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Matcher is a validated process liveness pattern. Patterns are compiled
// at config-load time so a bad regex fails the cycle before any
// reconciliation starts, not in the middle of one.
//
// Two forms are supported:
//   - "name"    exact match against the process name or the basename of
//     the command line's first token
//   - "~expr"   regular expression matched against the full command line
type Matcher struct {
	raw string
	re  *regexp.Regexp
}

// Compile validates pattern and returns a Matcher.
func Compile(pattern string) (Matcher, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return Matcher{}, fmt.Errorf("empty process pattern")
	}
	if rest, ok := strings.CutPrefix(pattern, "~"); ok {
		re, err := regexp.Compile(rest)
		if err != nil {
			return Matcher{}, fmt.Errorf("invalid process pattern %q: %w", pattern, err)
		}
		return Matcher{raw: pattern, re: re}, nil
	}
	return Matcher{raw: pattern}, nil
}

// String returns the original pattern text.
func (m Matcher) String() string { return m.raw }

// Matches reports whether a process with the given name and command line
// satisfies the pattern.
func (m Matcher) Matches(name, cmdline string) bool {
	if m.re != nil {
		return m.re.MatchString(cmdline)
	}
	if name == m.raw {
		return true
	}
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return false
	}
	return filepath.Base(fields[0]) == m.raw
}

// Procs abstracts the process table so reconciliation can be tested
// without depending on what happens to be running on the host.
type Procs interface {
	// Snapshot returns (pid, name, cmdline) rows for all visible processes.
	Snapshot(ctx context.Context) ([]Proc, error)
}

// Proc is one row of the process table snapshot.
type Proc struct {
	PID     int32
	Name    string
	Cmdline string
}
