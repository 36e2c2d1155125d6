package monitor

import (
	"github.com/loykin/hostbeat/internal/matcher"
)

// RunMode controls whether a restart blocks the cycle.
type RunMode string

const (
	// Foreground restarts run the start command and wait for it to exit
	// before the next descriptor is evaluated. This blocks the whole
	// cycle; the config author accepts the tradeoff for processes that
	// must never be double-launched.
	Foreground RunMode = "foreground"
	// Background restarts detach the start command and return
	// immediately; the child must survive the cycle's exit.
	Background RunMode = "background"
)

// Descriptor is one configured local process to keep alive. Identity is
// the Name (the liveness pattern text). Descriptors are loaded fresh
// from config each cycle and never mutated.
type Descriptor struct {
	WorkDir string
	Name    string // raw pattern text, the descriptor's identity
	Pattern matcher.Matcher
	Command string
	Mode    RunMode
}
