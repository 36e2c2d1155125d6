package config

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"

	"github.com/loykin/hostbeat/internal/heartbeat"
)

// CycleContext identifies one invocation of the engine. It is parsed
// once at startup from the origin argument (or the HOSTBEAT_ORIGIN
// environment variable) and passed read-only to every component.
type CycleContext struct {
	Type     string // monitor type tag, e.g. "0" for the default engine
	Username string
	Hostname string
	Port     int
	Origin   string // the raw TYPE|USER|HOSTNAME|PORT marker
}

// Identity converts the context into the heartbeat self identity.
func (c CycleContext) Identity() heartbeat.Identity {
	return heartbeat.Identity{
		Type:     c.Type,
		Username: c.Username,
		Hostname: c.Hostname,
		Port:     c.Port,
	}
}

// ParseCycleContext parses a TYPE|USER|HOSTNAME|PORT marker. An empty
// arg falls back to HOSTBEAT_ORIGIN, then to the local host identity.
func ParseCycleContext(arg string) (CycleContext, error) {
	if arg == "" {
		arg = os.Getenv("HOSTBEAT_ORIGIN")
	}
	if arg == "" {
		return localContext()
	}
	parts := strings.Split(arg, "|")
	if len(parts) != 4 {
		return CycleContext{}, fmt.Errorf("%w: origin %q: want TYPE|USER|HOSTNAME|PORT", ErrMalformedRecord, arg)
	}
	port, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil || port <= 0 {
		return CycleContext{}, fmt.Errorf("%w: origin %q: invalid port", ErrMalformedRecord, arg)
	}
	c := CycleContext{
		Type:     strings.TrimSpace(parts[0]),
		Username: strings.TrimSpace(parts[1]),
		Hostname: strings.TrimSpace(parts[2]),
		Port:     port,
	}
	c.Origin = c.Identity().Origin()
	return c, nil
}

func localContext() (CycleContext, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return CycleContext{}, err
	}
	username := os.Getenv("USER")
	if u, err := user.Current(); err == nil && u.Username != "" {
		username = u.Username
	}
	c := CycleContext{Type: "0", Username: username, Hostname: hostname, Port: 22}
	c.Origin = c.Identity().Origin()
	return c, nil
}
