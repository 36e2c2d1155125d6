package heartbeat

import (
	"fmt"
	"net"
	"strconv"
)

// Peer is another host participating in mutual heartbeat monitoring.
// Identity is the (hostname, port, username) tuple. Peers are loaded
// from config and immutable for the duration of a cycle.
type Peer struct {
	Hostname string
	Port     int
	Username string
	Password string // optional fallback when key auth fails
}

// Addr returns the dialable host:port.
func (p Peer) Addr() string { return net.JoinHostPort(p.Hostname, strconv.Itoa(p.Port)) }

// String renders the peer identity for logs.
func (p Peer) String() string { return fmt.Sprintf("%s@%s:%d", p.Username, p.Hostname, p.Port) }

// State is the outcome of one liveness probe. Unreachable means the
// peer could not be assessed this cycle; it is never treated as Dead.
type State string

const (
	Alive       State = "alive"
	Dead        State = "dead"
	Unreachable State = "unreachable"
)

// Result is the transient per-peer outcome of one cycle.
type Result struct {
	Peer       Peer
	State      State
	Reason     string // set for Unreachable
	Remediated bool
	RemedErr   string
}
