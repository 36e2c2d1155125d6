// Package heartbeat probes configured peer hosts over SSH and triggers
// remote remediation when a peer's own monitored processes are down.
// A network failure never counts as a dead peer: Unreachable results
// trigger nothing, which keeps a partition from causing a remediation
// storm across the fleet.
package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"syscall"

	"github.com/loykin/hostbeat/internal/metrics"
)

// Identity names the local host so its own entry in the peer table is
// skipped and so remediation requests carry a traceable origin.
type Identity struct {
	Type     string
	Username string
	Hostname string
	Port     int
}

// Origin renders the TYPE|USER|HOSTNAME|PORT marker passed to remote
// cycles for self-identification.
func (id Identity) Origin() string {
	return fmt.Sprintf("%s|%s|%s|%d", id.Type, id.Username, id.Hostname, id.Port)
}

// Config tunes the heartbeat pass.
type Config struct {
	// RemoteDir is the engine's install directory on every peer.
	RemoteDir string
	// Workers bounds parallel probes; <=1 means sequential.
	Workers int
}

// Client runs the heartbeat pass for one cycle.
type Client struct {
	exec   Executor
	cfg    Config
	self   Identity
	logger *slog.Logger
}

func NewClient(exec Executor, cfg Config, self Identity, logger *slog.Logger) *Client {
	if cfg.RemoteDir == "" {
		cfg.RemoteDir = "~/hostbeat"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{exec: exec, cfg: cfg, self: self, logger: logger}
}

func (c *Client) probeCommand() string {
	return fmt.Sprintf("cd %s && ./hostbeat probe", c.cfg.RemoteDir)
}

func (c *Client) remediateCommand() string {
	return fmt.Sprintf("cd %s && ./hostbeat cycle --origin '%s'", c.cfg.RemoteDir, c.self.Origin())
}

// Check probes every peer and remediates the dead ones. Results carry
// no ordering guarantee across peers. All probe workers are joined
// before Check returns; no probe outlives the cycle.
func (c *Client) Check(ctx context.Context, peers []Peer) []Result {
	targets := make([]Peer, 0, len(peers))
	for _, p := range peers {
		if p.Hostname == c.self.Hostname && p.Username == c.self.Username {
			c.logger.Info("skipping local host in peer table", "peer", p.String())
			continue
		}
		targets = append(targets, p)
	}
	if len(targets) == 0 {
		return nil
	}

	workers := c.cfg.Workers
	if workers <= 1 || len(targets) == 1 {
		results := make([]Result, 0, len(targets))
		for _, p := range targets {
			results = append(results, c.checkOne(ctx, p))
		}
		return results
	}
	if workers > len(targets) {
		workers = len(targets)
	}

	in := make(chan Peer)
	out := make(chan Result)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range in {
				out <- c.checkOne(ctx, p)
			}
		}()
	}
	go func() {
		for _, p := range targets {
			in <- p
		}
		close(in)
		wg.Wait()
		close(out)
	}()

	results := make([]Result, 0, len(targets))
	for r := range out {
		results = append(results, r)
	}
	return results
}

// checkOne probes a single peer and, if the peer reports a dead
// process, triggers exactly one remediation. Each call owns its own
// connection; one peer's timeout cannot affect another's probe.
func (c *Client) checkOne(ctx context.Context, peer Peer) Result {
	res := Result{Peer: peer}
	c.logger.Info("probing peer", "peer", peer.String())

	code, _, stderr, err := c.exec.Execute(ctx, peer, c.probeCommand())
	if err != nil {
		res.State = Unreachable
		res.Reason = classify(err)
		metrics.IncProbe(peer.String(), string(Unreachable))
		c.logger.Warn("peer unreachable", "peer", peer.String(), "reason", res.Reason, "err", err)
		return res
	}
	if code == 0 {
		res.State = Alive
		metrics.IncProbe(peer.String(), string(Alive))
		c.logger.Info("peer healthy", "peer", peer.String())
		return res
	}

	res.State = Dead
	metrics.IncProbe(peer.String(), string(Dead))
	c.logger.Warn("peer reports dead process, remediating", "peer", peer.String(), "exit", code, "stderr", strings.TrimSpace(stderr))

	res.Remediated = true
	metrics.IncRemediation(peer.String())
	rcode, _, rerr, err := c.exec.Execute(ctx, peer, c.remediateCommand())
	switch {
	case err != nil:
		res.RemedErr = classify(err)
		c.logger.Error("remediation failed", "peer", peer.String(), "err", err)
	case rcode != 0:
		res.RemedErr = fmt.Sprintf("remote cycle exited %d: %s", rcode, strings.TrimSpace(rerr))
		c.logger.Error("remediation failed", "peer", peer.String(), "exit", rcode)
	default:
		c.logger.Info("remediation triggered", "peer", peer.String())
	}
	return res
}

// classify maps a connection-level error to a stable Unreachable reason.
func classify(err error) string {
	var nerr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &nerr) && nerr.Timeout():
		return "timeout"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "refused"
	case strings.Contains(err.Error(), "unable to authenticate"),
		strings.Contains(err.Error(), "no usable auth"):
		return "auth"
	default:
		return "connection: " + err.Error()
	}
}
