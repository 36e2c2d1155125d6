// Package hostbeat keeps a small fleet of unprivileged hosts healthy:
// each cycle restarts dead local processes and probes peer hosts over
// SSH, remediating the ones that report a dead process. Cycles are
// idempotent and designed to be launched fresh from cron.
package hostbeat

import (
	"context"
	"log/slog"

	"github.com/loykin/hostbeat/internal/config"
	"github.com/loykin/hostbeat/internal/cycle"
	"github.com/loykin/hostbeat/internal/heartbeat"
	"github.com/loykin/hostbeat/internal/monitor"
	"github.com/loykin/hostbeat/internal/urlcheck"
)

// Re-export core types for external consumers. These are aliases so
// conversions are zero-cost.

type Settings = config.Settings

type CycleContext = config.CycleContext

type Report = cycle.Report

type Descriptor = monitor.Descriptor

type RestartRecord = monitor.RestartRecord

type Peer = heartbeat.Peer

type PeerResult = heartbeat.Result

type URLResult = urlcheck.Result

// LoadSettings reads the TOML settings file (missing file = defaults).
func LoadSettings(path string) (Settings, error) { return config.LoadSettings(path) }

// ParseCycleContext parses a TYPE|USER|HOSTNAME|PORT origin marker.
func ParseCycleContext(origin string) (CycleContext, error) {
	return config.ParseCycleContext(origin)
}

// Runner is a thin facade over the internal cycle runner for embedding.
type Runner struct{ inner *cycle.Runner }

// NewRunner wires a Runner from settings and an invocation context.
func NewRunner(settings Settings, cctx CycleContext, logger *slog.Logger) (*Runner, error) {
	inner, err := cycle.New(settings, cctx, logger)
	if err != nil {
		return nil, err
	}
	return &Runner{inner: inner}, nil
}

// Run performs one full cycle.
func (r *Runner) Run(ctx context.Context) (Report, error) { return r.inner.Run(ctx) }

// Probe checks local liveness without restarting; it returns the names
// of dead descriptors.
func (r *Runner) Probe(ctx context.Context) (bool, []string, error) { return r.inner.Probe(ctx) }

// Close releases long-lived resources.
func (r *Runner) Close() { r.inner.Close() }
