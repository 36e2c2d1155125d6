// Package monitor reconciles configured local processes: anything dead
// gets restarted in its working directory, anything alive is left
// untouched. One pass per cycle, no state kept in between.
package monitor

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/loykin/hostbeat/internal/matcher"
	"github.com/loykin/hostbeat/internal/metrics"
)

// Outcome classifies a reconciled descriptor.
type Outcome string

const (
	OutcomeRunning   Outcome = "running"
	OutcomeRestarted Outcome = "restarted"
	OutcomeFailed    Outcome = "failed"
)

// RestartRecord is the per-descriptor result of a reconcile pass.
type RestartRecord struct {
	Time    time.Time
	Name    string
	WorkDir string
	Command string
	Mode    RunMode
	Outcome Outcome
	Err     string
}

type spawnFunc func(workDir, command string, detached bool) (*Handle, error)

// Monitor performs the local reconcile pass.
type Monitor struct {
	table  matcher.Procs
	rlog   *RestartLog
	logger *slog.Logger
	spawn  spawnFunc
}

func New(table matcher.Procs, rlog *RestartLog, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{table: table, rlog: rlog, logger: logger, spawn: spawn}
}

// Reconcile evaluates descriptors in configured order and restarts the
// dead ones. A failure on one descriptor never aborts the rest: errors
// are recorded in the returned records and the pass continues.
func (m *Monitor) Reconcile(ctx context.Context, descs []Descriptor) []RestartRecord {
	records := make([]RestartRecord, 0, len(descs))
	for _, d := range descs {
		rec := m.reconcileOne(ctx, d)
		records = append(records, rec)
		if rec.Outcome != OutcomeRunning {
			if err := m.rlog.Append(rec); err != nil {
				m.logger.Warn("restart log append failed", "path_err", err)
			}
		}
	}
	return records
}

func (m *Monitor) reconcileOne(ctx context.Context, d Descriptor) RestartRecord {
	rec := RestartRecord{
		Time:    time.Now(),
		Name:    d.Name,
		WorkDir: d.WorkDir,
		Command: d.Command,
		Mode:    d.Mode,
	}

	alive, err := matcher.AnyAlive(ctx, m.table, d.Pattern)
	if err != nil {
		rec.Outcome = OutcomeFailed
		rec.Err = "process table scan: " + err.Error()
		m.logger.Error("liveness check failed", "process", d.Name, "err", err)
		return rec
	}
	if alive {
		rec.Outcome = OutcomeRunning
		m.logger.Info("process running", "process", d.Name)
		return rec
	}

	m.logger.Warn("process dead, restarting", "process", d.Name, "workdir", d.WorkDir, "mode", d.Mode)

	if fi, err := os.Stat(d.WorkDir); err != nil || !fi.IsDir() {
		rec.Outcome = OutcomeFailed
		rec.Err = "working directory missing: " + d.WorkDir
		m.logger.Error("skipping descriptor", "process", d.Name, "err", rec.Err)
		return rec
	}

	h, err := m.spawn(d.WorkDir, d.Command, d.Mode == Background)
	if err != nil {
		rec.Outcome = OutcomeFailed
		rec.Err = "exec: " + err.Error()
		m.logger.Error("restart failed", "process", d.Name, "err", err)
		return rec
	}

	if d.Mode == Foreground {
		if err := h.Wait(); err != nil {
			// The command ran; a non-zero exit is still a completed restart
			// attempt, just record what happened.
			m.logger.Warn("foreground command exited with error", "process", d.Name, "err", err)
		}
	}

	rec.Outcome = OutcomeRestarted
	metrics.IncRestart(d.Name)
	m.logger.Info("process restarted", "process", d.Name, "pid", h.PID(), "mode", d.Mode)
	return rec
}
