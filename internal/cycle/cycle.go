// Package cycle ties the guard, config tables, local monitor, heartbeat
// client, and notifier into one deterministic pass. The state machine
// is linear with no way back:
//
//	Guard -> LoadConfig -> LocalReconcile -> URLCheck -> RemoteHeartbeat -> Notify -> End
//
// The next cycle is a fresh process launched by the external scheduler;
// nothing here waits for it.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loykin/hostbeat/internal/config"
	"github.com/loykin/hostbeat/internal/guard"
	"github.com/loykin/hostbeat/internal/heartbeat"
	"github.com/loykin/hostbeat/internal/history"
	"github.com/loykin/hostbeat/internal/matcher"
	"github.com/loykin/hostbeat/internal/metrics"
	"github.com/loykin/hostbeat/internal/monitor"
	"github.com/loykin/hostbeat/internal/notify"
	"github.com/loykin/hostbeat/internal/urlcheck"
)

// Reconciler is the local process monitor seam.
type Reconciler interface {
	Reconcile(ctx context.Context, descs []monitor.Descriptor) []monitor.RestartRecord
}

// PeerChecker is the remote heartbeat seam.
type PeerChecker interface {
	Check(ctx context.Context, peers []heartbeat.Peer) []heartbeat.Result
}

// URLChecker is the dashboard URL check seam.
type URLChecker interface {
	Enabled() bool
	Check(ctx context.Context) urlcheck.Result
}

// Locker is the single-instance guard seam.
type Locker interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release()
}

// Notifier is the dispatcher seam.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Runner executes cycles. Build one with New for production wiring, or
// populate the fields directly in tests.
type Runner struct {
	Settings config.Settings
	Cycle    config.CycleContext
	Logger   *slog.Logger

	Guard     Locker
	Monitor   Reconciler
	URLCheck  URLChecker
	Heartbeat PeerChecker
	Notifier  Notifier
	History   history.Sink
}

// New wires a Runner from settings and the invocation context.
func New(settings config.Settings, cctx config.CycleContext, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	scanner := matcher.NewScanner(cctx.Origin)
	rlog := monitor.NewRestartLog(settings.Monitor.RestartLog)

	exec := &heartbeat.SSHExecutor{
		KeyFile:        settings.Heartbeat.KeyFile,
		ConnectTimeout: settings.Heartbeat.ConnectTimeout,
		CommandTimeout: settings.Heartbeat.CommandTimeout,
	}
	hb := heartbeat.NewClient(exec, heartbeat.Config{
		RemoteDir: settings.Heartbeat.RemoteDir,
		Workers:   settings.Heartbeat.Workers,
	}, cctx.Identity(), logger)

	uc := urlcheck.New(urlcheck.Config{
		URL:            settings.URLCheck.URL,
		ExpectedStatus: settings.URLCheck.ExpectedStatus,
		Timeout:        settings.URLCheck.Timeout,
		OKNotifyHours:  settings.URLCheck.OKNotifyHours,
		StateFile:      settings.URLCheck.StateFile,
	}, logger)

	sink, err := history.Open(settings.History)
	if err != nil {
		// History is an optional reporting layer; a broken backend must
		// not keep the engine from healing processes.
		logger.Warn("history disabled", "err", err)
		sink = nil
	}

	return &Runner{
		Settings:  settings,
		Cycle:     cctx,
		Logger:    logger,
		Guard:     guard.New(settings.Guard.LockFile, guard.DefaultStaleFactor*settings.Guard.Interval, logger),
		Monitor:   monitor.New(scanner, rlog, logger),
		URLCheck:  uc,
		Heartbeat: hb,
		Notifier:  notify.NewDispatcher(buildChannels(settings.Notify), settings.Notify.Timeout, logger),
		History:   sink,
	}, nil
}

func buildChannels(s config.NotifySettings) []notify.Channel {
	var chs []notify.Channel
	if s.Telegram.Token != "" && s.Telegram.ChatID != "" {
		chs = append(chs, &notify.Telegram{Token: s.Telegram.Token, ChatID: s.Telegram.ChatID})
	}
	if s.WeCom.WebhookURL != "" {
		chs = append(chs, &notify.WeCom{WebhookURL: s.WeCom.WebhookURL})
	}
	if s.PushPlus.Token != "" {
		chs = append(chs, &notify.PushPlus{Token: s.PushPlus.Token})
	}
	return chs
}

func (r *Runner) host() string {
	return fmt.Sprintf("%s@%s", r.Cycle.Username, r.Cycle.Hostname)
}

// Run performs one full cycle. A held guard returns a Skipped report
// and nil error (exit 0, zero side effects). Config errors are fatal
// and happen before any reconciliation.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	report := Report{Host: r.host(), StartedAt: time.Now()}

	ok, err := r.Guard.TryAcquire(ctx)
	if err != nil {
		metrics.IncCycle("error")
		return report, fmt.Errorf("cycle lock: %w", err)
	}
	if !ok {
		report.Skipped = true
		metrics.IncCycle("skipped")
		r.Logger.Info("another cycle is running, skipping", "origin", r.Cycle.Origin)
		return report, nil
	}
	defer r.Guard.Release()

	descs, err := config.LoadProcesses(r.Settings.Monitor.Processes)
	if err != nil {
		metrics.IncCycle("error")
		return report, err
	}
	peers, err := r.loadPeers()
	if err != nil {
		metrics.IncCycle("error")
		return report, err
	}

	r.Logger.Info("cycle start", "origin", r.Cycle.Origin, "processes", len(descs), "peers", len(peers))

	report.Restarts = r.Monitor.Reconcile(ctx, descs)
	if r.URLCheck != nil && r.URLCheck.Enabled() {
		res := r.URLCheck.Check(ctx)
		report.URL = &res
	}
	report.Peers = r.Heartbeat.Check(ctx, peers)
	report.Duration = time.Since(report.StartedAt)

	r.record(ctx, report)

	if report.HasTransitions() {
		r.Notifier.Notify(ctx, report.Summary())
	}

	metrics.IncCycle("ok")
	metrics.ObserveCycleDuration(report.Duration.Seconds())
	r.Logger.Info("cycle done", "duration", report.Duration.Round(time.Millisecond))
	return report, nil
}

// loadPeers treats a missing peer table as "no peers configured"; a
// host that only monitors itself should not need an empty file. A
// malformed table is still fatal.
func (r *Runner) loadPeers() ([]heartbeat.Peer, error) {
	peers, err := config.LoadPeers(r.Settings.Heartbeat.Peers)
	if errors.Is(err, config.ErrMissingFile) {
		r.Logger.Info("no peer table, skipping heartbeat pass", "path", r.Settings.Heartbeat.Peers)
		return nil, nil
	}
	return peers, err
}

// Probe answers the remote probe contract: it checks liveness of every
// configured descriptor without restarting anything. The returned slice
// names the dead descriptors.
func (r *Runner) Probe(ctx context.Context) (bool, []string, error) {
	descs, err := config.LoadProcesses(r.Settings.Monitor.Processes)
	if err != nil {
		return false, nil, err
	}
	scanner := matcher.NewScanner(r.Cycle.Origin)
	var dead []string
	for _, d := range descs {
		alive, err := matcher.AnyAlive(ctx, scanner, d.Pattern)
		if err != nil {
			return false, nil, err
		}
		if !alive {
			dead = append(dead, d.Name)
		}
	}
	return len(dead) == 0, dead, nil
}

// record writes outcomes to the history sink, best-effort.
func (r *Runner) record(ctx context.Context, report Report) {
	if r.History == nil {
		return
	}
	for _, rec := range report.Restarts {
		if rec.Outcome == monitor.OutcomeRunning {
			continue
		}
		e := history.Event{
			Kind:       history.EventRestart,
			OccurredAt: rec.Time,
			Host:       report.Host,
			Target:     rec.Name,
			Outcome:    string(rec.Outcome),
			Detail:     rec.Err,
		}
		if err := r.History.Record(ctx, e); err != nil {
			r.Logger.Warn("history write failed", "err", err)
		}
	}
	if u := report.URL; u != nil && u.State != urlcheck.OK {
		e := history.Event{
			Kind:       history.EventURL,
			OccurredAt: report.StartedAt,
			Host:       report.Host,
			Target:     u.URL,
			Outcome:    string(u.State),
			Detail:     u.Reason,
		}
		if err := r.History.Record(ctx, e); err != nil {
			r.Logger.Warn("history write failed", "err", err)
		}
	}
	for _, p := range report.Peers {
		detail := p.Reason
		if p.RemedErr != "" {
			detail = p.RemedErr
		}
		e := history.Event{
			Kind:       history.EventPeer,
			OccurredAt: report.StartedAt,
			Host:       report.Host,
			Target:     p.Peer.String(),
			Outcome:    string(p.State),
			Detail:     detail,
		}
		if err := r.History.Record(ctx, e); err != nil {
			r.Logger.Warn("history write failed", "err", err)
		}
	}
}

// Close releases long-lived resources (history connections).
func (r *Runner) Close() {
	if r.History != nil {
		_ = r.History.Close()
	}
}
