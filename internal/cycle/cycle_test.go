package cycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loykin/hostbeat/internal/config"
	"github.com/loykin/hostbeat/internal/heartbeat"
	"github.com/loykin/hostbeat/internal/history"
	"github.com/loykin/hostbeat/internal/monitor"
	"github.com/loykin/hostbeat/internal/urlcheck"
)

type fakeGuard struct {
	held     bool
	acquired int
	released int
}

func (g *fakeGuard) TryAcquire(context.Context) (bool, error) {
	g.acquired++
	return !g.held, nil
}

func (g *fakeGuard) Release() { g.released++ }

type fakeMonitor struct {
	calls   int
	records []monitor.RestartRecord
}

func (m *fakeMonitor) Reconcile(_ context.Context, _ []monitor.Descriptor) []monitor.RestartRecord {
	m.calls++
	return m.records
}

type fakeChecker struct {
	calls   int
	results []heartbeat.Result
}

func (c *fakeChecker) Check(_ context.Context, _ []heartbeat.Peer) []heartbeat.Result {
	c.calls++
	return c.results
}

type fakeURLChecker struct {
	enabled bool
	calls   int
	result  urlcheck.Result
}

func (u *fakeURLChecker) Enabled() bool { return u.enabled }

func (u *fakeURLChecker) Check(context.Context) urlcheck.Result {
	u.calls++
	return u.result
}

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) Notify(_ context.Context, message string) {
	n.messages = append(n.messages, message)
}

type fakeSink struct {
	events []history.Event
}

func (s *fakeSink) Record(_ context.Context, e history.Event) error {
	s.events = append(s.events, e)
	return nil
}

func (s *fakeSink) Close() error { return nil }

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testRunner(t *testing.T, dir string) (*Runner, *fakeGuard, *fakeMonitor, *fakeChecker, *fakeNotifier) {
	t.Helper()
	settings := config.DefaultSettings()
	settings.Monitor.Processes = writeFile(t, dir, "monitor.conf",
		"/srv/gogs|gogs|./gogs web|background\n")
	settings.Heartbeat.Peers = writeFile(t, dir, "heartbeat.conf",
		"s2.example.net|22|bob\n")
	g := &fakeGuard{}
	m := &fakeMonitor{}
	c := &fakeChecker{}
	n := &fakeNotifier{}
	r := &Runner{
		Settings:  settings,
		Cycle:     config.CycleContext{Type: "0", Username: "bob", Hostname: "s1", Port: 22, Origin: "0|bob|s1|22"},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Guard:     g,
		Monitor:   m,
		Heartbeat: c,
		Notifier:  n,
	}
	return r, g, m, c, n
}

func TestRunSkipsWhenGuardHeld(t *testing.T) {
	r, g, m, c, n := testRunner(t, t.TempDir())
	g.held = true

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !report.Skipped {
		t.Fatal("report should be marked skipped")
	}
	if m.calls != 0 || c.calls != 0 || len(n.messages) != 0 {
		t.Fatalf("skipped cycle had side effects: monitor=%d heartbeat=%d notify=%d",
			m.calls, c.calls, len(n.messages))
	}
	if g.released != 0 {
		t.Fatal("guard released without being acquired")
	}
}

func TestRunQuietCycleDoesNotNotify(t *testing.T) {
	r, g, m, c, n := testRunner(t, t.TempDir())
	m.records = []monitor.RestartRecord{{Name: "gogs", Outcome: monitor.OutcomeRunning}}
	c.results = []heartbeat.Result{{Peer: heartbeat.Peer{Hostname: "s2.example.net", Port: 22, Username: "bob"}, State: heartbeat.Alive}}

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Skipped {
		t.Fatal("cycle should not be skipped")
	}
	if len(n.messages) != 0 {
		t.Fatalf("all-quiet cycle notified: %v", n.messages)
	}
	if g.released != 1 {
		t.Fatalf("guard released %d times, want 1", g.released)
	}
}

func TestRunNotifiesOnTransitions(t *testing.T) {
	r, _, m, c, n := testRunner(t, t.TempDir())
	m.records = []monitor.RestartRecord{
		{Name: "gogs", Mode: monitor.Background, Outcome: monitor.OutcomeRestarted, Time: time.Now()},
	}
	c.results = []heartbeat.Result{
		{Peer: heartbeat.Peer{Hostname: "s2.example.net", Port: 22, Username: "bob"}, State: heartbeat.Dead, Remediated: true},
	}

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(n.messages) != 1 {
		t.Fatalf("want 1 notification, got %d", len(n.messages))
	}
	msg := n.messages[0]
	if !strings.Contains(msg, "restarted gogs") || !strings.Contains(msg, "remediation triggered") {
		t.Fatalf("unexpected summary: %q", msg)
	}
	if len(report.Restarts) != 1 || len(report.Peers) != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestRunMalformedProcessTableFailsBeforeReconcile(t *testing.T) {
	dir := t.TempDir()
	r, _, m, c, _ := testRunner(t, dir)
	r.Settings.Monitor.Processes = writeFile(t, dir, "bad.conf", "only|three|fields\n")

	_, err := r.Run(context.Background())
	if !errors.Is(err, config.ErrMalformedRecord) {
		t.Fatalf("want ErrMalformedRecord, got %v", err)
	}
	if m.calls != 0 || c.calls != 0 {
		t.Fatal("reconciliation ran despite config error")
	}
}

func TestRunMissingPeerTableIsTolerated(t *testing.T) {
	dir := t.TempDir()
	r, _, _, c, _ := testRunner(t, dir)
	r.Settings.Heartbeat.Peers = filepath.Join(dir, "absent.conf")

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("missing peer table should not fail the cycle: %v", err)
	}
	if c.calls != 1 {
		t.Fatalf("heartbeat pass ran %d times, want 1", c.calls)
	}
}

func TestRunURLCheckFailureNotifiesAndRecords(t *testing.T) {
	r, _, m, c, n := testRunner(t, t.TempDir())
	sink := &fakeSink{}
	r.History = sink
	u := &fakeURLChecker{enabled: true, result: urlcheck.Result{
		URL:    "https://dash.example.net",
		State:  urlcheck.DNSFailed,
		Reason: "resolve dash.example.net: no such host",
	}}
	r.URLCheck = u
	m.records = []monitor.RestartRecord{{Name: "gogs", Outcome: monitor.OutcomeRunning}}
	c.results = nil

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if u.calls != 1 {
		t.Fatalf("url check ran %d times, want 1", u.calls)
	}
	if report.URL == nil || report.URL.State != urlcheck.DNSFailed {
		t.Fatalf("report url = %+v", report.URL)
	}
	if len(n.messages) != 1 || !strings.Contains(n.messages[0], "dns resolution failed") {
		t.Fatalf("notifications = %v", n.messages)
	}
	if len(sink.events) != 1 || sink.events[0].Kind != history.EventURL || sink.events[0].Outcome != "dns_failed" {
		t.Fatalf("history events = %+v", sink.events)
	}
}

func TestRunDisabledURLCheckIsSkipped(t *testing.T) {
	r, _, _, _, n := testRunner(t, t.TempDir())
	u := &fakeURLChecker{enabled: false}
	r.URLCheck = u

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if u.calls != 0 {
		t.Fatalf("disabled url check ran %d times", u.calls)
	}
	if report.URL != nil || len(n.messages) != 0 {
		t.Fatalf("unexpected report/notifications: %+v %v", report.URL, n.messages)
	}
}

func TestRunRecordsHistorySkippingRunning(t *testing.T) {
	r, _, m, c, _ := testRunner(t, t.TempDir())
	sink := &fakeSink{}
	r.History = sink
	m.records = []monitor.RestartRecord{
		{Name: "gogs", Outcome: monitor.OutcomeRunning},
		{Name: "nezha", Outcome: monitor.OutcomeRestarted, Time: time.Now()},
	}
	c.results = []heartbeat.Result{
		{Peer: heartbeat.Peer{Hostname: "s2.example.net", Port: 22, Username: "bob"}, State: heartbeat.Unreachable, Reason: "timeout"},
	}

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.events) != 2 {
		t.Fatalf("want 2 history events, got %d: %+v", len(sink.events), sink.events)
	}
	if sink.events[0].Kind != history.EventRestart || sink.events[0].Target != "nezha" {
		t.Fatalf("restart event = %+v", sink.events[0])
	}
	if sink.events[1].Kind != history.EventPeer || sink.events[1].Detail != "timeout" {
		t.Fatalf("peer event = %+v", sink.events[1])
	}
}

func TestReportHasTransitions(t *testing.T) {
	quiet := Report{
		Restarts: []monitor.RestartRecord{{Outcome: monitor.OutcomeRunning}},
		Peers:    []heartbeat.Result{{State: heartbeat.Alive}},
	}
	if quiet.HasTransitions() {
		t.Fatal("all-quiet report flagged as transition")
	}
	if !(Report{Peers: []heartbeat.Result{{State: heartbeat.Unreachable}}}).HasTransitions() {
		t.Fatal("unreachable peer should count as transition")
	}
	if !(Report{Restarts: []monitor.RestartRecord{{Outcome: monitor.OutcomeFailed}}}).HasTransitions() {
		t.Fatal("failed restart should count as transition")
	}
	if (Report{URL: &urlcheck.Result{State: urlcheck.OK}}).HasTransitions() {
		t.Fatal("healthy url check without a due ping is quiet")
	}
	if !(Report{URL: &urlcheck.Result{State: urlcheck.BadStatus}}).HasTransitions() {
		t.Fatal("failed url check should count as transition")
	}
	if !(Report{URL: &urlcheck.Result{State: urlcheck.OK, OKPing: true}}).HasTransitions() {
		t.Fatal("due healthy ping should count as transition")
	}
}
