package cycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/loykin/hostbeat/internal/heartbeat"
	"github.com/loykin/hostbeat/internal/monitor"
	"github.com/loykin/hostbeat/internal/urlcheck"
)

// Report summarizes one cycle for logs, notifications, and the
// watch-mode status endpoint.
type Report struct {
	Host      string                  `json:"host"`
	StartedAt time.Time               `json:"started_at"`
	Duration  time.Duration           `json:"duration"`
	Skipped   bool                    `json:"skipped"` // guard held by another cycle
	Restarts  []monitor.RestartRecord `json:"restarts,omitempty"`
	URL       *urlcheck.Result        `json:"url,omitempty"`
	Peers     []heartbeat.Result      `json:"peers,omitempty"`
}

// HasTransitions reports whether anything noteworthy happened: a local
// restart (or failed restart), a failed URL check (or a healthy ping
// falling due), a dead peer, or an unreachable peer. Notifications only
// fire on transitions, never for all-quiet cycles.
func (r Report) HasTransitions() bool {
	for _, rec := range r.Restarts {
		if rec.Outcome != monitor.OutcomeRunning {
			return true
		}
	}
	if r.URL != nil && (r.URL.State != urlcheck.OK || r.URL.OKPing) {
		return true
	}
	for _, p := range r.Peers {
		if p.State != heartbeat.Alive {
			return true
		}
	}
	return false
}

// Summary renders the human-readable notification body.
func (r Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "hostbeat cycle on %s\n", r.Host)
	for _, rec := range r.Restarts {
		switch rec.Outcome {
		case monitor.OutcomeRestarted:
			fmt.Fprintf(&b, "restarted %s (%s)\n", rec.Name, rec.Mode)
		case monitor.OutcomeFailed:
			fmt.Fprintf(&b, "restart of %s failed: %s\n", rec.Name, rec.Err)
		}
	}
	if u := r.URL; u != nil {
		switch u.State {
		case urlcheck.DNSFailed:
			fmt.Fprintf(&b, "monitor url %s dns resolution failed: %s\n", u.URL, u.Reason)
		case urlcheck.Unreachable:
			fmt.Fprintf(&b, "monitor url %s unreachable: %s\n", u.URL, u.Reason)
		case urlcheck.BadStatus:
			fmt.Fprintf(&b, "monitor url %s returned %s\n", u.URL, u.Reason)
		case urlcheck.OK:
			if u.OKPing {
				fmt.Fprintf(&b, "monitor url %s healthy (%d)\n", u.URL, u.StatusCode)
			}
		}
	}
	for _, p := range r.Peers {
		switch p.State {
		case heartbeat.Dead:
			if p.RemedErr != "" {
				fmt.Fprintf(&b, "peer %s dead, remediation failed: %s\n", p.Peer, p.RemedErr)
			} else {
				fmt.Fprintf(&b, "peer %s dead, remediation triggered\n", p.Peer)
			}
		case heartbeat.Unreachable:
			fmt.Fprintf(&b, "peer %s unreachable (%s)\n", p.Peer, p.Reason)
		}
	}
	fmt.Fprintf(&b, "took %s", r.Duration.Round(time.Millisecond))
	return b.String()
}
