// Package urlcheck verifies that the monitored dashboard URL is still
// reachable: DNS resolution of its host first, then an HTTP GET that
// must return the expected status. A healthy check may additionally
// raise a periodic "still ok" ping, throttled to once per configured
// hour so a quiet fleet is still known to be quiet.
package urlcheck

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/hostbeat/internal/metrics"
)

// Defaults mirror a short probe: the URL check must never stall a cycle.
const (
	DefaultTimeout        = 3 * time.Second
	DefaultExpectedStatus = http.StatusOK
)

// Config tunes the URL check. An empty URL disables it.
type Config struct {
	URL            string
	ExpectedStatus int           // default 200
	Timeout        time.Duration // per-attempt deadline, default 3s
	OKNotifyHours  []int         // hours (0-23) when a healthy ping may fire; empty = every hour
	StateFile      string        // last-pinged-hour marker for the throttle
}

// State classifies one check.
type State string

const (
	OK          State = "ok"
	DNSFailed   State = "dns_failed"
	Unreachable State = "unreachable"
	BadStatus   State = "bad_status"
)

// Result is the outcome of one URL check.
type Result struct {
	URL        string `json:"url"`
	State      State  `json:"state"`
	StatusCode int    `json:"status_code,omitempty"`
	Reason     string `json:"reason,omitempty"`
	OKPing     bool   `json:"ok_ping,omitempty"` // healthy ping due this hour
}

// Checker runs the URL check for one cycle.
type Checker struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	// seams for tests
	lookup func(ctx context.Context, host string) ([]string, error)
	now    func() time.Time
}

func New(cfg Config, logger *slog.Logger) *Checker {
	if cfg.ExpectedStatus == 0 {
		cfg.ExpectedStatus = DefaultExpectedStatus
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.StateFile == "" {
		cfg.StateFile = filepath.Join(os.TempDir(), "hostbeat_ok_notify_hour")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		lookup: net.DefaultResolver.LookupHost,
		now:    time.Now,
	}
}

// Enabled reports whether a URL is configured at all.
func (c *Checker) Enabled() bool { return c != nil && c.cfg.URL != "" }

// Check resolves the URL's host, then fetches it. DNS failure short
// circuits: no HTTP attempt is made against an unresolvable name.
func (c *Checker) Check(ctx context.Context) Result {
	res := c.check(ctx)
	metrics.IncURLCheck(string(res.State))
	return res
}

func (c *Checker) check(ctx context.Context) Result {
	res := Result{URL: c.cfg.URL}

	host, err := hostOf(c.cfg.URL)
	if err != nil {
		res.State = DNSFailed
		res.Reason = err.Error()
		c.logger.Error("monitor url invalid", "url", c.cfg.URL, "err", err)
		return res
	}

	dnsCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	addrs, err := c.lookup(dnsCtx, host)
	if err != nil || len(addrs) == 0 {
		res.State = DNSFailed
		res.Reason = fmt.Sprintf("resolve %s: %v", host, err)
		c.logger.Error("monitor url dns resolution failed", "url", c.cfg.URL, "host", host, "err", err)
		return res
	}
	c.logger.Info("monitor url resolved", "url", c.cfg.URL, "host", host, "addr", addrs[0])

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		res.State = Unreachable
		res.Reason = err.Error()
		return res
	}
	resp, err := c.client.Do(req)
	if err != nil {
		res.State = Unreachable
		res.Reason = err.Error()
		c.logger.Error("monitor url unreachable", "url", c.cfg.URL, "err", err)
		return res
	}
	defer func() { _ = resp.Body.Close() }()

	res.StatusCode = resp.StatusCode
	if resp.StatusCode != c.cfg.ExpectedStatus {
		res.State = BadStatus
		res.Reason = fmt.Sprintf("status %d, want %d", resp.StatusCode, c.cfg.ExpectedStatus)
		c.logger.Warn("monitor url returned unexpected status", "url", c.cfg.URL, "status", resp.StatusCode)
		return res
	}

	res.State = OK
	res.OKPing = c.okPingDue()
	c.logger.Info("monitor url healthy", "url", c.cfg.URL, "status", resp.StatusCode)
	return res
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("no host in url %q", rawURL)
	}
	return u.Hostname(), nil
}

// okPingDue implements the once-per-hour healthy-ping throttle: the
// current hour must be in the configured window (empty window = any
// hour) and must differ from the hour recorded at the last ping.
func (c *Checker) okPingDue() bool {
	hour := c.now().Hour()
	if len(c.cfg.OKNotifyHours) > 0 && !containsHour(c.cfg.OKNotifyHours, hour) {
		return false
	}
	if b, err := os.ReadFile(c.cfg.StateFile); err == nil {
		if last, err := strconv.Atoi(strings.TrimSpace(string(b))); err == nil && last == hour {
			return false
		}
	}
	if err := os.WriteFile(c.cfg.StateFile, []byte(strconv.Itoa(hour)), 0o600); err != nil {
		c.logger.Warn("ok-ping state write failed", "path", c.cfg.StateFile, "err", err)
	}
	return true
}

func containsHour(hours []int, hour int) bool {
	for _, h := range hours {
		if h == hour {
			return true
		}
	}
	return false
}
