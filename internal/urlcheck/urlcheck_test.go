package urlcheck

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestChecker(t *testing.T, url string) *Checker {
	t.Helper()
	return New(Config{
		URL:       url,
		StateFile: filepath.Join(t.TempDir(), "ok_notify_hour"),
	}, nil)
}

func TestCheckHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestChecker(t, srv.URL)
	res := c.Check(context.Background())
	if res.State != OK || res.StatusCode != http.StatusOK {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !res.OKPing {
		t.Fatal("first healthy check of the hour should raise the ok ping")
	}
}

func TestCheckBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestChecker(t, srv.URL)
	res := c.Check(context.Background())
	if res.State != BadStatus || res.StatusCode != http.StatusBadGateway {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.OKPing {
		t.Fatal("failed check must not raise the ok ping")
	}
}

func TestCheckUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close() // refuse all further connections

	c := newTestChecker(t, url)
	res := c.Check(context.Background())
	if res.State != Unreachable || res.Reason == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestDNSFailureSkipsHTTP(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := newTestChecker(t, srv.URL)
	c.lookup = func(context.Context, string) ([]string, error) {
		return nil, errors.New("no such host")
	}
	res := c.Check(context.Background())
	if res.State != DNSFailed {
		t.Fatalf("unexpected result: %+v", res)
	}
	if hits.Load() != 0 {
		t.Fatal("no HTTP request should be made when DNS resolution fails")
	}
}

func TestCheckInvalidURL(t *testing.T) {
	c := newTestChecker(t, "not a url")
	if res := c.Check(context.Background()); res.State != DNSFailed {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestOKPingThrottledWithinHour(t *testing.T) {
	c := newTestChecker(t, "http://example.test")
	if !c.okPingDue() {
		t.Fatal("first ping of the hour should fire")
	}
	if c.okPingDue() {
		t.Fatal("second ping within the same hour must be throttled")
	}
}

func TestOKPingFiresAgainNextHour(t *testing.T) {
	c := newTestChecker(t, "http://example.test")
	base := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	if !c.okPingDue() {
		t.Fatal("ping at 09:00 should fire")
	}
	c.now = func() time.Time { return base.Add(time.Hour) }
	if !c.okPingDue() {
		t.Fatal("ping at 10:00 should fire again")
	}
}

func TestOKPingRespectsHourWindow(t *testing.T) {
	c := New(Config{
		URL:           "http://example.test",
		OKNotifyHours: []int{8, 20},
		StateFile:     filepath.Join(t.TempDir(), "ok_notify_hour"),
	}, nil)
	c.now = func() time.Time { return time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC) }
	if c.okPingDue() {
		t.Fatal("09:00 is outside the configured window")
	}
	c.now = func() time.Time { return time.Date(2026, 8, 30, 20, 0, 0, 0, time.UTC) }
	if !c.okPingDue() {
		t.Fatal("20:00 is inside the configured window")
	}
}

func TestEnabled(t *testing.T) {
	if New(Config{}, nil).Enabled() {
		t.Fatal("empty url must disable the check")
	}
	if !New(Config{URL: "https://dash.example.net"}, nil).Enabled() {
		t.Fatal("configured url must enable the check")
	}
}
