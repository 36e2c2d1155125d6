// Package guard keeps cron-triggered cycles from piling up. A slow
// cycle makes later firings bail out immediately instead of stacking.
package guard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/loykin/hostbeat/internal/matcher"
)

// DefaultStaleFactor times the expected cycle interval gives the age at
// which an orphaned marker is considered abandoned.
const DefaultStaleFactor = 3

// marker is written next to the lock so a crashed holder can be
// identified: the kernel drops the flock on crash, but on some shared
// hosting filesystems advisory locks are unreliable, so the PID and
// timestamp give a second line of defense.
type marker struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

// Guard is the single-instance lock for one monitor type on one host.
type Guard struct {
	path     string
	staleAge time.Duration
	fl       *flock.Flock
	logger   *slog.Logger
}

// New builds a Guard over path. staleAge is the marker age beyond which
// an abandoned lock is reclaimed; zero disables reclaiming.
func New(path string, staleAge time.Duration, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{path: path, staleAge: staleAge, logger: logger}
}

// TryAcquire attempts the lock without blocking. false means another
// cycle is running and the caller must exit as a no-op. A stale marker
// (old enough and its PID gone) is reclaimed once.
func (g *Guard) TryAcquire(ctx context.Context) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(g.path), 0o750); err != nil {
		return false, err
	}
	ok, err := g.tryLock()
	if err != nil {
		return false, err
	}
	if ok {
		return true, g.writeMarker()
	}
	if !g.reclaimStale(ctx) {
		return false, nil
	}
	ok, err = g.tryLock()
	if err != nil || !ok {
		return ok, err
	}
	return true, g.writeMarker()
}

// Release unlocks and removes the marker. Safe to call when the lock
// was never acquired.
func (g *Guard) Release() {
	if g.fl == nil {
		return
	}
	_ = g.fl.Unlock()
	g.fl = nil
	_ = os.Remove(g.path)
}

func (g *Guard) tryLock() (bool, error) {
	fl := flock.New(g.path)
	ok, err := fl.TryLock()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	g.fl = fl
	return true, nil
}

func (g *Guard) writeMarker() error {
	b, err := json.Marshal(marker{PID: os.Getpid(), StartedAt: time.Now()})
	if err != nil {
		return err
	}
	return os.WriteFile(g.path, b, 0o600)
}

// reclaimStale checks the marker left by a previous holder. Reclaim
// only happens when the marker is older than the stale age AND the
// recorded PID no longer exists; a live holder, however slow, keeps
// the lock.
func (g *Guard) reclaimStale(ctx context.Context) bool {
	if g.staleAge <= 0 {
		return false
	}
	b, err := os.ReadFile(g.path)
	if err != nil {
		return false
	}
	var m marker
	if err := json.Unmarshal(b, &m); err != nil || m.PID == 0 {
		return false
	}
	if time.Since(m.StartedAt) < g.staleAge {
		return false
	}
	if matcher.PIDExists(ctx, int32(m.PID)) {
		return false
	}
	g.logger.Warn("reclaiming stale cycle lock", "path", g.path, "pid", m.PID, "age", time.Since(m.StartedAt).Round(time.Second))
	if err := os.Remove(g.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false
	}
	return true
}
