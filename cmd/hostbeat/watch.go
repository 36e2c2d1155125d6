package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/loykin/hostbeat/internal/config"
	"github.com/loykin/hostbeat/internal/cycle"
	"github.com/loykin/hostbeat/internal/metrics"
	"github.com/loykin/hostbeat/internal/server"
	"github.com/prometheus/client_golang/prometheus"
)

// runWatch loops the cycle on a fixed interval. Ticks are skipped while
// a previous cycle is still running, mirroring what cron plus the guard
// do for one-shot invocations.
func runWatch(ctx context.Context, settings config.Settings, cctx config.CycleContext, log *slog.Logger, interval time.Duration, listen string) error {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	runner, err := cycle.New(settings, cctx, log)
	if err != nil {
		return err
	}
	defer runner.Close()

	router := server.NewRouter()
	if listen != "" {
		srv := server.NewServer(listen, router)
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()
		log.Info("status server listening", "addr", listen)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var running atomic.Bool
	runOnce := func() {
		if !running.CompareAndSwap(false, true) {
			log.Warn("previous cycle still running, skipping tick")
			return
		}
		defer running.Store(false)
		report, err := runner.Run(ctx)
		if err != nil {
			log.Error("cycle failed", "err", err)
			return
		}
		router.SetReport(report)
	}

	go runOnce()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("watch stopping")
			// Let an in-flight cycle finish; cycles are short-bounded by
			// the probe timeouts.
			for running.Load() {
				time.Sleep(50 * time.Millisecond)
			}
			return nil
		case <-ticker.C:
			go runOnce()
		}
	}
}
