package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loykin/hostbeat/internal/config"
	"github.com/loykin/hostbeat/internal/cycle"
	"github.com/loykin/hostbeat/internal/logger"
	"github.com/spf13/cobra"
)

// setup loads settings, invocation context, and the engine logger.
func setup(flags *GlobalFlags) (config.Settings, config.CycleContext, *slog.Logger, error) {
	settings, err := config.LoadSettings(flags.ConfigPath)
	if err != nil {
		return settings, config.CycleContext{}, nil, fmt.Errorf("load settings: %w", err)
	}
	cctx, err := config.ParseCycleContext(flags.Origin)
	if err != nil {
		return settings, cctx, nil, err
	}
	log, _ := logger.New(settings.Log)
	slog.SetDefault(log)
	return settings, cctx, log, nil
}

func createCycleCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run one monitoring cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, cctx, log, err := setup(flags)
			if err != nil {
				return err
			}
			runner, err := cycle.New(settings, cctx, log)
			if err != nil {
				return err
			}
			defer runner.Close()
			_, err = runner.Run(cmd.Context())
			return err
		},
	}
}

func createProbeCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check local process liveness without restarting anything",
		Long: "probe exits 0 when every configured process is alive and 1 otherwise.\n" +
			"Peers invoke it over SSH to assess this host during their heartbeat pass.",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, cctx, log, err := setup(flags)
			if err != nil {
				return err
			}
			runner, err := cycle.New(settings, cctx, log)
			if err != nil {
				return err
			}
			defer runner.Close()
			ok, dead, err := runner.Probe(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("dead processes: %s", strings.Join(dead, ", "))
			}
			fmt.Println("all processes alive")
			return nil
		},
	}
}

// parseEvery parses schedules of the form "@every <duration>".
func parseEvery(expr string) (time.Duration, error) {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "@every ") {
		return 0, fmt.Errorf("unsupported schedule: %s (only @every <duration> supported)", expr)
	}
	d, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(expr, "@every ")))
	if err != nil {
		return 0, fmt.Errorf("invalid @every duration: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("@every duration must be > 0")
	}
	return d, nil
}

func createWatchCommand(flags *GlobalFlags, watchFlags *WatchFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run cycles on an interval with a status/metrics endpoint",
		Long: "watch is for hosts that do allow a persistent process: it runs the same\n" +
			"cycle on a fixed interval, skipping ticks while a previous cycle is still\n" +
			"running, and serves /status, /healthz and /metrics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, err := parseEvery(watchFlags.Schedule)
			if err != nil {
				return err
			}
			settings, cctx, log, err := setup(flags)
			if err != nil {
				return err
			}
			return runWatch(cmd.Context(), settings, cctx, log, interval, watchFlags.Listen)
		},
	}
	cmd.Flags().StringVar(&watchFlags.Schedule, "schedule", "@every 5m", "cycle schedule (@every <duration>)")
	cmd.Flags().StringVar(&watchFlags.Listen, "listen", ":8707", "status/metrics listen address (empty to disable)")
	return cmd
}
