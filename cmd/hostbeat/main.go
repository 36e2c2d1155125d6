package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string // TOML settings file
	Origin     string // TYPE|USER|HOSTNAME|PORT invocation marker
}

// WatchFlags holds flags specific to the watch command.
type WatchFlags struct {
	Schedule string // "@every <duration>"
	Listen   string // status/metrics listen address, empty disables
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	watchFlags := &WatchFlags{}

	root := &cobra.Command{
		Use:   "hostbeat",
		Short: "Keep a fleet of unprivileged hosts' processes alive via cron-driven cycles",
		Long: "hostbeat restarts dead local processes and probes peer hosts over SSH,\n" +
			"healing the fleet one idempotent cycle at a time. It is designed to be\n" +
			"re-invoked from cron; a cycle runs, makes progress, and exits.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "hostbeat.toml", "settings file (TOML)")
	root.PersistentFlags().StringVar(&globalFlags.Origin, "origin", "", "origin marker TYPE|USER|HOSTNAME|PORT (default: local identity)")

	root.AddCommand(
		createCycleCommand(globalFlags),
		createProbeCommand(globalFlags),
		createWatchCommand(globalFlags, watchFlags),
	)
	return root
}
