// Package metrics exposes Prometheus collectors for the heartbeat
// engine. Collectors are only useful in watch mode, where the process
// lives long enough to be scraped; one-shot cycles leave them
// unregistered and every helper no-ops.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	regOK atomic.Bool

	processRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostbeat",
			Subsystem: "monitor",
			Name:      "restarts_total",
			Help:      "Number of local process restarts performed.",
		}, []string{"process"},
	)
	peerProbes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostbeat",
			Subsystem: "heartbeat",
			Name:      "probes_total",
			Help:      "Peer probes by result (alive, dead, unreachable).",
		}, []string{"peer", "result"},
	)
	peerRemediations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostbeat",
			Subsystem: "heartbeat",
			Name:      "remediations_total",
			Help:      "Remote remediations triggered for dead peers.",
		}, []string{"peer"},
	)
	urlChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostbeat",
			Subsystem: "monitor",
			Name:      "url_checks_total",
			Help:      "Monitor URL checks by result (ok, dns_failed, unreachable, bad_status).",
		}, []string{"result"},
	)
	cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostbeat",
			Subsystem: "cycle",
			Name:      "runs_total",
			Help:      "Completed cycles by outcome (ok, skipped, error).",
		}, []string{"outcome"},
	)
	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hostbeat",
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Wall time of a full cycle.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers all collectors with r. Safe to call multiple
// times; calls after the first success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{processRestarts, peerProbes, peerRemediations, urlChecks, cycles, cycleDuration}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves Prometheus metrics for the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

func IncRestart(process string) {
	if regOK.Load() {
		processRestarts.WithLabelValues(process).Inc()
	}
}

func IncProbe(peer, result string) {
	if regOK.Load() {
		peerProbes.WithLabelValues(peer, result).Inc()
	}
}

func IncRemediation(peer string) {
	if regOK.Load() {
		peerRemediations.WithLabelValues(peer).Inc()
	}
}

func IncURLCheck(result string) {
	if regOK.Load() {
		urlChecks.WithLabelValues(result).Inc()
	}
}

func IncCycle(outcome string) {
	if regOK.Load() {
		cycles.WithLabelValues(outcome).Inc()
	}
}

func ObserveCycleDuration(seconds float64) {
	if regOK.Load() {
		cycleDuration.Observe(seconds)
	}
}
