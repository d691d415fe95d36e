// Package metrics exposes Prometheus collectors for sync activity.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobsheet",
			Subsystem: "sync",
			Name:      "operations_total",
			Help:      "Coordinator operations by kind and outcome.",
		}, []string{"op", "outcome"},
	)
	remoteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jobsheet",
			Subsystem: "remote",
			Name:      "request_duration_seconds",
			Help:      "Duration of remote read and overwrite calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"call"},
	)
	remoteErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobsheet",
			Subsystem: "remote",
			Name:      "errors_total",
			Help:      "Failed remote calls by error kind.",
		}, []string{"call", "kind"},
	)
	records = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jobsheet",
			Subsystem: "store",
			Name:      "records",
			Help:      "Records in the local collection.",
		},
	)
	online = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jobsheet",
			Subsystem: "connectivity",
			Name:      "online",
			Help:      "1 when the remote is considered reachable.",
		},
	)
	pending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jobsheet",
			Subsystem: "sync",
			Name:      "pending",
			Help:      "1 when local changes have not been confirmed remotely.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{operations, remoteDuration, remoteErrors, records, online, pending}
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

// Handler serves the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// HandlerFor serves g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Helpers below no-op until Register has been called.

func IncOperation(op, outcome string) {
	if regOK.Load() {
		operations.WithLabelValues(op, outcome).Inc()
	}
}

func ObserveRemote(call string, seconds float64) {
	if regOK.Load() {
		remoteDuration.WithLabelValues(call).Observe(seconds)
	}
}

func IncRemoteError(call, kind string) {
	if regOK.Load() {
		remoteErrors.WithLabelValues(call, kind).Inc()
	}
}

func SetRecords(n int) {
	if regOK.Load() {
		records.Set(float64(n))
	}
}

func SetOnline(v bool) {
	if regOK.Load() {
		online.Set(boolValue(v))
	}
}

func SetPending(v bool) {
	if regOK.Load() {
		pending.Set(boolValue(v))
	}
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
