// Package metrics exposes Prometheus instrumentation for engine runs.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "corral"

// Run statuses beyond the engine's own successful/failed.
const StatusError = "error"

// Host outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeFailed      = "failed"
	OutcomeUnreachable = "unreachable"
)

// Recorder holds the collectors. A nil *Recorder is valid and records nothing.
type Recorder struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	hostResults *prometheus.CounterVec
	skipped     prometheus.Counter
	inventory   prometheus.Gauge
}

// New creates a Recorder and registers it on reg. A nil reg leaves the
// collectors unregistered, which is useful in tests.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Engine runs by kind and final status (successful, failed, error)",
			},
			[]string{"kind", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of engine runs",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"kind"},
		),
		hostResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "host_results_total",
				Help:      "Per-host results reported by the engine",
			},
			[]string{"outcome"},
		),
		skipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inventory_skipped_total",
				Help:      "Servers left out of a built inventory because of missing fields",
			},
		),
		inventory: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "inventory_hosts",
				Help:      "Hosts in the most recently built inventory",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(r.runs, r.duration, r.hostResults, r.skipped, r.inventory)
	}
	return r
}

// ObserveRun records one finished run.
func (r *Recorder) ObserveRun(kind, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(kind, status).Inc()
	r.duration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveHost records one per-host result.
func (r *Recorder) ObserveHost(outcome string) {
	if r == nil {
		return
	}
	r.hostResults.WithLabelValues(outcome).Inc()
}

// ObserveInventory records the size of a built inventory and how many
// servers were skipped.
func (r *Recorder) ObserveInventory(hosts, skipped int) {
	if r == nil {
		return
	}
	r.inventory.Set(float64(hosts))
	r.skipped.Add(float64(skipped))
}

// Handler returns an HTTP handler serving the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
