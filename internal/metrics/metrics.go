// Package metrics records scheduling run statistics in Prometheus form.
//
// Metrics live on a private registry so that batch runs and tests never
// collide with one another; the registry is exported with WriteTextfile
// for the node-exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/joshharrison/rcsched/internal/schedule"
)

const namespace = "rcsched"

// Recorder holds the run metrics. All methods are safe for concurrent use.
type Recorder struct {
	reg *prometheus.Registry

	// RunsTotal counts runs by engine and status.
	RunsTotal *prometheus.CounterVec
	// ErrorsTotal counts runs that failed before scheduling (malformed input).
	ErrorsTotal *prometheus.CounterVec
	// Iterations observes outer search loop iterations per run.
	Iterations *prometheus.HistogramVec
	// Latency observes the final schedule latency in cycles.
	Latency *prometheus.HistogramVec
	// Units observes the total functional units used.
	Units *prometheus.HistogramVec
	// Overruns counts operations started after their latest start.
	Overruns *prometheus.CounterVec
	// Duration observes wall time per run.
	Duration *prometheus.HistogramVec
}

// New creates a Recorder on its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Scheduling runs by engine and final status",
		}, []string{"engine", "status"}),
		ErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Runs rejected before scheduling, by stage",
		}, []string{"stage"}),
		Iterations: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_iterations",
			Help:      "Outer search iterations per run",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200},
		}, []string{"engine"}),
		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "schedule_latency_cycles",
			Help:      "Final schedule latency in cycles",
			Buckets:   prometheus.ExponentialBuckets(2, 2, 10),
		}, []string{"engine"}),
		Units: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "functional_units",
			Help:      "Functional unit instances used per run",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}, []string{"engine"}),
		Overruns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deadline_overruns_total",
			Help:      "Operations scheduled after their latest start",
		}, []string{"engine"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time per scheduling run",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"engine"}),
	}
}

// Registry returns the registry the metrics are registered on.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// ObserveResult records one completed run.
func (r *Recorder) ObserveResult(res *schedule.Result, elapsed time.Duration) {
	engine := string(res.Engine)
	r.RunsTotal.WithLabelValues(engine, string(res.Status)).Inc()
	r.Iterations.WithLabelValues(engine).Observe(float64(res.Iterations))
	r.Duration.WithLabelValues(engine).Observe(elapsed.Seconds())
	if len(res.Overruns) > 0 {
		r.Overruns.WithLabelValues(engine).Add(float64(len(res.Overruns)))
	}
	if res.Start == nil {
		return
	}
	r.Latency.WithLabelValues(engine).Observe(float64(res.Latency))
	r.Units.WithLabelValues(engine).Observe(float64(res.TotalUnits()))
}

// ObserveError records a run rejected at stage (parse, library, schedule).
func (r *Recorder) ObserveError(stage string) {
	r.ErrorsTotal.WithLabelValues(stage).Inc()
}

// WriteTextfile writes every metric in text exposition format to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
