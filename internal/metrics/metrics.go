// Package metrics accounts for a load run in Prometheus form.
//
// A run is a short-lived batch process, so nothing is served over HTTP. When
// requested, the registry is written once at the end of the run as a
// node-exporter textfile.
//
// Provided metrics:
//
//	pgbulk_files_total{state="committed"|"rolled_back"}
//	pgbulk_rows_copied_total
//	pgbulk_file_duration_seconds
//	pgbulk_run_files{kind="total"|"processed"}
//	pgbulk_run_success
//	pgbulk_run_last_completion_timestamp_seconds
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// Recorder owns a private registry so concurrent tests never share state.
//
// Thread-Safety: Safe for concurrent use (prometheus collectors are).
type Recorder struct {
	registry *prometheus.Registry

	files        *prometheus.CounterVec
	rows         prometheus.Counter
	fileDuration prometheus.Histogram
	runFiles     *prometheus.GaugeVec
	runSuccess   prometheus.Gauge
	lastRun      prometheus.Gauge
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pgbulk_files_total",
			Help: "Files attempted, by final state.",
		}, []string{"state"}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pgbulk_rows_copied_total",
			Help: "Rows in committed files.",
		}),
		fileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pgbulk_file_duration_seconds",
			Help:    "Time from BEGIN to COMMIT or ROLLBACK of one file.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
		runFiles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pgbulk_run_files",
			Help: "Files listed for the run and files committed by it.",
		}, []string{"kind"}),
		runSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pgbulk_run_success",
			Help: "1 if every listed file was committed, 0 otherwise.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pgbulk_run_last_completion_timestamp_seconds",
			Help: "Unix time the run finished.",
		}),
	}

	r.registry.MustRegister(r.files, r.rows, r.fileDuration, r.runFiles, r.runSuccess, r.lastRun)
	return r
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// FileFinished records the outcome of one attempted file.
func (r *Recorder) FileFinished(result pgbulk.FileResult) {
	switch result.State {
	case pgbulk.FileStateCommitted:
		r.files.WithLabelValues("committed").Inc()
		r.rows.Add(float64(result.Rows))
	case pgbulk.FileStateRolledBack:
		r.files.WithLabelValues("rolled_back").Inc()
	default:
		return
	}
	r.fileDuration.Observe(result.Duration.Seconds())
}

// RunFinished records the run summary.
func (r *Recorder) RunFinished(run *pgbulk.Run) {
	r.runFiles.WithLabelValues("total").Set(float64(run.Total))
	r.runFiles.WithLabelValues("processed").Set(float64(run.Processed))
	if run.Complete() {
		r.runSuccess.Set(1)
	} else {
		r.runSuccess.Set(0)
	}
	r.lastRun.Set(float64(time.Now().Unix()))
}

// WriteTextfile writes the registry to path in the Prometheus text format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
