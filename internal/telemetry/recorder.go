// Package telemetry records pipeline metrics for batch runs. A run has no
// scrape endpoint, so metrics live on a private registry and are written to
// a node_exporter textfile at the end.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ltrank"

// Recorder collects stage metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	trainingRows  *prometheus.GaugeVec
	ndcg          *prometheus.GaugeVec
	dcg           *prometheus.GaugeVec
	cacheTotal    *prometheus.CounterVec
}

// NewRecorder builds a Recorder on its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of each pipeline stage in seconds",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
			},
			[]string{"stage"},
		),
		stageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_failures_total",
				Help:      "Pipeline stages that failed",
			},
			[]string{"stage"},
		),
		trainingRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "training_rows",
				Help:      "Rows used by a training stage",
			},
			[]string{"stage"},
		),
		ndcg: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ndcg",
				Help:      "Mean NDCG over query groups",
			},
			[]string{"split", "k"},
		),
		dcg: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dcg",
				Help:      "Mean DCG over query groups",
			},
			[]string{"split", "k"},
		),
		cacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fit_cache_total",
				Help:      "Fit cache hits and misses",
			},
			[]string{"result"}, // "hit" / "miss"
		),
	}
	r.registry.MustRegister(r.stageDuration, r.stageFailures, r.trainingRows, r.ndcg, r.dcg, r.cacheTotal)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) StageFailed(stage string) {
	if r == nil {
		return
	}
	r.stageFailures.WithLabelValues(stage).Inc()
}

func (r *Recorder) TrainingRows(stage string, rows int) {
	if r == nil {
		return
	}
	r.trainingRows.WithLabelValues(stage).Set(float64(rows))
}

// Metrics sets the DCG and NDCG gauges for one split; values[i] is the value at k=i+1.
func (r *Recorder) Metrics(split string, dcg, ndcg []float64) {
	if r == nil {
		return
	}
	for i, v := range dcg {
		r.dcg.WithLabelValues(split, strconv.Itoa(i+1)).Set(v)
	}
	for i, v := range ndcg {
		r.ndcg.WithLabelValues(split, strconv.Itoa(i+1)).Set(v)
	}
}

func (r *Recorder) CacheResult(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheTotal.WithLabelValues(result).Inc()
}

// WriteTextfile writes every collected metric in the Prometheus text format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
