// Package metrics provides the monitoring sink of a tabula run using
// Prometheus metrics. Each run owns a Collector backed by a private registry
// so that repeated runs in one process (and tests) never collide on
// registration.
//
// # Overview
//
// The package provides:
//   - Row, prediction and unknown-category counters
//   - Per-epoch training and validation loss/MAE gauges
//   - Stage duration histograms for read, fit, persist, predict and write
//   - Resident memory of the process sampled at stage boundaries
//   - The wall time of the run, set when the textfile is written
//   - A textfile sink for the node_exporter textfile collector
//
// # Basic Usage
//
//	collector := metrics.NewCollector()
//	collector.RowsRead("train").Inc()
//
//	start := time.Now()
//	fit()
//	collector.ObserveStage("train", "fit", time.Since(start))
//
//	if err := collector.WriteTextfile("run.prom"); err != nil {
//	    return err
//	}
//
// # Metric Types
//
// Counter: Monotonically increasing values (e.g., rows read)
// Gauge: Values that can go up or down (e.g., last epoch loss)
// Histogram: Distribution of values (e.g., stage durations)
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"
)

const namespace = "tabula"

// Split labels for epoch gauges.
const (
	SplitTrain      = "train"
	SplitValidation = "validation"
)

// Collector holds the metrics of a single run.
// All methods are safe for concurrent use.
type Collector struct {
	registry       *prometheus.Registry
	rowsRead       *prometheus.CounterVec   // rows consumed from a dataset
	unknownSymbols *prometheus.CounterVec   // categorical symbols outside the domain
	predictions    prometheus.Counter       // rows written to the prediction table
	epochLoss      *prometheus.GaugeVec     // MSE of the latest epoch
	epochMAE       *prometheus.GaugeVec     // MAE of the latest epoch
	epochs         prometheus.Counter       // completed epochs
	stageDuration  *prometheus.HistogramVec // wall time per pipeline stage
	processRSS     *prometheus.GaugeVec
	runDuration    prometheus.Gauge
	startTime      time.Time
}

// NewCollector creates a collector registered on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		rowsRead: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_read_total",
				Help:      "Total number of dataset rows read",
			},
			[]string{"pipeline"},
		),
		unknownSymbols: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unknown_categories_total",
				Help:      "Categorical values outside the trained domain, encoded as all-zero",
			},
			[]string{"column"},
		),
		predictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Total number of predictions produced",
			},
		),
		epochLoss: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "epoch_loss",
				Help:      "Mean squared error of the most recent epoch",
			},
			[]string{"split"},
		),
		epochMAE: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "epoch_mae",
				Help:      "Mean absolute error of the most recent epoch",
			},
			[]string{"split"},
		),
		epochs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "epochs_total",
				Help:      "Total number of completed training epochs",
			},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets: []float64{
					0.001, // 1ms - tiny fixtures
					0.01,  // 10ms
					0.1,   // 100ms
					1,     // 1s - typical dataset read
					10,    // 10s - typical fit
					60,    // 1m
					600,   // 10m - large fits
				},
			},
			[]string{"pipeline", "stage"},
		),
		processRSS: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "process_rss_bytes",
				Help:      "Resident set size of the process when a stage finished",
			},
			[]string{"pipeline", "stage"},
		),
		runDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time from collector creation to the last textfile write",
			},
		),
		startTime: time.Now(),
	}

	c.registry.MustRegister(
		c.rowsRead,
		c.unknownSymbols,
		c.predictions,
		c.epochLoss,
		c.epochMAE,
		c.epochs,
		c.stageDuration,
		c.processRSS,
		c.runDuration,
	)
	return c
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RowsRead returns the row counter of a pipeline.
func (c *Collector) RowsRead(pipeline string) prometheus.Counter {
	return c.rowsRead.WithLabelValues(pipeline)
}

// UnknownCategory counts one out-of-domain value of column.
func (c *Collector) UnknownCategory(column string) {
	c.unknownSymbols.WithLabelValues(column).Inc()
}

// Predictions returns the prediction counter.
func (c *Collector) Predictions() prometheus.Counter {
	return c.predictions
}

// RecordEpoch sets the loss gauges of split to the values of a finished epoch.
func (c *Collector) RecordEpoch(split string, loss, mae float64) {
	c.epochLoss.WithLabelValues(split).Set(loss)
	c.epochMAE.WithLabelValues(split).Set(mae)
	if split == SplitTrain {
		c.epochs.Inc()
	}
}

// ObserveStage records the duration of a pipeline stage.
func (c *Collector) ObserveStage(pipeline, stage string, d time.Duration) {
	c.stageDuration.WithLabelValues(pipeline, stage).Observe(d.Seconds())
}

// SampleMemory records the resident set size of the current process after
// stage and returns it.
func (c *Collector) SampleMemory(pipeline, stage string) (uint64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, fmt.Errorf("failed to inspect process: %w", err)
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return 0, fmt.Errorf("failed to read process memory: %w", err)
	}
	c.processRSS.WithLabelValues(pipeline, stage).Set(float64(info.RSS))
	return info.RSS, nil
}

// WriteTextfile writes the current metric values in the Prometheus text
// format. The file is written atomically.
func (c *Collector) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	c.runDuration.Set(time.Since(c.startTime).Seconds())
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
