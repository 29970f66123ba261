// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// Collected values are pushed to a Pushgateway at Flush rather than exposed on
// a scrape endpoint, since pipeline runs are short-lived batch jobs. The job
// label is carried by the Pushgateway grouping key, not by each series.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"churn/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec
	stepDuration *prometheus.SummaryVec

	recordCounter *prometheus.CounterVec
	batchCounter  prometheus.Counter

	parityCounter     *prometheus.CounterVec
	featureRunCounter *prometheus.CounterVec
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often same as pipeline job).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "churn"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.StepTotal,
				Help: "Pipeline stage executions, partitioned by step and status.",
			},
			[]string{"step", "status"},
		),
		stepDuration: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       metrics.StepDuration,
				Help:       "Duration of pipeline stages in seconds, partitioned by step and status.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"step", "status"},
		),
		recordCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.RecordsTotal,
				Help: "Row counts per kind (raw, silver, gold, stored, etc.).",
			},
			[]string{"kind"},
		),
		batchCounter: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metrics.BatchesTotal,
				Help: "Storage batches flushed for this job.",
			},
		),
		parityCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.ParityTotal,
				Help: "Parity checks between transform paths, partitioned by status.",
			},
			[]string{"status"},
		),
		featureRunCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.FeatureRunTotal,
				Help: "Feature store publications, partitioned by status.",
			},
			[]string{"status"},
		),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":        b.stepCounter,
		"step summary":        b.stepDuration,
		"record counter":      b.recordCounter,
		"batch counter":       b.batchCounter,
		"parity counter":      b.parityCounter,
		"feature run counter": b.featureRunCounter,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter == nil {
			return
		}
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)

	case metrics.RecordsTotal:
		if b.recordCounter == nil {
			return
		}
		b.recordCounter.WithLabelValues(labels["kind"]).Add(delta)

	case metrics.BatchesTotal:
		if b.batchCounter == nil {
			return
		}
		b.batchCounter.Add(delta)

	case metrics.ParityTotal:
		if b.parityCounter == nil {
			return
		}
		b.parityCounter.WithLabelValues(labels["status"]).Add(delta)

	case metrics.FeatureRunTotal:
		if b.featureRunCounter == nil {
			return
		}
		b.featureRunCounter.WithLabelValues(labels["status"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
