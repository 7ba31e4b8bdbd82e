// Package metrics provides Prometheus metrics for matching runs. A CLI run is
// short-lived, so metrics are written to a node_exporter textfile instead of
// being scraped.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bom-matcher/internal/model"
)

const namespace = "bommatch"

// Collector owns a private registry so tests and concurrent runs never share
// global state.
type Collector struct {
	registry *prometheus.Registry

	// MatchesTotal counts match records by source and outcome.
	MatchesTotal *prometheus.CounterVec
	// MatchConfidence tracks the distribution of confidence scores.
	MatchConfidence prometheus.Histogram
	// KnowledgeErrorsTotal counts soft knowledge base failures by operation.
	KnowledgeErrorsTotal *prometheus.CounterVec
	// StageDuration tracks pipeline stage duration in seconds.
	StageDuration *prometheus.HistogramVec
	// StageFailuresTotal counts fatal stage failures.
	StageFailuresTotal *prometheus.CounterVec
	// LLMRequestsTotal counts LLM calls by stage and status.
	LLMRequestsTotal *prometheus.CounterVec
}

// New creates a Collector with all metrics registered.
func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		MatchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "matcher",
				Name:      "matches_total",
				Help:      "Total number of match records by source and whether a supplier item was matched",
			},
			[]string{"source", "matched"},
		),
		MatchConfidence: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "matcher",
				Name:      "confidence",
				Help:      "Distribution of match confidence scores",
				Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			},
		),
		KnowledgeErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "knowledge",
				Name:      "errors_total",
				Help:      "Total number of knowledge base failures that degraded to fresh scoring",
			},
			[]string{"op"},
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		StageFailuresTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_failures_total",
				Help:      "Total number of fatal stage failures",
			},
			[]string{"stage"},
		),
		LLMRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "requests_total",
				Help:      "Total number of LLM requests by stage and status",
			},
			[]string{"stage", "status"},
		),
	}
}

// ObserveMatch records one match record.
func (c *Collector) ObserveMatch(rec model.MatchRecord) {
	c.MatchesTotal.WithLabelValues(string(rec.MatchSource), strconv.FormatBool(rec.Matched())).Inc()
	c.MatchConfidence.Observe(rec.ConfidenceScore)
}

// ObserveKnowledgeError records a soft knowledge base failure.
func (c *Collector) ObserveKnowledgeError(op string) {
	c.KnowledgeErrorsTotal.WithLabelValues(op).Inc()
}

// ObserveStage records how long a stage took.
func (c *Collector) ObserveStage(stage model.Stage, d time.Duration) {
	c.StageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// ObserveStageFailure records a fatal stage failure.
func (c *Collector) ObserveStageFailure(stage model.Stage) {
	c.StageFailuresTotal.WithLabelValues(string(stage)).Inc()
}

// ObserveLLMRequest records an LLM call outcome.
func (c *Collector) ObserveLLMRequest(stage model.Stage, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.LLMRequestsTotal.WithLabelValues(string(stage), status).Inc()
}

// Gatherer exposes the registry.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

// WriteTextfile writes all metrics in the text exposition format. The write
// is atomic so node_exporter never reads a partial file.
func (c *Collector) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return eris.Wrapf(err, "metrics: write textfile %s", path)
	}
	return nil
}
