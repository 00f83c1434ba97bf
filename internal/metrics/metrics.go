// Package metrics exposes Prometheus instrumentation for the crawl and
// pipeline paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Ryder-MHumble/deanagent/internal/crawler"
)

var (
	crawlRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deanagent_crawl_runs_total",
		Help: "Crawl runs by source and final status.",
	}, []string{"source_id", "status"})

	crawlItemsNew = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deanagent_crawl_items_new_total",
		Help: "New items discovered per source.",
	}, []string{"source_id"})

	crawlDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deanagent_crawl_duration_seconds",
		Help:    "Crawl run durations.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"source_id"})

	pipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deanagent_pipeline_runs_total",
		Help: "Pipeline runs by overall status.",
	}, []string{"status"})
)

// RecordCrawl records one finished crawl run.
func RecordCrawl(result *crawler.Result) {
	if result == nil {
		return
	}
	crawlRuns.WithLabelValues(result.SourceID, string(result.Status)).Inc()
	crawlItemsNew.WithLabelValues(result.SourceID).Add(float64(result.ItemsNew))
	crawlDuration.WithLabelValues(result.SourceID).Observe(result.DurationSeconds)
}

// RecordPipeline records one finished pipeline run.
func RecordPipeline(status string) {
	pipelineRuns.WithLabelValues(status).Inc()
}
