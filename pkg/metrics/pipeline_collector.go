package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tabwerk/datapipe/internal/store"
	"go.uber.org/zap"
)

type pipelineStatsCollector struct {
	store         store.Store
	totalDatasets *prometheus.Desc
	totalFigures  *prometheus.Desc
	totalResults  *prometheus.Desc
	jobsByStatus  *prometheus.Desc
	databaseSize  *prometheus.Desc
}

// NewPipelineStatsCollector exposes row counts from the store as gauges,
// computed on scrape.
func NewPipelineStatsCollector(s store.Store) prometheus.Collector {
	fqName := func(name string) string {
		return fmt.Sprintf("%s_pipeline_%s", datapipe, name)
	}

	return &pipelineStatsCollector{
		store: s,
		totalDatasets: prometheus.NewDesc(
			fqName("datasets_total"),
			"Total number of datasets.",
			nil,
			prometheus.Labels{},
		),
		totalFigures: prometheus.NewDesc(
			fqName("figures_total"),
			"Total number of recorded figures.",
			nil,
			prometheus.Labels{},
		),
		totalResults: prometheus.NewDesc(
			fqName("analysis_results_total"),
			"Total number of analysis results.",
			nil,
			prometheus.Labels{},
		),
		jobsByStatus: prometheus.NewDesc(
			fqName("jobs_by_status"),
			"Processing jobs by current status.",
			[]string{"status"},
			prometheus.Labels{},
		),
		databaseSize: prometheus.NewDesc(
			fqName("database_size_bytes"),
			"Size of the database file on disk.",
			nil,
			prometheus.Labels{},
		),
	}
}

func (c *pipelineStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalDatasets
	ch <- c.totalFigures
	ch <- c.totalResults
	ch <- c.jobsByStatus
	ch <- c.databaseSize
}

// Collect implements Collector.
func (c *pipelineStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats, err := c.store.Statistics(context.Background())
	if err != nil {
		zap.S().Named("pipeline_collector").Errorf("failed to collect pipeline statistics: %s", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.totalDatasets, prometheus.GaugeValue, float64(stats.Datasets))
	ch <- prometheus.MustNewConstMetric(c.totalFigures, prometheus.GaugeValue, float64(stats.Figures))
	ch <- prometheus.MustNewConstMetric(c.totalResults, prometheus.GaugeValue, float64(stats.Results))

	for status, total := range stats.JobsByStatus {
		ch <- prometheus.MustNewConstMetric(c.jobsByStatus, prometheus.GaugeValue, float64(total), status)
	}
	ch <- prometheus.MustNewConstMetric(c.databaseSize, prometheus.GaugeValue, float64(stats.DatabaseSize))
}
