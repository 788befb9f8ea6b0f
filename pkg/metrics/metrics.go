package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	datapipe = "datapipe"

	// Import metrics
	importsTotal = "imports_total"

	// Job metrics
	jobsTotal = "jobs_total"

	// Labels
	importFormatLabel = "format"
	importStatusLabel = "status"
	jobProcessorLabel = "processor"
	jobStatusLabel    = "status"
)

var importsTotalLabels = []string{
	importFormatLabel,
	importStatusLabel,
}

var jobsTotalLabels = []string{
	jobProcessorLabel,
	jobStatusLabel,
}

/**
* Metrics definition
**/
var importsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: datapipe,
		Name:      importsTotal,
		Help:      "number of dataset imports partitioned by format and outcome",
	},
	importsTotalLabels,
)

var jobsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: datapipe,
		Name:      jobsTotal,
		Help:      "number of processing jobs partitioned by processor and status reached",
	},
	jobsTotalLabels,
)

func IncreaseImportsTotalMetric(format string, status string) {
	labels := prometheus.Labels{
		importFormatLabel: format,
		importStatusLabel: status,
	}
	importsTotalMetric.With(labels).Inc()
}

func IncreaseJobsTotalMetric(processor string, status string) {
	labels := prometheus.Labels{
		jobProcessorLabel: processor,
		jobStatusLabel:    status,
	}
	jobsTotalMetric.With(labels).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(importsTotalMetric)
	prometheus.MustRegister(jobsTotalMetric)
}
