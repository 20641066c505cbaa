package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// filingsProcessed counts pipeline runs by outcome status
	filingsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finstat_filings_processed_total",
		Help: "Total filings run through the pipeline by result",
	}, []string{"result"})

	// derivationDuration tracks report derivation latency
	derivationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "finstat_derivation_duration_seconds",
		Help:    "Report derivation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
	})

	// factsParsed tracks the number of facts kept per parsed filing
	factsParsed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "finstat_facts_parsed",
		Help:    "Number of facts kept per parsed filing",
		Buckets: []float64{10, 50, 100, 500, 1000, 2000, 5000},
	})
)
