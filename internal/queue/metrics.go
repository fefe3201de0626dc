package queue

import "github.com/prometheus/client_golang/prometheus"

// ProcessedTotal counts handled jobs grouped by outcome.
var ProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "queue_processed_total",
		Help: "Total jobs processed grouped by kind and outcome",
	},
	[]string{"kind", "status"},
)

func init() {
	prometheus.MustRegister(ProcessedTotal)
}
