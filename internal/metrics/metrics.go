package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "housetemps_queries_total",
			Help: "Total catalog queries executed against the backing store",
		},
		[]string{"query", "status"},
	)

	QueryLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "housetemps_query_latency_seconds",
			Help:    "Catalog query latency in seconds, including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	QueryRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "housetemps_query_retries_total",
			Help: "Total query attempts retried after a connection error",
		},
		[]string{"query"},
	)

	RefreshTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "housetemps_refresh_ticks_total",
			Help: "Total dashboard refresh ticks",
		},
	)

	PanelRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "housetemps_panel_refreshes_total",
			Help: "Total panel refreshes by outcome",
		},
		[]string{"panel", "status"},
	)

	PanelRefreshLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "housetemps_panel_refresh_latency_seconds",
			Help:    "Panel query, transform and render latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"panel"},
	)
)
