package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Chunk metrics
	ChunksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "integrid_chunks_total",
			Help: "Number of chunks by state",
		},
		[]string{"state"},
	)

	ChunksReclaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "integrid_chunks_reclaimed_total",
			Help: "Total number of chunk assignments reclaimed by the watchdog",
		},
	)

	// Result metrics
	ResultsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "integrid_results_accepted_total",
			Help: "Total number of partial results folded into the accumulator",
		},
	)

	ResultsDiscarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "integrid_results_discarded_total",
			Help: "Total number of stale or duplicate partial results discarded",
		},
	)

	// Datagram metrics
	DatagramsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integrid_datagrams_received_total",
			Help: "Total number of well-formed datagrams received by verb",
		},
		[]string{"verb"},
	)

	DatagramsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integrid_datagrams_dropped_total",
			Help: "Total number of datagrams dropped by reason",
		},
		[]string{"reason"},
	)

	RepliesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integrid_replies_sent_total",
			Help: "Total number of replies sent by verb",
		},
		[]string{"verb"},
	)

	// Worker metrics
	ComputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "integrid_compute_duration_seconds",
			Help:    "Time spent computing one chunk in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Drop reasons for DatagramsDropped.
const (
	DropReasonDecode      = "decode"
	DropReasonUnknownVerb = "unknown_verb"
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ChunksTotal)
	prometheus.MustRegister(ChunksReclaimed)
	prometheus.MustRegister(ResultsAccepted)
	prometheus.MustRegister(ResultsDiscarded)
	prometheus.MustRegister(DatagramsReceived)
	prometheus.MustRegister(DatagramsDropped)
	prometheus.MustRegister(RepliesSent)
	prometheus.MustRegister(ComputeDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
