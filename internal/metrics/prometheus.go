package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scanner metrics
	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "levitas_scan_duration_seconds",
			Help:    "Liquidation eligibility scan duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
	)

	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "levitas_scans_total",
			Help: "Total number of eligibility scans",
		},
		[]string{"status"}, // status: success|error
	)

	LiquidatableVaults = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "levitas_liquidatable_vaults",
			Help: "Current number of liquidatable vaults per token",
		},
		[]string{"token"},
	)

	// Ledger metrics
	LiquidationsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "levitas_liquidations_recorded_total",
			Help: "Total number of liquidations recorded into the ledger",
		},
		[]string{"token"},
	)

	// HTTP metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "levitas_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "levitas_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(
		ScanDuration,
		ScansTotal,
		LiquidatableVaults,
		LiquidationsRecorded,
		HTTPRequests,
		HTTPDuration,
	)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
