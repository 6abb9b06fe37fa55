package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	InstrumentsScanned = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "instruments_scanned_total", Help: "Instruments evaluated across all scan cycles"},
	)
	SignalsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_emitted_total", Help: "Signals emitted by the evaluator"},
		[]string{"symbol", "direction"},
	)
	SignalsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_closed_total", Help: "Signals resolved by the tracker"},
		[]string{"symbol", "outcome"},
	)
	FetchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fetch_failures_total", Help: "Market data requests that exhausted their retries"},
		[]string{"kind"},
	)
	CycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "cycle_duration_seconds", Help: "Wall time per scan or tracking cycle"},
		[]string{"cycle"},
	)
)

func init() {
	prometheus.MustRegister(InstrumentsScanned, SignalsEmitted, SignalsClosed, FetchFailures, CycleDuration)
}

// Serve exposes /metrics on the given address in a background goroutine.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
