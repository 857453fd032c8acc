package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for this service.
	Registry = prometheus.NewRegistry()

	// SolveDuration records wall-clock solver time by outcome.
	SolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "solve_duration_seconds", Help: "VRP solve duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"outcome"},
	)
	// SolveOutcomes counts solves by outcome: feasible, infeasible, timed_out.
	SolveOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "solve_outcomes_total", Help: "VRP solves by outcome."},
		[]string{"outcome"},
	)
	// MatrixCacheResults counts matrix cache hits and misses.
	MatrixCacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "matrix_cache_results_total", Help: "Distance matrix cache hits and misses."},
		[]string{"result"},
	)
	// RerouteEvents counts reroutes by the reason that triggered them.
	RerouteEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "reroute_events_total", Help: "Driver reroutes by reason."},
		[]string{"reason"},
	)
	// HTTPRequests counts requests by method, path, and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)
	// ActiveDriverSessions tracks the number of driver channels currently open.
	ActiveDriverSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "active_driver_sessions", Help: "Number of currently connected driver WebSocket channels."},
	)
)

var regOnce sync.Once

// RegisterDefault registers every collector exactly once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(SolveOutcomes)
		Registry.MustRegister(MatrixCacheResults)
		Registry.MustRegister(RerouteEvents)
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(ActiveDriverSessions)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
