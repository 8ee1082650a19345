package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	grpcRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "code"},
	)

	grpcRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grpc_request_duration_seconds",
			Help:    "gRPC request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	seriesComputed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valuation_series_total",
			Help: "Valuation series computed, by path and outcome",
		},
		[]string{"path", "status"},
	)

	seriesDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "valuation_series_duration_seconds",
			Help:    "Valuation series computation time in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"path"},
	)

	seriesOmittedDates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valuation_omitted_dates_total",
			Help: "Dates left out of a series because of missing prices or zero value",
		},
		[]string{"path"},
	)

	replaySkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_replay_skipped_total",
			Help: "Events replayed without effect, by reason",
		},
		[]string{"reason"},
	)

	ledgerWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger write operations, by operation and outcome",
		},
		[]string{"operation", "status"},
	)
)

func init() {
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(httpRequestsTotal)
	registry.MustRegister(httpRequestDuration)
	registry.MustRegister(grpcRequestsTotal)
	registry.MustRegister(grpcRequestDuration)

	registry.MustRegister(seriesComputed)
	registry.MustRegister(seriesDuration)
	registry.MustRegister(seriesOmittedDates)
	registry.MustRegister(replaySkipped)
	registry.MustRegister(ledgerWrites)
}

// Registry returns the prometheus registry
func Registry() *prometheus.Registry {
	return registry
}

// Handler returns a Fiber handler for the /metrics endpoint
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}

// Middleware returns Fiber middleware that records HTTP metrics
func Middleware(skipPaths ...string) fiber.Handler {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}

	return func(c *fiber.Ctx) error {
		if skip[c.Path()] {
			return c.Next()
		}

		start := time.Now()
		if err := c.Next(); err != nil {
			// Render the error now so the recorded status is the one sent
			if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
				return herr
			}
		}

		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		httpRequestsTotal.WithLabelValues(c.Method(), path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())

		return nil
	}
}

// RecordGRPC records one unary gRPC call
func RecordGRPC(method, code string, duration time.Duration) {
	grpcRequestsTotal.WithLabelValues(method, code).Inc()
	grpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordSeries records a valuation series computation
func RecordSeries(path string, err error, omitted int, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	seriesComputed.WithLabelValues(path, status).Inc()
	seriesDuration.WithLabelValues(path).Observe(duration.Seconds())
	if omitted > 0 {
		seriesOmittedDates.WithLabelValues(path).Add(float64(omitted))
	}
}

// RecordReplaySkip counts an event that did not change holdings
func RecordReplaySkip(reason string) {
	replaySkipped.WithLabelValues(reason).Inc()
}

// RecordLedgerOperation records a ledger write use case outcome
func RecordLedgerOperation(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ledgerWrites.WithLabelValues(operation, status).Inc()
}
