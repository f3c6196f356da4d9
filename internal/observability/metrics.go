package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "careops"

// Metrics stores Prometheus collectors used by the automation engine.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec
	dispatchTotal            *prometheus.CounterVec
	gatewaySendDuration      *prometheus.HistogramVec
	inventoryAlertsTotal     prometheus.Counter
	inventoryDecrementErrors prometheus.Counter
	sweepOutcomesTotal       *prometheus.CounterVec
	sweepSkippedTotal        prometheus.Counter
	sweepDuration            prometheus.Histogram
	workerInflight           *prometheus.GaugeVec
	deliveryRequeuedTotal    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		dispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "dispatch_total",
				Help:      "Total number of dispatch attempts by message type and result status.",
			},
			[]string{"type", "status"},
		),
		gatewaySendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "gateway_send_duration_seconds",
				Help:      "Messaging gateway call duration in seconds grouped by message type.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"type"},
		),
		inventoryAlertsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "inventory_low_stock_alerts_total",
				Help:      "Total number of low-stock alerts raised by booking side effects.",
			},
		),
		inventoryDecrementErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "inventory_decrement_errors_total",
				Help:      "Total number of inventory lines that could not be decremented.",
			},
		),
		sweepOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reminder_sweep_outcomes_total",
				Help:      "Total number of reminder outcomes by status.",
			},
			[]string{"status"},
		),
		sweepSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reminder_sweep_skipped_total",
				Help:      "Total number of bookings skipped by the reminder sweep (missing or paused lead).",
			},
		),
		sweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "reminder_sweep_duration_seconds",
				Help:      "Reminder sweep run duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "delivery_worker_inflight",
				Help:      "Current number of in-flight deliveries grouped by channel.",
			},
			[]string{"channel"},
		),
		deliveryRequeuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "delivery_requeued_total",
				Help:      "Total number of queued deliveries returned to the queue after a transient failure.",
			},
			[]string{"channel"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.dispatchTotal,
		m.gatewaySendDuration,
		m.inventoryAlertsTotal,
		m.inventoryDecrementErrors,
		m.sweepOutcomesTotal,
		m.sweepSkippedTotal,
		m.sweepDuration,
		m.workerInflight,
		m.deliveryRequeuedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncDispatch(messageType string, status string) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(normalizeLabel(messageType), normalizeLabel(status)).Inc()
}

func (m *Metrics) ObserveGatewaySendDuration(messageType string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.gatewaySendDuration.WithLabelValues(normalizeLabel(messageType)).Observe(seconds)
}

func (m *Metrics) IncInventoryAlert() {
	if m == nil {
		return
	}
	m.inventoryAlertsTotal.Inc()
}

func (m *Metrics) IncInventoryDecrementError() {
	if m == nil {
		return
	}
	m.inventoryDecrementErrors.Inc()
}

func (m *Metrics) IncSweepOutcome(status string) {
	if m == nil {
		return
	}
	m.sweepOutcomesTotal.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *Metrics) IncSweepSkipped() {
	if m == nil {
		return
	}
	m.sweepSkippedTotal.Inc()
}

func (m *Metrics) ObserveSweepDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(max(duration.Seconds(), 0))
}

func (m *Metrics) IncWorkerInFlight(channel string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *Metrics) DecWorkerInFlight(channel string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(channel)).Dec()
}

func (m *Metrics) IncDeliveryRequeued(channel string) {
	if m == nil {
		return
	}
	m.deliveryRequeuedTotal.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
