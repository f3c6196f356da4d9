package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsAutomationCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncDispatch("EMAIL", "delivered")
	metrics.IncDispatch("sms", "gateway_failed")
	metrics.ObserveGatewaySendDuration("sms", 120*time.Millisecond)
	metrics.IncInventoryAlert()
	metrics.IncInventoryDecrementError()
	metrics.IncSweepOutcome("sent")
	metrics.IncSweepOutcome("failed")
	metrics.IncSweepSkipped()
	metrics.ObserveSweepDuration(2 * time.Second)
	metrics.IncWorkerInFlight("sms")
	metrics.DecWorkerInFlight("sms")
	metrics.IncDeliveryRequeued("EMAIL")

	if got := testutil.ToFloat64(metrics.dispatchTotal.WithLabelValues("email", "delivered")); got != 1 {
		t.Fatalf("dispatch_total{email,delivered} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.dispatchTotal.WithLabelValues("sms", "gateway_failed")); got != 1 {
		t.Fatalf("dispatch_total{sms,gateway_failed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.inventoryAlertsTotal); got != 1 {
		t.Fatalf("inventory_low_stock_alerts_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.inventoryDecrementErrors); got != 1 {
		t.Fatalf("inventory_decrement_errors_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.sweepOutcomesTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("reminder_sweep_outcomes_total{failed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.sweepSkippedTotal); got != 1 {
		t.Fatalf("reminder_sweep_skipped_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.workerInflight.WithLabelValues("sms")); got != 0 {
		t.Fatalf("delivery_worker_inflight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.deliveryRequeuedTotal.WithLabelValues("email")); got != 1 {
		t.Fatalf("delivery_requeued_total = %v, want 1", got)
	}
}

func TestMetricsNilReceiverIsNoop(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncDispatch("sms", "delivered")
	metrics.IncInventoryAlert()
	metrics.IncSweepOutcome("sent")
	metrics.ObserveSweepDuration(time.Second)
	if metrics.Handler() == nil {
		t.Fatal("expected default handler for nil metrics")
	}
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
