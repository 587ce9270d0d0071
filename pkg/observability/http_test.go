package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/autodealer/dealer_backend/pkg/reqctx"
)

func TestHTTPMiddleware(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	app := fiber.New()
	app.Use(httpMiddleware(tp.Tracer(tracerName), propagation.TraceContext{}, newInstruments(mp.Meter(meterName)), "dealer"))
	app.Get("/conversations/:id", func(c fiber.Ctx) error {
		if _, ok := reqctx.TraceFromContext(c.Context()); !ok {
			return fiber.ErrInternalServerError
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/boom", func(c fiber.Ctx) error {
		return fiber.ErrBadGateway
	})

	const parent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	req := httptest.NewRequest(http.MethodGet, "/conversations/42", nil)
	req.Header.Set("traceparent", parent)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get(HeaderTraceID); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace header = %q, want the incoming trace id", got)
	}

	if _, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil)); err != nil {
		t.Fatalf("request: %v", err)
	}

	ended := spans.Ended()
	if len(ended) != 2 {
		t.Fatalf("spans = %d, want 2", len(ended))
	}
	if ended[0].Name() != "GET /conversations/:id" {
		t.Errorf("span name = %q", ended[0].Name())
	}
	if ended[1].Status().Code != codes.Error {
		t.Errorf("failed request status = %v, want error", ended[1].Status())
	}

	got := collect(t, reader)
	reqs, ok := got["http_server_request_count"].(metricdata.Sum[int64])
	if !ok || len(reqs.DataPoints) != 2 {
		t.Errorf("request count = %#v", got["http_server_request_count"])
	}
}
