package observability

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/autodealer/dealer_backend/pkg/reqctx"
)

const tracerName = "github.com/autodealer/dealer_backend/pkg/observability"

// HeaderTraceID echoes the server span's trace id so clients can quote it.
const HeaderTraceID = "X-Trace-Id"

// FiberMiddleware opens a server span per request, continues any incoming
// W3C trace context and records request metrics on Domain().
func FiberMiddleware(serviceName string) fiber.Handler {
	return httpMiddleware(otel.Tracer(tracerName), otel.GetTextMapPropagator(), Domain(), serviceName)
}

func httpMiddleware(tracer trace.Tracer, prop propagation.TextMapPropagator, inst *Instruments, serviceName string) fiber.Handler {
	return func(c fiber.Ctx) error {
		carrier := propagation.HeaderCarrier(c.GetReqHeaders())
		ctx := prop.Extract(c.Context(), carrier)

		method := c.Method()
		ctx, span := tracer.Start(ctx, method+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(method),
				semconv.URLPath(c.Path()),
				semconv.ServerAddress(c.Hostname()),
				semconv.ClientAddress(c.IP()),
				semconv.UserAgentOriginal(c.Get(fiber.HeaderUserAgent)),
				attribute.String("service.name", serviceName),
			),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.HasTraceID() {
			ctx = reqctx.WithTrace(ctx, &reqctx.TraceInfo{
				TraceID: sc.TraceID().String(),
				SpanID:  sc.SpanID().String(),
				Sampled: sc.IsSampled(),
			})
			c.Set(HeaderTraceID, sc.TraceID().String())
		}
		c.SetContext(ctx)

		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		// The matched route is only known after routing.
		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			// The app error handler writes the status after the chain unwinds.
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		span.SetName(method + " " + route)
		span.SetAttributes(semconv.HTTPRoute(route), semconv.HTTPResponseStatusCode(status))
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(status))
			if err != nil {
				span.RecordError(err)
			}
		}
		inst.HTTPRequest(ctx, method, route, status, elapsed)
		return err
	}
}
