package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/autodealer/dealer_backend"

// Instruments are the conversation-level metrics. They bind to the global
// meter provider and record nothing until InitTelemetry installs one.
type Instruments struct {
	messages      metric.Int64Counter
	negotiations  metric.Int64Counter
	agentLatency  metric.Float64Histogram
	sockets       metric.Int64UpDownCounter
	droppedFrames metric.Int64Counter
	httpRequests  metric.Int64Counter
	httpDuration  metric.Float64Histogram
}

var (
	instOnce sync.Once
	inst     *Instruments
)

// Domain returns the process-wide instruments.
func Domain() *Instruments {
	instOnce.Do(func() {
		inst = newInstruments(otel.Meter(meterName))
	})
	return inst
}

func newInstruments(m metric.Meter) *Instruments {
	i := &Instruments{}
	var errs [7]error
	i.messages, errs[0] = m.Int64Counter("conversation_messages_total",
		metric.WithDescription("Messages appended, by sender kind"))
	i.negotiations, errs[1] = m.Int64Counter("negotiation_turns_total",
		metric.WithDescription("Negotiation turns by outcome"))
	i.agentLatency, errs[2] = m.Float64Histogram("negotiation_agent_duration_ms",
		metric.WithDescription("Negotiation agent call latency"),
		metric.WithUnit("ms"))
	i.sockets, errs[3] = m.Int64UpDownCounter("realtime_connections",
		metric.WithDescription("Open websocket connections"))
	i.droppedFrames, errs[4] = m.Int64Counter("realtime_dropped_frames_total",
		metric.WithDescription("Frames dropped for slow socket clients"))
	i.httpRequests, errs[5] = m.Int64Counter("http_server_request_count",
		metric.WithDescription("HTTP requests served"),
		metric.WithUnit("{request}"))
	i.httpDuration, errs[6] = m.Float64Histogram("http_server_request_duration_ms",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"))
	for _, err := range errs {
		if err != nil {
			slog.Warn("observability: instrument unavailable", "error", err)
		}
	}
	return i
}

func (i *Instruments) MessageAppended(ctx context.Context, sender string) {
	if i.messages != nil {
		i.messages.Add(ctx, 1, metric.WithAttributes(attribute.String("sender", sender)))
	}
}

// NegotiationTurn records one agent call. outcome is "success" or "fallback".
func (i *Instruments) NegotiationTurn(ctx context.Context, outcome string, elapsed time.Duration) {
	if i.agentLatency != nil {
		i.agentLatency.Record(ctx, float64(elapsed.Microseconds())/1000)
	}
	if i.negotiations != nil {
		i.negotiations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func (i *Instruments) SocketOpened(ctx context.Context) {
	if i.sockets != nil {
		i.sockets.Add(ctx, 1)
	}
}

func (i *Instruments) SocketClosed(ctx context.Context) {
	if i.sockets != nil {
		i.sockets.Add(ctx, -1)
	}
}

func (i *Instruments) FrameDropped(ctx context.Context, room string) {
	if i.droppedFrames != nil {
		i.droppedFrames.Add(ctx, 1, metric.WithAttributes(attribute.String("room", room)))
	}
}

func (i *Instruments) HTTPRequest(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	if i.httpRequests != nil {
		i.httpRequests.Add(ctx, 1, attrs)
	}
	if i.httpDuration != nil {
		i.httpDuration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	}
}
