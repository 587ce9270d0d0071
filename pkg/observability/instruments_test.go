package observability

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestInstrumentsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	i := newInstruments(mp.Meter(meterName))
	ctx := context.Background()

	i.MessageAppended(ctx, "client")
	i.MessageAppended(ctx, "ai")
	i.NegotiationTurn(ctx, "fallback", 30*time.Millisecond)
	i.SocketOpened(ctx)
	i.SocketOpened(ctx)
	i.SocketClosed(ctx)

	got := collect(t, reader)

	msgs, ok := got["conversation_messages_total"].(metricdata.Sum[int64])
	if !ok || len(msgs.DataPoints) != 2 {
		t.Fatalf("messages = %#v", got["conversation_messages_total"])
	}
	conns, ok := got["realtime_connections"].(metricdata.Sum[int64])
	if !ok || len(conns.DataPoints) != 1 || conns.DataPoints[0].Value != 1 {
		t.Errorf("connections = %#v", got["realtime_connections"])
	}
	if _, ok := got["negotiation_agent_duration_ms"].(metricdata.Histogram[float64]); !ok {
		t.Errorf("latency histogram missing")
	}
}

func TestZeroInstrumentsAreSafe(t *testing.T) {
	var i Instruments
	ctx := context.Background()
	i.MessageAppended(ctx, "agent")
	i.NegotiationTurn(ctx, "success", time.Millisecond)
	i.SocketOpened(ctx)
	i.FrameDropped(ctx, "conversation")
}
