package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers: %v", got)
	}
}

func TestExtractEventMetaFallsBackToLogPosition(t *testing.T) {
	meta := ExtractEventMeta(kafka.Message{Topic: "adoption.interview.window.offered.v1", Partition: 2, Offset: 41, Key: []byte("sub-1")})
	if meta.EventID != "adoption.interview.window.offered.v1/2/41" || meta.EventType != "adoption.interview.window.offered.v1" {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	msg := kafka.Message{Headers: EventMeta{EventID: "evt-1", EventType: "x"}.Headers()}
	meta = ExtractEventMeta(msg)
	if meta.EventID != "evt-1" || meta.EventType != "x" {
		t.Fatalf("unexpected meta from headers: %+v", meta)
	}
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	prop := propagation.TraceContext{}
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	carrier := &headerCarrier{}
	prop.Inject(ctx, carrier)
	if carrier.Get("traceparent") == "" {
		t.Fatal("expected traceparent header")
	}

	out := prop.Extract(context.Background(), carrier)
	if got := trace.SpanContextFromContext(out).TraceID(); got != traceID {
		t.Fatalf("expected trace id %s, got %s", traceID, got)
	}
}
