package otelx

import (
	"context"
	"testing"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg := ConfigFromEnv("interview-service")
	if cfg.Enabled {
		t.Fatal("expected tracing disabled")
	}
	if cfg.SampleRatio != 0.25 || cfg.OTLPEndpoint != "collector:4317" || cfg.Environment != "local" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestConfigFromEnvIgnoresBadRatio(t *testing.T) {
	t.Setenv("OTEL_SAMPLING_RATIO", "3")
	if cfg := ConfigFromEnv("svc"); cfg.SampleRatio != 1.0 {
		t.Fatalf("expected default ratio 1.0, got %v", cfg.SampleRatio)
	}
}

func TestTraceContextStringsWithoutSpan(t *testing.T) {
	traceparent, tracestate := TraceContextStrings(context.Background())
	if traceparent != "" || tracestate != "" {
		t.Fatalf("expected empty trace context, got %q %q", traceparent, tracestate)
	}
	if ctx := ContextWithTraceContext(context.Background(), "", ""); ctx == nil {
		t.Fatal("expected non-nil context")
	}
}
