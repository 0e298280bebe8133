package observability

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSamplerForClampsRatio(t *testing.T) {
	cases := map[float64]string{
		1.5:  "AlwaysOnSampler",
		1:    "AlwaysOnSampler",
		0:    "AlwaysOffSampler",
		-0.2: "AlwaysOffSampler",
		0.25: "TraceIDRatioBased{0.25}",
	}
	for ratio, want := range cases {
		if got := samplerFor(ratio).Description(); !strings.HasPrefix(got, "ParentBased{root:"+want) {
			t.Fatalf("ratio %v: expected parent-based %s, got %s", ratio, want, got)
		}
	}
}

func TestEndSpanRecordsErrorStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	_, ok := StartSpan(context.Background(), "bulk.delete_websites", attribute.Int("bulk.items", 3))
	EndSpan(ok, nil)
	_, failed := StartSpan(context.Background(), "favicon.put")
	EndSpan(failed, errors.New("bucket unavailable"))

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 ended spans, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Unset || len(spans[0].Attributes()) != 1 {
		t.Fatalf("unexpected successful span: status=%v attrs=%v", spans[0].Status(), spans[0].Attributes())
	}
	if spans[1].Status().Code != codes.Error || spans[1].Status().Description != "bucket unavailable" {
		t.Fatalf("expected error status, got %+v", spans[1].Status())
	}
	if len(spans[1].Events()) == 0 {
		t.Fatal("expected recorded error event")
	}
}
