package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelSink turns each event into a single, already-ended span named after
// the event's Type. Events represent points in time rather than durations,
// so there is no separate "start"/"end" pairing to track.
type OTelSink struct {
	tracer trace.Tracer
}

// NewOTelSink builds a sink from a tracer, typically otel.Tracer("graphrunner").
func NewOTelSink(tracer trace.Tracer) *OTelSink {
	return &OTelSink{tracer: tracer}
}

func (o *OTelSink) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), string(event.Type))
	defer span.End()
	o.annotate(span, event)
}

func (o *OTelSink) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		_, span := o.tracer.Start(ctx, string(event.Type))
		o.annotate(span, event)
		span.End()
	}
	return nil
}

func (o *OTelSink) annotate(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("graphrunner.run_id", event.RunID),
		attribute.String("graphrunner.node_id", event.NodeID),
		attribute.Int64("graphrunner.seq", int64(event.Seq)),
	)
	if event.Data != nil {
		span.SetAttributes(attribute.Int("graphrunner.text_len", len(event.Data.Text)))
		for k, v := range event.Data.Meta {
			span.SetAttributes(attribute.String("graphrunner.meta."+k, fmt.Sprintf("%v", v)))
		}
	}
	if event.Error != "" {
		span.SetStatus(codes.Error, event.Error)
		span.RecordError(fmt.Errorf("%s", event.Error))
	}
}

// Flush force-flushes the active tracer provider, if it supports it.
func (o *OTelSink) Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()
	type flusher interface{ ForceFlush(context.Context) error }
	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}
